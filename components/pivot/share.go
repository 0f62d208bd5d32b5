package pivot

import (
	"math"
	"strings"
)

// BlankShareKey is the normalized key for nil or blank labels.
const BlankShareKey = "(blank)"

// NormalizeShareKey trims and case-folds a label so server and local keys agree.
func NormalizeShareKey(label any) string {
	text, ok := dimensionLabel(label)
	if !ok {
		return BlankShareKey
	}
	return strings.ToLower(text)
}

// NormalizeShares rebuilds a server share map with normalized keys. Entries
// that are not finite numbers are dropped.
func NormalizeShares(shares map[string]any) map[string]float64 {
	if len(shares) == 0 {
		return nil
	}
	out := make(map[string]float64, len(shares))
	for key, raw := range shares {
		n, ok := toNumber(raw)
		if !ok || math.IsInf(n, 0) {
			continue
		}
		out[NormalizeShareKey(key)] = n
	}
	return out
}

// ResolveShare returns the share of value in total for label. A server share
// wins only when its normalized key is present with a finite value; otherwise
// the share is value/total, and 0 when total is 0.
func ResolveShare(shares map[string]float64, label any, value, total float64) float64 {
	if len(shares) > 0 {
		if share, ok := shares[NormalizeShareKey(label)]; ok && !math.IsNaN(share) && !math.IsInf(share, 0) {
			return share
		}
	}
	if total == 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	return value / total
}
