package pivot

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ettle/strcase"
)

const (
	// NoKey identifies the single row/column of an axis without dimensions.
	NoKey = "__no_key__"
	// MetricField is the synthetic column dimension carrying the measure label
	// in multi-measure pivots.
	MetricField = "__metric__"
	// TotalKey targets the grand-total column for value sorting.
	TotalKey = "__total__"
	// KeySeparator joins dimension values into leaf and prefix keys.
	KeySeparator = "\x1f"
)

// JoinKey serializes an ordered tuple of dimension labels.
func JoinKey(parts []string) string {
	if len(parts) == 0 {
		return NoKey
	}
	return strings.Join(parts, KeySeparator)
}

// SplitKey reverses JoinKey.
func SplitKey(key string) []string {
	if key == "" || key == NoKey {
		return nil
	}
	return strings.Split(key, KeySeparator)
}

// PrefixKey returns the key of the ancestor at the given depth (1-based).
func PrefixKey(parts []string, depth int) string {
	if depth <= 0 {
		return ""
	}
	if depth > len(parts) {
		depth = len(parts)
	}
	return strings.Join(parts[:depth], KeySeparator)
}

// KeyDepth returns the number of labels in a key.
func KeyDepth(key string) int {
	return len(SplitKey(key))
}

// HasPrefix reports whether leaf lives under the given prefix key.
func HasPrefix(leaf, prefix string) bool {
	if prefix == "" {
		return true
	}
	if leaf == prefix {
		return true
	}
	return strings.HasPrefix(leaf, prefix+KeySeparator)
}

// KeyLabel renders a key for humans (used for tie-breaks and logs).
func KeyLabel(key string) string {
	if key == NoKey {
		return ""
	}
	return strings.ReplaceAll(key, KeySeparator, " / ")
}

// EncodeKey renders a key as a slash separated path of escaped labels, safe
// for URLs and HTML attributes.
func EncodeKey(key string) string {
	if key == NoKey {
		return NoKey
	}
	parts := SplitKey(key)
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

// DecodeKey reverses EncodeKey.
func DecodeKey(encoded string) (string, error) {
	if encoded == "" || encoded == NoKey || encoded == TotalKey {
		return encoded, nil
	}
	raw := strings.Split(encoded, "/")
	parts := make([]string, len(raw))
	for i, p := range raw {
		label, err := url.PathUnescape(p)
		if err != nil {
			return "", fmt.Errorf("pivot: decode key %q: %w", encoded, err)
		}
		parts[i] = label
	}
	return JoinKey(parts), nil
}

// rowKey extracts the dimension tuple for a row. ok is false when any value is
// blank so the caller can drop the row.
func rowKey(rec Row, fields []string) ([]string, bool) {
	if len(fields) == 0 {
		return nil, true
	}
	parts := make([]string, len(fields))
	for i, field := range fields {
		label, ok := dimensionLabel(rec[field])
		if !ok {
			return nil, false
		}
		parts[i] = label
	}
	return parts, true
}

// IsBlank reports whether a value counts as missing for dimension purposes.
func IsBlank(v any) bool {
	_, ok := dimensionLabel(v)
	return !ok
}

func dimensionLabel(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return "", false
		}
		return trimmed, true
	case *string:
		if val == nil {
			return "", false
		}
		return dimensionLabel(*val)
	case time.Time:
		if val.IsZero() {
			return "", false
		}
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(time.DateOnly), true
		}
		return val.Format(time.RFC3339), true
	case float64:
		if math.IsNaN(val) {
			return "", false
		}
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return dimensionLabel(float64(val))
	case json.Number:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}

// stringify renders measure values for distinct counting.
func stringify(v any) string {
	if label, ok := dimensionLabel(v); ok {
		return label
	}
	return ""
}

// toNumber coerces a measure value. ok is false for values that are not numbers.
func toNumber(v any) (float64, bool) {
	switch val := v.(type) {
	case nil:
		return 0, false
	case float64:
		if math.IsNaN(val) {
			return 0, false
		}
		return val, true
	case float32:
		return toNumber(float64(val))
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case bool:
		if val {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := val.Float64()
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func defaultMeasureLabel(field string, agg Aggregator) string {
	name := strings.TrimSpace(field)
	if name == "" {
		name = "value"
	}
	title := strcase.ToCase(name, strcase.TitleCase, ' ')
	if agg == "" || agg == AggSum {
		return title
	}
	return strcase.ToCase(string(agg), strcase.TitleCase, ' ') + " of " + title
}
