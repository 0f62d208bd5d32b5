package pivot

import (
	"reflect"
	"strings"
	"time"
)

// Where is a filter map: field → equality list, or field__gte/__lte/__gt/__lt
// → bound.
type Where map[string]any

// WhereOp is the comparison encoded in a filter key suffix.
type WhereOp string

const (
	OpIn  WhereOp = "in"
	OpGte WhereOp = "gte"
	OpLte WhereOp = "lte"
	OpGt  WhereOp = "gt"
	OpLt  WhereOp = "lt"
)

var rangeSuffixes = []WhereOp{OpGte, OpLte, OpGt, OpLt}

// ParseWhereKey splits a filter key into its field and operator.
func ParseWhereKey(key string) (string, WhereOp) {
	for _, op := range rangeSuffixes {
		suffix := "__" + string(op)
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix) {
			return strings.TrimSuffix(key, suffix), op
		}
	}
	return key, OpIn
}

// Fields returns the distinct fields referenced by the filter.
func (w Where) Fields() []string {
	seen := map[string]struct{}{}
	var out []string
	for key := range w {
		field, _ := ParseWhereKey(key)
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
	}
	return out
}

// Matches reports whether a row satisfies every clause.
func (w Where) Matches(rec Row) bool {
	for key, want := range w {
		field, op := ParseWhereKey(key)
		got := rec[field]
		if op == OpIn {
			if !matchesAny(got, want) {
				return false
			}
			continue
		}
		c, ok := compareValues(got, want)
		if !ok {
			return false
		}
		switch op {
		case OpGte:
			if c < 0 {
				return false
			}
		case OpLte:
			if c > 0 {
				return false
			}
		case OpGt:
			if c <= 0 {
				return false
			}
		case OpLt:
			if c >= 0 {
				return false
			}
		}
	}
	return true
}

// ApplyWhere returns the rows matching the filter.
func ApplyWhere(rows []Row, w Where) []Row {
	if len(w) == 0 {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, rec := range rows {
		if w.Matches(rec) {
			out = append(out, rec)
		}
	}
	return out
}

// MergeWhere combines dashboard-wide filters with widget filters. Widget
// clauses override global ones on the same key; breakGlobal drops the global
// filters entirely.
func MergeWhere(global, local Where, breakGlobal bool) Where {
	out := Where{}
	if !breakGlobal {
		for k, v := range global {
			out[k] = v
		}
	}
	for k, v := range local {
		out[k] = v
	}
	return out
}

func matchesAny(got, want any) bool {
	candidates := toList(want)
	if len(candidates) == 0 {
		return true
	}
	gotLabel, gotOK := dimensionLabel(got)
	for _, c := range candidates {
		label, ok := dimensionLabel(c)
		if !ok && !gotOK {
			return true
		}
		if ok && gotOK && label == gotLabel {
			return true
		}
		if ok && gotOK {
			if a, okA := toNumber(got); okA {
				if b, okB := toNumber(c); okB && a == b {
					return true
				}
			}
		}
	}
	return false
}

func toList(v any) []any {
	switch val := v.(type) {
	case nil:
		return []any{nil}
	case []any:
		return val
	case []string:
		out := make([]any, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{v}
}

// compareValues orders two scalars: numerically, then as dates, then as
// strings. ok is false when got is blank.
func compareValues(got, want any) (int, bool) {
	if IsBlank(got) || IsBlank(want) {
		return 0, false
	}
	if a, ok := toNumber(got); ok {
		if b, ok := toNumber(want); ok {
			return cmpFloat(a, b), true
		}
	}
	if a, ok := toTime(got); ok {
		if b, ok := toTime(want); ok {
			return a.Compare(b), true
		}
	}
	a, _ := dimensionLabel(got)
	b, _ := dimensionLabel(want)
	return strings.Compare(a, b), true
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func toTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		s := strings.TrimSpace(val)
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, time.DateTime, time.DateOnly} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
