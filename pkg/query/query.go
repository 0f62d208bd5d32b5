// Package query holds the executors the table card fetches pivot data from.
package query

import (
	"context"

	"github.com/goliatone/go-pivot/components/pivot"
)

// Spec is one tabular request: the source, the fields to select, a filter
// map and an aggregator hint for executors able to group server side.
type Spec struct {
	RequestID     string               `json:"requestId,omitempty"`
	Source        string               `json:"source"`
	Dimensions    []string             `json:"dimensions"`
	Measures      []string             `json:"measures"`
	Where         pivot.Where          `json:"where,omitempty"`
	Aggregator    pivot.Aggregator     `json:"aggregator,omitempty"`
	CustomColumns []pivot.CustomColumn `json:"customColumns,omitempty"`
	// Ungrouped asks for raw rows even from executors that group by default.
	// Distinct counts cannot be rolled up from grouped results.
	Ungrouped bool `json:"ungrouped,omitempty"`
}

// Fields returns dimensions then measures without duplicates.
func (s Spec) Fields() []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(s.Dimensions)+len(s.Measures))
	for _, group := range [][]string{s.Dimensions, s.Measures} {
		for _, f := range group {
			if f == "" {
				continue
			}
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
		}
	}
	return out
}

// Executor runs query specs.
type Executor interface {
	ExecuteSpec(ctx context.Context, spec Spec) (pivot.Dataset, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, spec Spec) (pivot.Dataset, error)

// ExecuteSpec implements Executor.
func (f ExecutorFunc) ExecuteSpec(ctx context.Context, spec Spec) (pivot.Dataset, error) {
	return f(ctx, spec)
}
