package query

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/goliatone/go-pivot/components/pivot"
)

// ErrUnknownSource is returned for sources the memory executor does not hold.
var ErrUnknownSource = errors.New("query: unknown source")

// MemoryExecutor serves specs from in-process datasets. It evaluates Where
// locally and, when GroupBy is set, groups rows by the requested dimensions
// using the spec's aggregator hint. Ungrouped specs always get raw rows.
type MemoryExecutor struct {
	mu      sync.RWMutex
	sources map[string]pivot.Dataset
	groupBy bool
}

// MemoryOptions configures a MemoryExecutor.
type MemoryOptions struct {
	GroupBy bool
}

// NewMemoryExecutor builds an empty executor.
func NewMemoryExecutor(opts MemoryOptions) *MemoryExecutor {
	return &MemoryExecutor{sources: map[string]pivot.Dataset{}, groupBy: opts.GroupBy}
}

// Put registers or replaces a source.
func (m *MemoryExecutor) Put(source string, ds pivot.Dataset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources[source] = ds
}

// Sources returns how many sources are loaded.
func (m *MemoryExecutor) Sources() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sources)
}

// ExecuteSpec implements Executor.
func (m *MemoryExecutor) ExecuteSpec(ctx context.Context, spec Spec) (pivot.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return pivot.Dataset{}, err
	}
	m.mu.RLock()
	ds, ok := m.sources[spec.Source]
	m.mu.RUnlock()
	if !ok {
		return pivot.Dataset{}, fmt.Errorf("%w: %q", ErrUnknownSource, spec.Source)
	}
	rows := pivot.ApplyWhere(ds.Records(), spec.Where)
	if m.groupBy && !spec.Ungrouped {
		return group(rows, spec), nil
	}
	columns := spec.Fields()
	out := pivot.Dataset{Columns: columns, Rows: make([][]any, 0, len(rows))}
	for _, rec := range rows {
		values := make([]any, len(columns))
		for i, col := range columns {
			values[i] = rec[col]
		}
		out.Rows = append(out.Rows, values)
	}
	return out, nil
}

// group folds rows into one record per dimension tuple. Blank dimension
// values stay in their own bucket; the pivot drops them later.
func group(rows []pivot.Row, spec Spec) pivot.Dataset {
	agg := spec.Aggregator
	if !agg.Valid() {
		agg = pivot.AggSum
	}
	dims := append([]string(nil), spec.Dimensions...)
	measures := append([]string(nil), spec.Measures...)

	type bucket struct {
		dims   []any
		states []pivot.CellState
	}
	var order []string
	buckets := map[string]*bucket{}
	for _, rec := range rows {
		values := make([]any, len(dims))
		labels := make([]string, len(dims))
		for i, d := range dims {
			values[i] = rec[d]
			labels[i] = fmt.Sprint(rec[d])
		}
		key := pivot.JoinKey(labels)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{dims: values, states: make([]pivot.CellState, len(measures))}
			buckets[key] = b
			order = append(order, key)
		}
		for i, field := range measures {
			b.states[i].Observe(agg, rec[field])
		}
	}

	out := pivot.Dataset{Columns: append(dims, measures...), Aggregated: true}
	for _, key := range order {
		b := buckets[key]
		values := append([]any(nil), b.dims...)
		for i := range measures {
			values = append(values, b.states[i].Value(agg))
		}
		out.Rows = append(out.Rows, values)
	}
	return out
}
