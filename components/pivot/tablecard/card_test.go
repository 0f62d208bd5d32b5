package tablecard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/pkg/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExecutor struct {
	mu    sync.Mutex
	specs []query.Spec
	fn    func(ctx context.Context, spec query.Spec) (pivot.Dataset, error)
}

func (r *recordingExecutor) ExecuteSpec(ctx context.Context, spec query.Spec) (pivot.Dataset, error) {
	r.mu.Lock()
	r.specs = append(r.specs, spec)
	r.mu.Unlock()
	return r.fn(ctx, spec)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
}

func ordersExecutor() *query.MemoryExecutor {
	exec := query.NewMemoryExecutor(query.MemoryOptions{})
	exec.Put("orders", pivot.Dataset{
		Columns: []string{"region", "year", "sales", "units"},
		Rows: [][]any{
			{"EU", 2023, 10, 1},
			{"EU", 2024, 20, 2},
			{"US", 2023, 8, 4},
		},
	})
	return exec
}

func TestFetchMultiMeasureIsSequentialAndTagged(t *testing.T) {
	inner := ordersExecutor()
	rec := &recordingExecutor{fn: inner.ExecuteSpec}
	card := New(Options{Executor: rec, NewID: sequentialIDs()})

	props, err := card.Fetch(context.Background(), Request{
		WidgetID: "w1",
		Source:   "orders",
		Config:   pivot.Config{Rows: []string{"region"}, Cols: []string{"year"}},
		Values: []pivot.ValueSpec{
			{Field: "sales", Agg: "sum"},
			{Field: "units", Agg: "max", Label: "Peak units"},
		},
	})
	require.NoError(t, err)

	require.Len(t, rec.specs, 2)
	assert.Equal(t, []string{"sales"}, rec.specs[0].Measures)
	assert.Equal(t, []string{"units"}, rec.specs[1].Measures)
	assert.Equal(t, []string{"region", "year"}, rec.specs[0].Dimensions)
	assert.Equal(t, "req-1", rec.specs[0].RequestID)
	assert.Equal(t, "req-2", rec.specs[1].RequestID)
	assert.Equal(t, pivot.AggMax, rec.specs[1].Aggregator)

	assert.Equal(t, []string{"region", "year", "sales", "units", pivot.MetricField}, props.Columns)
	require.Len(t, props.Rows, 6)
	assert.Equal(t, []any{"EU", 2023, 10, nil, "Sales"}, props.Rows[0])
	assert.Equal(t, []any{"EU", 2023, nil, 1, "Peak units"}, props.Rows[3])

	w := pivot.NewWidget(pivot.WidgetOptions{ID: "w1"})
	w.SetProps(context.Background(), props)
	header := w.Grid(context.Background()).Header
	require.Len(t, header, 2)
}

func TestFetchAppliesFiltersAndScope(t *testing.T) {
	inner := ordersExecutor()
	rec := &recordingExecutor{fn: inner.ExecuteSpec}
	settings := pivot.NewInMemorySettings()
	settings.SetDefaultDatasource("orders")
	card := New(Options{Executor: rec, Settings: settings})

	req := Request{
		WidgetID:    "w1",
		Config:      pivot.Config{Rows: []string{"region"}, Vals: []string{"sales"}},
		Where:       pivot.Where{"year": 2023},
		GlobalWhere: pivot.Where{"region": []any{"EU"}},
		CustomColumns: []pivot.CustomColumn{
			{Name: "a", Scope: pivot.TableScope{Table: "orders"}},
			{Name: "b", Scope: pivot.TableScope{Table: "customers"}},
		},
	}
	props, err := card.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, pivot.Where{"region": []any{"EU"}, "year": 2023}, rec.specs[0].Where)
	require.Len(t, rec.specs[0].CustomColumns, 1)
	assert.Equal(t, "a", rec.specs[0].CustomColumns[0].Name)
	assert.Equal(t, [][]any{{"EU", 10}}, props.Rows)

	settings.SetBreakGlobalFilters("w1", true)
	props, err = card.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, pivot.Where{"year": 2023}, rec.specs[1].Where)
	assert.Len(t, props.Rows, 2)
}

func TestFetchSurfacesQueryError(t *testing.T) {
	boom := errors.New("timeout")
	rec := &recordingExecutor{fn: func(ctx context.Context, spec query.Spec) (pivot.Dataset, error) {
		if spec.Measures[0] == "units" {
			return pivot.Dataset{}, boom
		}
		return pivot.Dataset{Columns: []string{"sales"}}, nil
	}}
	card := New(Options{Executor: rec})
	_, err := card.Fetch(context.Background(), Request{
		WidgetID: "w1",
		Source:   "orders",
		Values:   []pivot.ValueSpec{{Field: "sales"}, {Field: "units"}},
	})
	var qerr *QueryError
	require.True(t, errors.As(err, &qerr))
	assert.Equal(t, "Units", qerr.Measure)
	assert.ErrorIs(t, err, boom)
}

func TestFetchLatestRequestWins(t *testing.T) {
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	rec := &recordingExecutor{fn: func(ctx context.Context, spec query.Spec) (pivot.Dataset, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()
		if first {
			close(started)
			<-ctx.Done()
			return pivot.Dataset{}, ctx.Err()
		}
		return pivot.Dataset{Columns: []string{"sales"}, Rows: [][]any{{1}}}, nil
	}}
	card := New(Options{Executor: rec})
	req := Request{WidgetID: "w1", Source: "orders", Config: pivot.Config{Vals: []string{"sales"}}}

	errs := make(chan error, 1)
	go func() {
		_, err := card.Fetch(context.Background(), req)
		errs <- err
	}()
	<-started

	props, err := card.Fetch(context.Background(), req)
	require.NoError(t, err)
	assert.Len(t, props.Rows, 1)
	assert.ErrorIs(t, <-errs, ErrStaleResult)
}

func TestFetchRequiresSourceAndExecutor(t *testing.T) {
	_, err := New(Options{}).Fetch(context.Background(), Request{Source: "x"})
	assert.ErrorIs(t, err, ErrNoExecutor)

	_, err = New(Options{Executor: ordersExecutor()}).Fetch(context.Background(), Request{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestLoadFeedsWidget(t *testing.T) {
	card := New(Options{Executor: ordersExecutor()})
	w := pivot.NewWidget(pivot.WidgetOptions{ID: "w1"})
	req := Request{
		Source: "orders",
		Config: pivot.Config{Rows: []string{"region"}, Vals: []string{"sales"}, ColTotals: true},
	}
	changed, err := card.Load(context.Background(), w, req)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = card.Load(context.Background(), w, req)
	require.NoError(t, err)
	assert.False(t, changed, "same source and filters keep widget state")

	body := w.Grid(context.Background()).Body
	require.Len(t, body, 3)
	assert.Equal(t, "38", body[2][1].Text)
}

type hookTelemetry struct {
	fn func(event string)
}

func (h *hookTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	if h.fn != nil {
		h.fn(event)
	}
}

func TestLoadDropsResultOvertakenBeforeApply(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	rec := &recordingExecutor{fn: func(ctx context.Context, spec query.Spec) (pivot.Dataset, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		return pivot.Dataset{Columns: []string{"region", "sales"}, Rows: [][]any{{"EU", n * 100}}}, nil
	}}
	tel := &hookTelemetry{}
	card := New(Options{Executor: rec, Telemetry: tel})
	w := pivot.NewWidget(pivot.WidgetOptions{ID: "w1"})
	req := Request{
		Source: "orders",
		Config: pivot.Config{Rows: []string{"region"}, Vals: []string{"sales"}},
	}

	// The first fetch finishes its queries, then a second load runs to
	// completion before the first one reaches the widget.
	var newer error
	tel.fn = func(event string) {
		if event != "pivot.fetch" {
			return
		}
		tel.fn = nil
		_, newer = card.Load(context.Background(), w, req)
	}
	_, err := card.Load(context.Background(), w, req)
	assert.ErrorIs(t, err, ErrStaleResult)
	require.NoError(t, newer)

	body := w.Grid(context.Background()).Body
	require.Len(t, body, 1)
	assert.Equal(t, "200", body[0][1].Text)
}

func TestFetchKeepsDistinctMeasuresUngrouped(t *testing.T) {
	inner := query.NewMemoryExecutor(query.MemoryOptions{GroupBy: true})
	inner.Put("orders", pivot.Dataset{
		Columns: []string{"region", "country", "customer", "sales"},
		Rows: [][]any{
			{"EU", "DE", "ann", 10},
			{"EU", "FR", "ann", 5},
			{"EU", "FR", "bob", 1},
		},
	})
	rec := &recordingExecutor{fn: inner.ExecuteSpec}
	card := New(Options{Executor: rec})
	w := pivot.NewWidget(pivot.WidgetOptions{ID: "w1"})
	_, err := card.Load(context.Background(), w, Request{
		Source: "orders",
		Config: pivot.Config{Rows: []string{"region", "country"}, ColTotals: true},
		Values: []pivot.ValueSpec{{Field: "customer", Agg: "distinct"}, {Field: "sales", Agg: "sum"}},
	})
	require.NoError(t, err)
	require.Len(t, rec.specs, 2)
	assert.True(t, rec.specs[0].Ungrouped)
	assert.True(t, rec.specs[1].Ungrouped, "sibling measures share the raw granularity")

	grid := w.Grid(context.Background())
	last := grid.Body[len(grid.Body)-1]
	require.Equal(t, pivot.RowGrandTotal, grid.RowKinds[len(grid.Body)-1])
	var totals []float64
	for _, cell := range last {
		if cell.Kind == pivot.CellValue && cell.Value != nil {
			assert.False(t, cell.Approximate)
			totals = append(totals, *cell.Value)
		}
	}
	assert.Equal(t, []float64{2, 16}, totals, "ann counts once across countries")
}

func TestMergeTaggedAlignsColumns(t *testing.T) {
	merged := MergeTagged([]pivot.Dataset{
		{Columns: []string{"r", "a"}, Rows: [][]any{{"x", 1}}},
		{Columns: []string{"b", "r"}, Rows: [][]any{{2, "y"}}, Aggregated: true},
	}, []pivot.Measure{{Field: "a"}, {Field: "b", Label: "B!"}})
	assert.Equal(t, []string{"r", "a", "b", pivot.MetricField}, merged.Columns)
	assert.Equal(t, [][]any{{"x", 1, nil, "A"}, {"y", nil, 2, "B!"}}, merged.Rows)
	assert.True(t, merged.Aggregated)
}
