package query

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ordersDataset() pivot.Dataset {
	return pivot.Dataset{
		Columns: []string{"region", "year", "sales", "cost"},
		Rows: [][]any{
			{"EU", 2023, 10, 4},
			{"EU", 2023, 5, 1},
			{"US", 2024, 8, 2},
			{"US", 2023, 1, 1},
		},
	}
}

func TestSpecFields(t *testing.T) {
	spec := Spec{Dimensions: []string{"region", "year"}, Measures: []string{"sales", "region", ""}}
	assert.Equal(t, []string{"region", "year", "sales"}, spec.Fields())
}

func TestMemoryExecutorProjectsAndFilters(t *testing.T) {
	exec := NewMemoryExecutor(MemoryOptions{})
	exec.Put("orders", ordersDataset())

	ds, err := exec.ExecuteSpec(context.Background(), Spec{
		Source:     "orders",
		Dimensions: []string{"region"},
		Measures:   []string{"sales"},
		Where:      pivot.Where{"sales__gte": 5},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"region", "sales"}, ds.Columns)
	assert.Equal(t, [][]any{{"EU", 10}, {"EU", 5}, {"US", 8}}, ds.Rows)
	assert.False(t, ds.Aggregated)

	_, err = exec.ExecuteSpec(context.Background(), Spec{Source: "missing"})
	assert.ErrorIs(t, err, ErrUnknownSource)
}

func TestMemoryExecutorGroupBy(t *testing.T) {
	exec := NewMemoryExecutor(MemoryOptions{GroupBy: true})
	exec.Put("orders", ordersDataset())

	ds, err := exec.ExecuteSpec(context.Background(), Spec{
		Source:     "orders",
		Dimensions: []string{"region"},
		Measures:   []string{"sales"},
		Aggregator: pivot.AggCount,
	})
	require.NoError(t, err)
	assert.True(t, ds.Aggregated)
	assert.Equal(t, [][]any{{"EU", 2.0}, {"US", 2.0}}, ds.Rows)
}

func TestMemoryExecutorUngroupedSkipsGroupBy(t *testing.T) {
	exec := NewMemoryExecutor(MemoryOptions{GroupBy: true})
	exec.Put("orders", ordersDataset())

	ds, err := exec.ExecuteSpec(context.Background(), Spec{
		Source:     "orders",
		Dimensions: []string{"region"},
		Measures:   []string{"sales"},
		Aggregator: pivot.AggDistinct,
		Ungrouped:  true,
	})
	require.NoError(t, err)
	assert.False(t, ds.Aggregated)
	assert.Len(t, ds.Rows, len(ordersDataset().Rows))
}

func TestHTTPClientExecuteSpec(t *testing.T) {
	var gotAuth, gotID string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get("X-Request-ID")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"columns":["region","sales"],"rows":[["EU",15],["US",8]],"aggregated":true}`))
	}))
	defer srv.Close()

	client := NewHTTPClient(HTTPOptions{Endpoint: srv.URL + "/", APIKey: "secret"})
	ds, err := client.ExecuteSpec(context.Background(), Spec{
		RequestID:  "req-1",
		Source:     "orders",
		Dimensions: []string{"region"},
		Measures:   []string{"sales"},
		Where:      pivot.Where{"year": []any{2023}},
		Aggregator: pivot.AggSum,
		CustomColumns: []pivot.CustomColumn{
			{Name: "margin", Expression: "sales - cost", Scope: pivot.TableScope{Table: "orders"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "req-1", gotID)
	assert.Equal(t, "orders", gotBody["source"])
	assert.Equal(t, "sum", gotBody["aggregator"])
	cols := gotBody["customColumns"].([]any)
	assert.Equal(t, map[string]any{"level": "table", "table": "orders"}, cols[0].(map[string]any)["scope"])

	assert.True(t, ds.Aggregated)
	assert.Equal(t, []string{"region", "sales"}, ds.Columns)
	assert.Equal(t, [][]any{{"EU", 15.0}, {"US", 8.0}}, ds.Rows)
}

func TestHTTPClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "source not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPClient(HTTPOptions{Endpoint: srv.URL}).ExecuteSpec(context.Background(), Spec{Source: "x"})
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, "source not found", statusErr.Body)
}

func TestExecutorFunc(t *testing.T) {
	var exec Executor = ExecutorFunc(func(ctx context.Context, spec Spec) (pivot.Dataset, error) {
		return pivot.Dataset{Columns: []string{spec.Source}}, nil
	})
	ds, err := exec.ExecuteSpec(context.Background(), Spec{Source: "s"})
	require.NoError(t, err)
	assert.Equal(t, []string{"s"}, ds.Columns)
}
