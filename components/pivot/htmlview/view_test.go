package htmlview

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRenderer struct {
	lastTemplate string
	lastPayload  map[string]any
	err          error
}

func (r *stubRenderer) Render(name string, data any, out ...io.Writer) (string, error) {
	r.lastTemplate = name
	if payload, ok := data.(map[string]any); ok {
		r.lastPayload = payload
	}
	if len(out) > 0 && out[0] != nil {
		out[0].Write([]byte("<table></table>"))
	}
	return "<table></table>", r.err
}

func sampleGrid() *pivot.Grid {
	layout := pivot.BuildLayout(pivot.LayoutInput{
		Spec: pivot.Spec{
			RowDims:   []string{"region", "country"},
			ColDims:   []string{"year"},
			Measures:  []pivot.Measure{{Field: "sales", Aggregator: pivot.AggSum}},
			RowTotals: true,
			ColTotals: true,
		},
		Rows: []pivot.Row{
			{"region": "EU", "country": "DE", "year": 2023, "sales": 10},
			{"region": "EU", "country": "FR", "year": 2024, "sales": 5},
		},
		Style: pivot.Style{Title: "Sales"},
		Sort:  pivot.SortState{Levels: []pivot.SortDirection{pivot.SortDesc}},
	})
	return layout.Grid
}

func TestRenderPassesViewModel(t *testing.T) {
	stub := &stubRenderer{}
	view, err := New(Options{Renderer: stub})
	require.NoError(t, err)

	var buf bytes.Buffer
	html, err := view.Render(context.Background(), Page{WidgetID: "w1", Grid: sampleGrid()}, &buf)
	require.NoError(t, err)
	assert.Equal(t, DefaultTemplate, stub.lastTemplate)
	assert.Equal(t, "<table></table>", html)
	assert.Equal(t, html, buf.String())
	assert.Equal(t, "w1", stub.lastPayload["widget_id"])
	assert.Equal(t, "Sales", stub.lastPayload["title"])
}

func TestRenderErrors(t *testing.T) {
	view, err := New(Options{Renderer: &stubRenderer{err: errors.New("boom")}})
	require.NoError(t, err)

	_, err = view.Render(context.Background(), Page{}, nil)
	assert.ErrorIs(t, err, ErrNilGrid)

	_, err = view.Render(context.Background(), Page{Grid: sampleGrid()}, nil)
	assert.ErrorContains(t, err, "boom")
}

func TestViewModelCells(t *testing.T) {
	model := ViewModel(Page{WidgetID: "w1", Grid: sampleGrid()})

	header := model["header"].([]any)
	require.Len(t, header, 1)
	first := header[0].([]any)[0].(map[string]any)
	assert.Equal(t, "▼ Region", first["text"])
	assert.Equal(t, "descending", first["sort"])

	body := model["body"].([]any)
	require.Len(t, body, 3)
	row := body[0].(map[string]any)
	assert.Equal(t, "leaf", row["kind"])
	cells := row["cells"].([]any)
	region := cells[0].(map[string]any)
	assert.Equal(t, "EU", region["text"])
	assert.Equal(t, 2, region["rowspan"])
	assert.Equal(t, "collapse", region["toggle"])
	assert.Equal(t, "EU", region["key"])
	assert.Equal(t, true, region["header"])

	missing := cells[3].(map[string]any)
	assert.Contains(t, missing["class"], "is-missing", "DE has no 2024 value")
	assert.Equal(t, false, missing["header"])

	assert.Equal(t, "total", body[2].(map[string]any)["kind"])
}

func TestCellModelMarksApproximateValues(t *testing.T) {
	v := 3.0
	model := cellModel(pivot.Cell{Kind: pivot.CellValue, Text: "3", Value: &v, Approximate: true}, false)
	assert.Contains(t, model["class"], "is-approximate")
	model = cellModel(pivot.Cell{Kind: pivot.CellValue, Text: "3", Value: &v}, false)
	assert.NotContains(t, model["class"], "is-approximate")
}
