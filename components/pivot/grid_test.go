package pivot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func valueOf(t *testing.T, c Cell) float64 {
	t.Helper()
	require.NotNil(t, c.Value, "cell %q has no value", c.Text)
	return *c.Value
}

func TestBuildLayoutHeaderAndBody(t *testing.T) {
	layout := BuildLayout(LayoutInput{
		Spec:  salesSpec(),
		Rows:  salesRows(),
		Style: Style{Subtotals: true},
	})
	grid := layout.Grid
	require.Len(t, grid.Header, 1)
	assert.Equal(t, []string{"Region", "Country", "2023", "2024", "Total"}, texts(grid.Header[0]))
	assert.Equal(t, 5, grid.Columns)

	assert.Equal(t, []RowKind{RowLeaf, RowLeaf, RowSubtotal, RowLeaf, RowLeaf, RowSubtotal, RowGrandTotal}, grid.RowKinds)

	first := grid.Body[0]
	require.Len(t, first, 5)
	assert.Equal(t, "EU", first[0].Text)
	assert.Equal(t, 2, first[0].RowSpan)
	assert.Equal(t, ToggleCollapse, first[0].Toggle)
	assert.Equal(t, ToggleNone, first[1].Toggle)
	assert.Equal(t, 10.0, valueOf(t, first[2]))
	assert.Equal(t, 20.0, valueOf(t, first[3]))
	assert.Equal(t, 30.0, valueOf(t, first[4]))

	second := grid.Body[1]
	require.Len(t, second, 4, "region cell is covered by the rowSpan above")
	assert.Equal(t, "FR", second[0].Text)
	assert.Nil(t, second[2].Value, "FR has no 2024 rows")

	sub := grid.Body[2]
	assert.Equal(t, CellSubtotalLabel, sub[0].Kind)
	assert.Equal(t, 2, sub[0].ColSpan)
	assert.Equal(t, "EU Total", sub[0].Text)
	assert.Equal(t, []float64{15, 20, 35}, []float64{valueOf(t, sub[1]), valueOf(t, sub[2]), valueOf(t, sub[3])})
}

func TestGrandTotalEqualsSumOfSubtotals(t *testing.T) {
	layout := BuildLayout(LayoutInput{Spec: salesSpec(), Rows: salesRows(), Style: Style{Subtotals: true}})
	grid := layout.Grid
	var subtotals [3]float64
	var total []Cell
	for i, kind := range grid.RowKinds {
		switch kind {
		case RowSubtotal:
			for c := 0; c < 3; c++ {
				subtotals[c] += valueOf(t, grid.Body[i][c+1])
			}
		case RowGrandTotal:
			total = grid.Body[i]
		}
	}
	require.NotNil(t, total)
	assert.Equal(t, 2, total[0].ColSpan)
	for c := 0; c < 3; c++ {
		assert.Equal(t, subtotals[c], valueOf(t, total[c+1]))
	}
	assert.Equal(t, 52.0, valueOf(t, total[3]))
}

func TestCollapsedRowShowsGroupAggregate(t *testing.T) {
	sched := &fakeScheduler{}
	rowState := NewCollapseState(CollapseOptions{Scheduler: sched})
	spec := salesSpec()
	base := BuildLayout(LayoutInput{Spec: spec, Rows: salesRows()})
	rowState.Collapse("EU", "", base.RowOrder)
	sched.Fire(false)

	layout := BuildLayout(LayoutInput{
		Spec:     spec,
		Rows:     salesRows(),
		Style:    Style{Subtotals: true},
		RowState: rowState,
	})
	body := layout.Grid.Body
	assert.Equal(t, []RowKind{RowLeaf, RowLeaf, RowLeaf, RowSubtotal, RowGrandTotal}, layout.Grid.RowKinds)
	collapsed := body[0]
	require.Len(t, collapsed, 4)
	assert.Equal(t, "EU", collapsed[0].Text)
	assert.Equal(t, 2, collapsed[0].ColSpan)
	assert.Equal(t, ToggleExpand, collapsed[0].Toggle)
	assert.Equal(t, 15.0, valueOf(t, collapsed[1]))
	assert.Equal(t, 20.0, valueOf(t, collapsed[2]))
	assert.Equal(t, 35.0, valueOf(t, collapsed[3]))
}

func TestCollapsedColumnSpansRemainingHeaderRows(t *testing.T) {
	rows := []Row{
		{"r": "a", "y": "2023", "q": "Q1", "v": 1},
		{"r": "a", "y": "2023", "q": "Q2", "v": 2},
		{"r": "a", "y": "2024", "q": "Q1", "v": 4},
	}
	spec := Spec{RowDims: []string{"r"}, ColDims: []string{"y", "q"}, Measures: []Measure{{Field: "v"}}}
	colState := NewCollapseState(CollapseOptions{Axis: AxisColumns, Scheduler: &fakeScheduler{}})
	colState.CollapseAll([]string{"2023"})

	layout := BuildLayout(LayoutInput{Spec: spec, Rows: rows, ColState: colState})
	header := layout.Grid.Header
	require.Len(t, header, 2)
	assert.Equal(t, []string{"", "2023", "2024"}, texts(header[0]))
	assert.Equal(t, 2, header[0][1].RowSpan)
	assert.Equal(t, ToggleExpand, header[0][1].Toggle)
	assert.Equal(t, ToggleCollapse, header[0][2].Toggle)
	assert.Equal(t, []string{"R", "Q1"}, texts(header[1]))

	body := layout.Grid.Body[0]
	assert.Equal(t, 3.0, valueOf(t, body[1]))
	assert.Equal(t, 4.0, valueOf(t, body[2]))
}

func TestMultiMeasureHeaderAndTotals(t *testing.T) {
	spec := salesSpec()
	spec.Measures = []Measure{
		{Field: "sales", Aggregator: AggSum},
		{Field: "sales", Aggregator: AggCount},
	}
	layout := BuildLayout(LayoutInput{Spec: spec, Rows: salesRows()})
	header := layout.Grid.Header
	require.Len(t, header, 2)
	assert.Equal(t, []string{"", "2023", "2024", "Total"}, texts(header[0]))
	assert.Equal(t, 2, header[0][1].ColSpan)
	assert.Equal(t, 2, header[0][3].ColSpan)
	assert.Equal(t, []string{"Region", "Country", "Sales", "Count of Sales", "Sales", "Count of Sales", "Sales", "Count of Sales"}, texts(header[1]))

	first := layout.Grid.Body[0]
	// EU, DE, 2023 sum, 2023 count, 2024 sum, 2024 count, total sum, total count
	require.Len(t, first, 8)
	assert.Equal(t, 30.0, valueOf(t, first[6]))
	assert.Equal(t, 2.0, valueOf(t, first[7]))
}

func TestValueSortIndicatorAndOrder(t *testing.T) {
	layout := BuildLayout(LayoutInput{
		Spec: salesSpec(),
		Rows: salesRows(),
		Sort: SortState{Value: ValueSort{Key: TotalKey, Dir: SortAsc}},
	})
	assert.Equal(t, "US", layout.Grid.Body[0][0].Text)
	total := layout.Grid.Header[0][4]
	assert.Equal(t, SortAsc, total.Sort)
	assert.Equal(t, "▲ Total", total.Text)
}

func TestNoDataRow(t *testing.T) {
	layout := BuildLayout(LayoutInput{
		Spec: salesSpec(),
		Rows: []Row{{"region": nil, "country": "DE", "year": 2023, "sales": 1}},
	})
	require.True(t, layout.Empty())
	require.Len(t, layout.Grid.Body, 1)
	assert.Equal(t, NoDataText, layout.Grid.Body[0][0].Text)
	assert.Equal(t, []RowKind{RowEmpty}, layout.Grid.RowKinds)
}

func TestMissingMeasureFieldRendersZero(t *testing.T) {
	spec := salesSpec()
	spec.Measures = []Measure{{Field: "missing", Aggregator: AggSum}}
	layout := BuildLayout(LayoutInput{Spec: spec, Rows: salesRows()})
	assert.Equal(t, 0.0, valueOf(t, layout.Grid.Body[0][2]))
}

func TestShareFormatUsesColumnTotals(t *testing.T) {
	spec := Spec{RowDims: []string{"region"}, Measures: []Measure{{Field: "sales"}}}
	layout := BuildLayout(LayoutInput{
		Spec:   spec,
		Rows:   salesRows(),
		Style:  Style{Format: Format{Mode: FormatShare}},
		Shares: NormalizeShares(map[string]any{"us": 0.5}),
	})
	body := layout.Grid.Body
	// EU: 35 of 52 computed locally, US: server share wins.
	assert.InDelta(t, 35.0/52.0, valueOf(t, body[0][1]), 1e-9)
	assert.Equal(t, 0.5, valueOf(t, body[1][1]))
	assert.Equal(t, "50.0%", body[1][1].Text)
}
