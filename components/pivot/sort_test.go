package pivot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortDirectionCycles(t *testing.T) {
	var s SortState
	assert.Equal(t, SortDesc, s.CycleLevel(1))
	assert.Equal(t, []SortDirection{SortNone, SortDesc}, s.Levels)
	assert.Equal(t, SortAsc, s.CycleLevel(1))
	assert.Equal(t, SortNone, s.CycleLevel(1))

	assert.Equal(t, SortDesc, s.CycleValue("2023"))
	assert.Equal(t, SortDesc, s.CycleValue(TotalKey), "a new target restarts the cycle")
	assert.Equal(t, SortAsc, s.CycleValue(TotalKey))
	assert.Equal(t, SortNone, s.CycleValue(TotalKey))
	assert.False(t, s.Value.Active())
}

func TestSortLeavesByHeaderLevels(t *testing.T) {
	spec := salesSpec()
	tree := BuildTree(salesRows(), spec.RowDims, AxisRows)

	assert.Equal(t, tree.LeafKeys, SortLeaves(tree, nil))
	assert.Equal(t, []string{
		key("US", "US"), key("US", "CA"), key("EU", "FR"), key("EU", "DE"),
	}, SortLeaves(tree, []SortDirection{SortDesc, SortDesc}))
	assert.Equal(t, []string{
		key("EU", "DE"), key("EU", "FR"), key("US", "CA"), key("US", "US"),
	}, SortLeaves(tree, []SortDirection{SortNone, SortAsc}))
}

func TestCompareLabelsIsNatural(t *testing.T) {
	assert.Negative(t, compareLabels("9", "10"))
	assert.Negative(t, compareLabels("apple", "Banana"))
	assert.Zero(t, compareLabels("x", "x"))
}

func valueSortFixture() ([]string, func([]string) (float64, bool)) {
	spec := salesSpec()
	rows := PrepareRows(salesRows(), spec)
	m := BuildMeasureMatrix(rows, spec)
	cols := BuildTree(rows, spec.ColDims, AxisColumns).LeafKeys
	order := BuildTree(rows, spec.RowDims, AxisRows).LeafKeys
	return order, func(leaves []string) (float64, bool) {
		return m.Aggregate(leaves, cols)
	}
}

func TestApplyValueSortReordersParentGroups(t *testing.T) {
	order, valueOf := valueSortFixture()

	asc := ApplyValueSort(order, ValueSortOptions{Levels: 2, Dir: SortAsc, ValueOf: valueOf})
	assert.Equal(t, []string{key("US", "CA"), key("US", "US"), key("EU", "DE"), key("EU", "FR")}, asc)

	desc := ApplyValueSort(order, ValueSortOptions{Levels: 2, Dir: SortDesc, ValueOf: valueOf})
	assert.Equal(t, []string{key("EU", "DE"), key("EU", "FR"), key("US", "CA"), key("US", "US")}, desc)

	again := ApplyValueSort(desc, ValueSortOptions{Levels: 2, Dir: SortDesc, ValueOf: valueOf})
	assert.Equal(t, desc, again, "sorting twice is idempotent")
}

func TestApplyValueSortSingleLevelSortsLeaves(t *testing.T) {
	values := map[string]float64{"a": 3, "b": 9, "c": 3}
	valueOf := func(leaves []string) (float64, bool) {
		v, ok := values[leaves[0]]
		return v, ok
	}
	got := ApplyValueSort([]string{"c", "a", "b", "d"}, ValueSortOptions{Levels: 1, Dir: SortDesc, ValueOf: valueOf})
	assert.Equal(t, []string{"b", "a", "c", "d"}, got, "ties break by label, missing values last")
}

func TestApplyValueSortKeepsLevelZeroPrimary(t *testing.T) {
	order := []string{
		key("B", "x", "1"), key("B", "y", "1"),
		key("A", "x", "1"), key("A", "y", "1"),
	}
	values := map[string]float64{
		key("B", "x"): 1, key("B", "y"): 5,
		key("A", "x"): 7, key("A", "y"): 2,
	}
	valueOf := func(leaves []string) (float64, bool) {
		return values[PrefixKey(SplitKey(leaves[0]), 2)], true
	}
	got := ApplyValueSort(order, ValueSortOptions{Levels: 3, Dir: SortDesc, LevelZeroPrimary: true, ValueOf: valueOf})
	assert.Equal(t, []string{
		key("B", "y", "1"), key("B", "x", "1"),
		key("A", "x", "1"), key("A", "y", "1"),
	}, got)
}

func TestApplyValueSortYieldsToLevelZeroHeaderSort(t *testing.T) {
	order := []string{key("a", "x"), key("b", "x"), key("c", "x")}
	values := map[string]float64{"a": 1, "b": 5, "c": 3}
	valueOf := func(leaves []string) (float64, bool) {
		return values[SplitKey(leaves[0])[0]], true
	}
	opts := ValueSortOptions{Levels: 2, Dir: SortDesc, LevelZeroPrimary: true, ValueOf: valueOf}
	assert.Equal(t, order, ApplyValueSort(order, opts))

	opts.LevelZeroPrimary = false
	assert.Equal(t, []string{key("b", "x"), key("c", "x"), key("a", "x")}, ApplyValueSort(order, opts))
}

func TestLayoutLevelZeroSortBeatsValueSort(t *testing.T) {
	rows := []Row{
		{"A": "a", "B": "x", "v": 1},
		{"A": "b", "B": "x", "v": 5},
		{"A": "c", "B": "x", "v": 3},
	}
	spec := Spec{RowDims: []string{"A", "B"}, Measures: []Measure{{Field: "v", Aggregator: AggSum}}}
	layout := BuildLayout(LayoutInput{
		Spec: spec,
		Rows: rows,
		Sort: SortState{Levels: []SortDirection{SortAsc, SortNone}, Value: ValueSort{Key: TotalKey, Dir: SortDesc}},
	})
	assert.Equal(t, []string{key("a", "x"), key("b", "x"), key("c", "x")}, layout.RowOrder)
}
