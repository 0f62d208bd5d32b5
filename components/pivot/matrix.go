package pivot

import "sort"

// MatrixSpec configures a single-measure aggregation pass.
type MatrixSpec struct {
	RowDims    []string
	ColDims    []string
	Field      string
	Aggregator Aggregator
}

// Matrix is a sparse row-key × column-key grid of aggregate states.
type Matrix struct {
	cells      map[string]map[string]*CellState
	aggregator Aggregator
	metricAggs map[string]Aggregator
}

func newMatrix(agg Aggregator) *Matrix {
	return &Matrix{
		cells:      map[string]map[string]*CellState{},
		aggregator: agg,
	}
}

// FilterBlankRows drops rows with a nil or blank value in any of the fields.
func FilterBlankRows(rows []Row, fields []string) []Row {
	if len(fields) == 0 {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, rec := range rows {
		if _, ok := rowKey(rec, fields); ok {
			out = append(out, rec)
		}
	}
	return out
}

// BuildMatrix aggregates one measure over the row and column dimensions.
func BuildMatrix(rows []Row, spec MatrixSpec) *Matrix {
	agg := spec.Aggregator
	if !agg.Valid() {
		agg = AggSum
	}
	m := newMatrix(agg)
	m.accumulate(rows, spec.RowDims, spec.ColDims, spec.Field, agg)
	return m
}

func (m *Matrix) accumulate(rows []Row, rowDims, colDims []string, field string, agg Aggregator) {
	for _, rec := range rows {
		rparts, ok := rowKey(rec, rowDims)
		if !ok {
			continue
		}
		cparts, ok := rowKey(rec, colDims)
		if !ok {
			continue
		}
		rk, ck := JoinKey(rparts), JoinKey(cparts)
		row, ok := m.cells[rk]
		if !ok {
			row = map[string]*CellState{}
			m.cells[rk] = row
		}
		state, ok := row[ck]
		if !ok {
			state = &CellState{}
			row[ck] = state
		}
		state.Observe(agg, rec[field])
	}
}

// PrepareRows drops rows with blank dimensions and, for multi-measure specs,
// makes sure every row carries the metric tag of the measure it belongs to.
// Untagged rows are fanned out once per measure.
func PrepareRows(rows []Row, spec Spec) []Row {
	filtered := FilterBlankRows(rows, spec.DimensionFields())
	if !spec.MultiMeasure() {
		return filtered
	}
	labels := make(map[string]struct{}, len(spec.Measures))
	for _, m := range spec.Measures {
		labels[m.DisplayLabel()] = struct{}{}
	}
	out := make([]Row, 0, len(filtered))
	for _, rec := range filtered {
		if tag, ok := rec[MetricField].(string); ok && tag != "" {
			if _, known := labels[tag]; known {
				out = append(out, rec)
			}
			continue
		}
		for _, m := range spec.Measures {
			out = append(out, TagRow(rec, m.DisplayLabel()))
		}
	}
	return out
}

// TagRow copies a row and sets the metric dimension.
func TagRow(rec Row, label string) Row {
	tagged := make(Row, len(rec)+1)
	for k, v := range rec {
		tagged[k] = v
	}
	tagged[MetricField] = label
	return tagged
}

// BuildMeasureMatrix aggregates every measure of the spec. Rows must come from
// PrepareRows. Multi-measure results are keyed with the metric label as the
// last column dimension.
func BuildMeasureMatrix(rows []Row, spec Spec) *Matrix {
	if len(spec.Measures) == 0 {
		return newMatrix(AggCount)
	}
	if !spec.MultiMeasure() {
		measure := spec.Measures[0]
		return BuildMatrix(rows, MatrixSpec{
			RowDims:    spec.RowDims,
			ColDims:    spec.ColDims,
			Field:      measure.Field,
			Aggregator: measure.Aggregator,
		})
	}
	combined := newMatrix(spec.Measures[0].Aggregator)
	combined.metricAggs = make(map[string]Aggregator, len(spec.Measures))
	colDims := spec.EffectiveColDims()
	byMetric := map[string][]Row{}
	for _, rec := range rows {
		tag, _ := rec[MetricField].(string)
		byMetric[tag] = append(byMetric[tag], rec)
	}
	for _, measure := range spec.Measures {
		label := measure.DisplayLabel()
		agg := measure.Aggregator
		if !agg.Valid() {
			agg = AggSum
		}
		combined.metricAggs[label] = agg
		combined.accumulate(byMetric[label], spec.RowDims, colDims, measure.Field, agg)
	}
	return combined
}

// AggregatorFor returns the aggregator applied to a column key.
func (m *Matrix) AggregatorFor(colKey string) Aggregator {
	if len(m.metricAggs) > 0 {
		parts := SplitKey(colKey)
		if len(parts) > 0 {
			if agg, ok := m.metricAggs[parts[len(parts)-1]]; ok {
				return agg
			}
		}
	}
	return m.aggregator
}

// Cell returns the raw state for a cell.
func (m *Matrix) Cell(rowKey, colKey string) *CellState {
	row, ok := m.cells[rowKey]
	if !ok {
		return nil
	}
	return row[colKey]
}

// Value returns the aggregate of a single cell; ok is false for empty cells.
func (m *Matrix) Value(rowKey, colKey string) (float64, bool) {
	state := m.Cell(rowKey, colKey)
	if state.Empty() {
		return 0, false
	}
	return state.Value(m.AggregatorFor(colKey)), true
}

// Merged merges every cell covered by the row and column key sets.
func (m *Matrix) Merged(rowKeys, colKeys []string) *CellState {
	merged := &CellState{}
	for _, rk := range rowKeys {
		row, ok := m.cells[rk]
		if !ok {
			continue
		}
		for _, ck := range colKeys {
			merged.Merge(row[ck])
		}
	}
	return merged
}

// Aggregate returns the true aggregate over the covered cells using the
// aggregator of the first column key. ok is false when no row contributed.
func (m *Matrix) Aggregate(rowKeys, colKeys []string) (float64, bool) {
	if len(colKeys) == 0 {
		return 0, false
	}
	merged := m.Merged(rowKeys, colKeys)
	if merged.Empty() {
		return 0, false
	}
	return merged.Value(m.AggregatorFor(colKeys[0])), true
}

// Values exports the matrix as row-key → column-key → value.
func (m *Matrix) Values() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(m.cells))
	for rk, row := range m.cells {
		vals := make(map[string]float64, len(row))
		for ck, state := range row {
			vals[ck] = state.Value(m.AggregatorFor(ck))
		}
		out[rk] = vals
	}
	return out
}

// RowKeys returns the populated row keys sorted for stable iteration.
func (m *Matrix) RowKeys() []string {
	keys := make([]string, 0, len(m.cells))
	for k := range m.cells {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Metrics returns the metric labels of a multi-measure matrix.
func (m *Matrix) Metrics() map[string]Aggregator {
	return m.metricAggs
}
