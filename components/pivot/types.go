package pivot

import (
	"context"
	"strings"
)

// Row is a single flat query-result record keyed by column name.
type Row map[string]any

// Dataset is the tabular payload returned by the query collaborator.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
	// Aggregated reports that the executor already grouped rows by the
	// requested dimensions, so every (row, column) cell holds one record.
	Aggregated bool `json:"aggregated,omitempty"`
}

// Records converts the positional rows into column-keyed records.
func (d Dataset) Records() []Row {
	if len(d.Rows) == 0 {
		return nil
	}
	out := make([]Row, 0, len(d.Rows))
	for _, values := range d.Rows {
		rec := make(Row, len(d.Columns))
		for i, col := range d.Columns {
			if i < len(values) {
				rec[col] = values[i]
			} else {
				rec[col] = nil
			}
		}
		out = append(out, rec)
	}
	return out
}

// HasColumn reports whether the dataset exposes the named column. Datasets
// without column metadata accept every name.
func (d Dataset) HasColumn(name string) bool {
	if len(d.Columns) == 0 {
		return true
	}
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Aggregator names the reduction applied to every matrix cell.
type Aggregator string

const (
	AggCount    Aggregator = "count"
	AggSum      Aggregator = "sum"
	AggAvg      Aggregator = "avg"
	AggMin      Aggregator = "min"
	AggMax      Aggregator = "max"
	AggDistinct Aggregator = "distinct"
)

// Aggregators lists every supported aggregator in display order.
var Aggregators = []Aggregator{AggCount, AggSum, AggAvg, AggMin, AggMax, AggDistinct}

// ParseAggregator normalizes host spellings (SUM, average, count_distinct...).
func ParseAggregator(raw string) (Aggregator, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "count":
		return AggCount, true
	case "sum", "":
		return AggSum, true
	case "avg", "average", "mean":
		return AggAvg, true
	case "min", "minimum":
		return AggMin, true
	case "max", "maximum":
		return AggMax, true
	case "distinct", "count_distinct", "countdistinct", "unique":
		return AggDistinct, true
	default:
		return "", false
	}
}

// Valid reports whether the aggregator is supported.
func (a Aggregator) Valid() bool {
	_, ok := ParseAggregator(string(a))
	return ok && a != ""
}

// Rollup returns the aggregator to apply locally when the executor already
// grouped the rows. Counting pre-counted rows would always yield 1, so counts
// are summed instead.
func (a Aggregator) Rollup() Aggregator {
	switch a {
	case AggCount, AggDistinct:
		return AggSum
	default:
		return a
	}
}

// Measure is a field aggregated into the matrix.
type Measure struct {
	Field      string     `json:"field" yaml:"field"`
	Aggregator Aggregator `json:"aggregator" yaml:"aggregator"`
	Label      string     `json:"label,omitempty" yaml:"label,omitempty"`
	// Upstream is the aggregator the executor applied before Aggregator
	// rolled its groups up. Empty for raw rows.
	Upstream Aggregator `json:"upstream,omitempty" yaml:"-"`
}

// DisplayLabel returns the label used for headers and the metric dimension.
// Rolled-up measures keep the label of their upstream aggregator.
func (m Measure) DisplayLabel() string {
	if m.Label != "" {
		return m.Label
	}
	agg := m.Aggregator
	if m.Upstream != "" {
		agg = m.Upstream
	}
	return defaultMeasureLabel(m.Field, agg)
}

// Approximate reports whether rolling groups of this measure up can
// over-count: distinct values are not additive across groups.
func (m Measure) Approximate() bool {
	return m.Upstream == AggDistinct
}

// Spec is the normalized pivot specification.
type Spec struct {
	RowDims   []string  `json:"row_dims" yaml:"row_dims"`
	ColDims   []string  `json:"col_dims" yaml:"col_dims"`
	Measures  []Measure `json:"measures" yaml:"measures"`
	RowTotals bool      `json:"row_totals" yaml:"row_totals"`
	ColTotals bool      `json:"col_totals" yaml:"col_totals"`
}

// MultiMeasure reports whether the spec aggregates more than one measure.
func (s Spec) MultiMeasure() bool {
	return len(s.Measures) > 1
}

// DimensionFields returns every dimension used by the spec.
func (s Spec) DimensionFields() []string {
	out := make([]string, 0, len(s.RowDims)+len(s.ColDims))
	out = append(out, s.RowDims...)
	out = append(out, s.ColDims...)
	return out
}

// EffectiveColDims returns the column dimensions including the synthetic
// metric level used for multi-measure pivots.
func (s Spec) EffectiveColDims() []string {
	if !s.MultiMeasure() {
		return s.ColDims
	}
	out := make([]string, 0, len(s.ColDims)+1)
	out = append(out, s.ColDims...)
	return append(out, MetricField)
}

// Telemetry records pivot events for observability.
type Telemetry interface {
	Record(ctx context.Context, event string, payload map[string]any)
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

func normalizeTelemetry(t Telemetry) Telemetry {
	if t == nil {
		return noopTelemetry{}
	}
	return t
}
