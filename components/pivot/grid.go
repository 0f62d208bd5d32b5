package pivot

import "github.com/ettle/strcase"

// CellKind classifies grid cells for renderers.
type CellKind string

const (
	CellCorner        CellKind = "corner"
	CellDimLabel      CellKind = "dim-label"
	CellColHeader     CellKind = "col-header"
	CellTotalHeader   CellKind = "total-header"
	CellRowHeader     CellKind = "row-header"
	CellValue         CellKind = "value"
	CellSubtotalLabel CellKind = "subtotal-label"
	CellTotalLabel    CellKind = "total-label"
	CellEmpty         CellKind = "empty"
)

// Toggle is the collapse affordance carried by a header cell.
type Toggle string

const (
	ToggleNone     Toggle = ""
	ToggleCollapse Toggle = "collapse"
	ToggleExpand   Toggle = "expand"
)

// RowKind classifies body rows.
type RowKind string

const (
	RowLeaf       RowKind = "leaf"
	RowSubtotal   RowKind = "subtotal"
	RowGrandTotal RowKind = "total"
	RowEmpty      RowKind = "empty"
)

// NoDataText is rendered when the pivot has no leaves.
const NoDataText = "No data"

// Cell is one anchor cell of the grid. Slots covered by a span are omitted
// from later cells, like an HTML table.
type Cell struct {
	Kind      CellKind      `json:"kind"`
	Text      string        `json:"text"`
	Value     *float64      `json:"value,omitempty"`
	RowSpan   int           `json:"row_span,omitempty"`
	ColSpan   int           `json:"col_span,omitempty"`
	Level     int           `json:"level"`
	Key       string        `json:"key,omitempty"`
	Axis      Axis          `json:"axis,omitempty"`
	Toggle    Toggle        `json:"toggle,omitempty"`
	Sort      SortDirection `json:"sort,omitempty"`
	Animation Animation     `json:"animation,omitempty"`
	NumFmt    string        `json:"num_fmt,omitempty"`
	// Approximate marks roll-ups of pre-aggregated distinct counts, which
	// may count a value once per group it appeared in.
	Approximate bool `json:"approximate,omitempty"`
}

// Rows returns the effective row span.
func (c Cell) Rows() int {
	if c.RowSpan < 1 {
		return 1
	}
	return c.RowSpan
}

// Cols returns the effective column span.
func (c Cell) Cols() int {
	if c.ColSpan < 1 {
		return 1
	}
	return c.ColSpan
}

// Grid is the renderer-neutral table produced by a layout pass.
type Grid struct {
	Title    string    `json:"title,omitempty"`
	Header   [][]Cell  `json:"header"`
	Body     [][]Cell  `json:"body"`
	RowKinds []RowKind `json:"row_kinds"`
	Format   Format    `json:"format"`
	Columns  int       `json:"columns"`
}

// LayoutInput carries everything a layout pass depends on.
type LayoutInput struct {
	Spec     Spec
	Rows     []Row
	Style    Style
	Sort     SortState
	RowState *CollapseState
	ColState *CollapseState
	Shares   map[string]float64
}

// Layout is the result of one pass: the aggregated matrix, both hierarchies,
// the ordered and visible leaves, and the grid built from them.
type Layout struct {
	Spec        Spec
	Matrix      *Matrix
	RowTree     *Tree
	ColTree     *Tree
	RowOrder    []string
	ColOrder    []string
	VisibleRows []VisibleLeaf
	VisibleCols []VisibleLeaf
	Grid        *Grid

	rowCount int
	in       LayoutInput
}

// BuildLayout runs matrix → trees → sort → collapse → grid.
func BuildLayout(in LayoutInput) *Layout {
	spec := in.Spec
	if len(spec.Measures) == 0 {
		spec.Measures = []Measure{{Aggregator: AggCount, Label: "Count"}}
	}
	rows := PrepareRows(in.Rows, spec)
	l := &Layout{
		Spec:     spec,
		Matrix:   BuildMeasureMatrix(rows, spec),
		RowTree:  BuildTree(rows, spec.RowDims, AxisRows),
		ColTree:  BuildTree(rows, spec.EffectiveColDims(), AxisColumns),
		rowCount: len(rows),
		in:       in,
	}
	l.ColOrder = append([]string(nil), l.ColTree.LeafKeys...)
	l.RowOrder = SortLeaves(l.RowTree, in.Sort.Levels)
	if in.Sort.Value.Active() {
		targets := l.targetColumns(in.Sort.Value.Key)
		l.RowOrder = ApplyValueSort(l.RowOrder, ValueSortOptions{
			Levels:           len(spec.RowDims),
			Dir:              in.Sort.Value.Dir,
			LevelZeroPrimary: in.Sort.Level(0) != SortNone,
			ValueOf: func(leaves []string) (float64, bool) {
				return l.Matrix.Aggregate(leaves, targets)
			},
		})
	}
	l.VisibleRows = visible(in.RowState, l.RowOrder)
	l.VisibleCols = visible(in.ColState, l.ColOrder)
	l.Grid = l.buildGrid()
	return l
}

func visible(state *CollapseState, ordered []string) []VisibleLeaf {
	if state == nil {
		out := make([]VisibleLeaf, len(ordered))
		for i, key := range ordered {
			out[i] = VisibleLeaf{Key: key, Members: []string{key}}
		}
		return out
	}
	return state.VisibleLeaves(ordered)
}

// Empty reports whether the layout rendered the "No data" row.
func (l *Layout) Empty() bool {
	return l.rowCount == 0 || len(l.VisibleRows) == 0 || len(l.VisibleCols) == 0
}

func metricOfKey(key string) string {
	parts := SplitKey(key)
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func (l *Layout) leavesWithMetric(metric string) []string {
	var out []string
	for _, key := range l.ColOrder {
		if metricOfKey(key) == metric {
			out = append(out, key)
		}
	}
	return out
}

// TotalTargetKey returns the value-sort key of a measure's total column.
func TotalTargetKey(metric string) string {
	if metric == "" {
		return TotalKey
	}
	return TotalKey + KeySeparator + metric
}

// targetColumns resolves a value-sort target into the column leaves it covers.
// Multi-measure targets never mix metrics.
func (l *Layout) targetColumns(key string) []string {
	multi := l.Spec.MultiMeasure()
	switch {
	case key == TotalKey:
		if multi {
			return l.leavesWithMetric(l.Spec.Measures[0].DisplayLabel())
		}
		return l.ColOrder
	case HasPrefix(key, TotalKey):
		return l.leavesWithMetric(metricOfKey(key))
	}
	leaves := LeavesUnder(key, l.ColOrder)
	if !multi || len(leaves) == 0 {
		return leaves
	}
	metric := metricOfKey(leaves[0])
	out := leaves[:0:0]
	for _, leaf := range leaves {
		if metricOfKey(leaf) == metric {
			out = append(out, leaf)
		}
	}
	return out
}

// totalSets returns one column set per total column.
func (l *Layout) totalSets() ([]string, [][]string) {
	if !l.Spec.MultiMeasure() {
		return []string{""}, [][]string{l.ColOrder}
	}
	labels := make([]string, 0, len(l.Spec.Measures))
	sets := make([][]string, 0, len(l.Spec.Measures))
	for _, m := range l.Spec.Measures {
		label := m.DisplayLabel()
		labels = append(labels, label)
		sets = append(sets, l.leavesWithMetric(label))
	}
	return labels, sets
}

func dimensionTitle(field string) string {
	if field == MetricField {
		return "Measure"
	}
	return strcase.ToCase(field, strcase.TitleCase, ' ')
}

func withGlyph(text string, dir SortDirection) string {
	if g := dir.Glyph(); g != "" {
		return g + " " + text
	}
	return text
}

type gridBuilder struct {
	l         *Layout
	format    Format
	share     bool
	colTotals map[string]float64
	labels    []string
}

func (l *Layout) buildGrid() *Grid {
	in := l.in
	spec := l.Spec
	b := &gridBuilder{
		l:         l,
		format:    in.Style.Format,
		share:     in.Style.Format.mode() == FormatShare,
		colTotals: map[string]float64{},
	}
	grid := &Grid{
		Title:  in.Style.Title,
		Format: in.Style.Format,
	}
	R := len(spec.RowDims)
	rowCols := R
	if rowCols == 0 {
		rowCols = 1
	}
	totalLabels, totalSets := l.totalSets()
	b.labels = totalLabels
	totalCols := 0
	if spec.RowTotals {
		totalCols = len(totalLabels)
	}
	grid.Columns = rowCols + len(l.VisibleCols) + totalCols
	grid.Header = b.header(totalLabels)

	if l.Empty() {
		span := grid.Columns
		if span < 1 {
			span = 1
		}
		grid.Body = [][]Cell{{{Kind: CellEmpty, Text: NoDataText, ColSpan: span}}}
		grid.RowKinds = []RowKind{RowEmpty}
		return grid
	}
	b.body(grid, totalSets)
	return grid
}

func (b *gridBuilder) header(totalLabels []string) [][]Cell {
	l := b.l
	spec := l.Spec
	in := l.in
	R := len(spec.RowDims)
	colFields := spec.EffectiveColDims()
	C := len(colFields)
	H := C
	if H < 1 {
		H = 1
	}
	multi := spec.MultiMeasure()
	metricLevel := -1
	if multi {
		metricLevel = C - 1
	}
	header := make([][]Cell, H)

	if R == 0 {
		header[0] = append(header[0], Cell{Kind: CellCorner, RowSpan: H, ColSpan: 1})
	} else {
		if H > 1 {
			header[0] = append(header[0], Cell{Kind: CellCorner, RowSpan: H - 1, ColSpan: R})
		}
		for i, field := range spec.RowDims {
			dir := in.Sort.Level(i)
			header[H-1] = append(header[H-1], Cell{
				Kind:  CellDimLabel,
				Text:  withGlyph(dimensionTitle(field), dir),
				Level: i,
				Key:   field,
				Axis:  AxisRows,
				Sort:  dir,
			})
		}
	}

	if C == 0 {
		for _, vc := range l.VisibleCols {
			header[0] = append(header[0], b.sortable(Cell{
				Kind: CellColHeader,
				Text: spec.Measures[0].DisplayLabel(),
				Key:  vc.Key,
				Axis: AxisColumns,
			}))
		}
	}
	realLevels := len(spec.ColDims)
	for d := 0; d < C; d++ {
		curID := ""
		for _, vc := range l.VisibleCols {
			parts := SplitKey(vc.Key)
			pd := KeyDepth(vc.Collapsed)
			if pd > 0 && d > pd-1 && (!multi || d < metricLevel) {
				curID = ""
				continue
			}
			var id string
			var cell Cell
			if pd > 0 && d == pd-1 {
				span := C - d
				if multi {
					span = metricLevel - d
				}
				id = "c:" + vc.Collapsed
				cell = Cell{
					Kind:    CellColHeader,
					Text:    parts[d],
					RowSpan: span,
					Level:   d,
					Key:     vc.Collapsed,
					Axis:    AxisColumns,
					Toggle:  ToggleExpand,
				}
			} else {
				key := PrefixKey(parts, d+1)
				id = "n:" + key
				cell = Cell{
					Kind:  CellColHeader,
					Text:  parts[d],
					Level: d,
					Key:   key,
					Axis:  AxisColumns,
				}
				if d < realLevels-1 {
					cell.Toggle = ToggleCollapse
				}
				if d == C-1 && in.ColState != nil {
					cell.Animation = in.ColState.Animation(vc.Key)
				}
			}
			if id == curID {
				row := header[d]
				row[len(row)-1].ColSpan++
				continue
			}
			curID = id
			cell.ColSpan = 1
			header[d] = append(header[d], b.sortable(cell))
		}
	}

	if spec.RowTotals {
		switch {
		case !multi:
			header[0] = append(header[0], b.sortable(Cell{
				Kind: CellTotalHeader, Text: "Total", RowSpan: H, Key: TotalKey, Axis: AxisColumns,
			}))
		case H >= 2:
			header[0] = append(header[0], Cell{
				Kind: CellTotalHeader, Text: "Total", RowSpan: H - 1, ColSpan: len(totalLabels), Axis: AxisColumns,
			})
			for _, label := range totalLabels {
				header[H-1] = append(header[H-1], b.sortable(Cell{
					Kind: CellTotalHeader, Text: label, Level: H - 1, Key: TotalTargetKey(label), Axis: AxisColumns,
				}))
			}
		default:
			for _, label := range totalLabels {
				header[0] = append(header[0], b.sortable(Cell{
					Kind: CellTotalHeader, Text: "Total " + label, Key: TotalTargetKey(label), Axis: AxisColumns,
				}))
			}
		}
	}
	return header
}

// sortable marks the cell targeted by the value sort.
func (b *gridBuilder) sortable(cell Cell) Cell {
	vs := b.l.in.Sort.Value
	if vs.Active() && cell.Key == vs.Key {
		cell.Sort = vs.Dir
		cell.Text = withGlyph(cell.Text, vs.Dir)
	}
	return cell
}

type bodyLine struct {
	leaf     *VisibleLeaf
	subtotal string
}

func (b *gridBuilder) body(grid *Grid, totalSets [][]string) {
	l := b.l
	spec := l.Spec
	in := l.in
	R := len(spec.RowDims)
	subtotals := in.Style.Subtotals && R >= 2

	lines := make([]bodyLine, 0, len(l.VisibleRows))
	for i := range l.VisibleRows {
		vr := &l.VisibleRows[i]
		lines = append(lines, bodyLine{leaf: vr})
		if !subtotals || vr.Collapsed != "" {
			continue
		}
		group := PrefixKey(SplitKey(vr.Key), R-1)
		next := ""
		if i+1 < len(l.VisibleRows) {
			next = PrefixKey(SplitKey(l.VisibleRows[i+1].Key), R-1)
		}
		if next != group {
			lines = append(lines, bodyLine{subtotal: group})
		}
	}

	headers := b.rowHeaders(lines)
	for i, line := range lines {
		if line.subtotal != "" {
			parts := SplitKey(line.subtotal)
			row := []Cell{{
				Kind:    CellSubtotalLabel,
				Text:    parts[len(parts)-1] + " Total",
				ColSpan: 2,
				Level:   R - 2,
				Key:     line.subtotal,
				Axis:    AxisRows,
			}}
			members := LeavesUnder(line.subtotal, l.RowOrder)
			row = append(row, b.values(members, line.subtotal, totalSets, AnimNone)...)
			grid.Body = append(grid.Body, row)
			grid.RowKinds = append(grid.RowKinds, RowSubtotal)
			continue
		}
		anim := AnimNone
		if in.RowState != nil {
			anim = in.RowState.Animation(line.leaf.Key)
		}
		row := headers[i]
		row = append(row, b.values(line.leaf.Members, line.leaf.Key, totalSets, anim)...)
		grid.Body = append(grid.Body, row)
		grid.RowKinds = append(grid.RowKinds, RowLeaf)
	}

	if spec.ColTotals {
		span := R
		if span < 1 {
			span = 1
		}
		row := []Cell{{Kind: CellTotalLabel, Text: "Total", ColSpan: span, Axis: AxisRows}}
		row = append(row, b.values(l.RowOrder, "", totalSets, AnimNone)...)
		grid.Body = append(grid.Body, row)
		grid.RowKinds = append(grid.RowKinds, RowGrandTotal)
	}
}

// rowHeaders computes the row-header cells of every leaf line. A cell is
// anchored on the first line of its run and spans every line of the group,
// including subtotal lines below level R-2.
func (b *gridBuilder) rowHeaders(lines []bodyLine) [][]Cell {
	l := b.l
	R := len(l.Spec.RowDims)
	out := make([][]Cell, len(lines))
	if R == 0 {
		for i, line := range lines {
			if line.leaf != nil {
				out[i] = []Cell{{Kind: CellRowHeader, Text: "All", Key: line.leaf.Key, Axis: AxisRows}}
			}
		}
		return out
	}
	for L := 0; L < R; L++ {
		for j := 0; j < len(lines); {
			line := lines[j]
			if line.leaf == nil {
				j++
				continue
			}
			parts := SplitKey(line.leaf.Key)
			pd := KeyDepth(line.leaf.Collapsed)
			if pd > 0 && L > pd-1 {
				j++
				continue
			}
			if pd > 0 && L == pd-1 {
				out[j] = append(out[j], Cell{
					Kind:    CellRowHeader,
					Text:    parts[L],
					ColSpan: R - L,
					Level:   L,
					Key:     line.leaf.Collapsed,
					Axis:    AxisRows,
					Toggle:  ToggleExpand,
				})
				j++
				continue
			}
			key := PrefixKey(parts, L+1)
			k := j + 1
			for k < len(lines) {
				next := lines[k]
				if next.leaf == nil {
					if L < R-2 && HasPrefix(next.subtotal, key) {
						k++
						continue
					}
					break
				}
				npd := KeyDepth(next.leaf.Collapsed)
				if npd > 0 && L >= npd-1 {
					break
				}
				if PrefixKey(SplitKey(next.leaf.Key), L+1) != key {
					break
				}
				k++
			}
			cell := Cell{
				Kind:    CellRowHeader,
				Text:    parts[L],
				RowSpan: k - j,
				Level:   L,
				Key:     key,
				Axis:    AxisRows,
			}
			if L < R-1 {
				cell.Toggle = ToggleCollapse
			}
			if L == R-1 && l.in.RowState != nil {
				cell.Animation = l.in.RowState.Animation(line.leaf.Key)
			}
			out[j] = append(out[j], cell)
			j = k
		}
	}
	return out
}

func (b *gridBuilder) values(rowMembers []string, label string, totalSets [][]string, anim Animation) []Cell {
	l := b.l
	cells := make([]Cell, 0, len(l.VisibleCols)+len(totalSets))
	for _, vc := range l.VisibleCols {
		v, ok := l.Matrix.Aggregate(rowMembers, vc.Members)
		cell := b.valueCell(v, ok, label, vc.Key, vc.Members)
		cell.Animation = anim
		cell.Approximate = ok && b.approximate(rowMembers, vc.Members)
		cells = append(cells, cell)
	}
	if l.Spec.RowTotals {
		for i, set := range totalSets {
			v, ok := l.Matrix.Aggregate(rowMembers, set)
			cell := b.valueCell(v, ok, label, TotalTargetKey(b.labels[i]), set)
			cell.Approximate = ok && b.approximate(rowMembers, set)
			cells = append(cells, cell)
		}
	}
	return cells
}

// approximate reports whether a cell rolls more than one pre-aggregated
// distinct group into a sum.
func (b *gridBuilder) approximate(rowKeys, colKeys []string) bool {
	if len(colKeys) == 0 || !b.measureFor(colKeys[0]).Approximate() {
		return false
	}
	return b.l.Matrix.Merged(rowKeys, colKeys).Count > 1
}

func (b *gridBuilder) measureFor(colKey string) Measure {
	measures := b.l.Spec.Measures
	if len(measures) == 1 {
		return measures[0]
	}
	parts := SplitKey(colKey)
	if len(parts) == 0 {
		return Measure{}
	}
	metric := parts[len(parts)-1]
	for _, m := range measures {
		if m.DisplayLabel() == metric {
			return m
		}
	}
	return Measure{}
}

func (b *gridBuilder) valueCell(v float64, ok bool, label, colID string, cols []string) Cell {
	cell := Cell{Kind: CellValue, Key: colID}
	if !ok {
		return cell
	}
	if b.share {
		total, seen := b.colTotals[colID]
		if !seen {
			total, _ = b.l.Matrix.Aggregate(b.l.RowOrder, cols)
			b.colTotals[colID] = total
		}
		var shareLabel any = KeyLabel(label)
		if label == "" {
			shareLabel = nil
		}
		v = ResolveShare(b.l.in.Shares, shareLabel, v, total)
	}
	value := v
	cell.Value = &value
	cell.Text = b.format.Text(v)
	_, cell.NumFmt = b.format.Excel(v)
	return cell
}
