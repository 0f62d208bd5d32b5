// Package xlsx serializes pivot grids into OOXML workbooks.
package xlsx

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/xuri/excelize/v2"
)

// DefaultSheet is the worksheet name used when none is configured.
const DefaultSheet = "Pivot"

// Export palette. It is fixed so exported files look the same whatever the
// UI theme is.
const (
	headerFill = "E5E7EB"
	zebraFill  = "F9FAFB"
	borderTint = "D1D5DB"
)

const (
	minColWidth = 8
	maxColWidth = 50
)

// ErrNilGrid is returned when asked to serialize a nil grid.
var ErrNilGrid = errors.New("xlsx: grid is nil")

type styleKey struct {
	header bool
	zebra  bool
	bold   bool
	numFmt string
}

type sheetWriter struct {
	f      *excelize.File
	sheet  string
	format pivot.Format
	styles map[styleKey]int
	taken  map[int]map[int]bool
	widths map[int]int
}

// Build renders grid into a new workbook with a single sheet. Header rows are
// written first, then body rows. Spans become merge regions.
func Build(grid *pivot.Grid, sheet string) (*excelize.File, error) {
	if grid == nil {
		return nil, ErrNilGrid
	}
	if sheet == "" {
		sheet = DefaultSheet
	}
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	w := &sheetWriter{
		f:      f,
		sheet:  sheet,
		format: grid.Format,
		styles: map[styleKey]int{},
		taken:  map[int]map[int]bool{},
		widths: map[int]int{},
	}
	row := 1
	for _, cells := range grid.Header {
		if err := w.writeRow(row, cells, styleKey{header: true, bold: true}); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	for i, cells := range grid.Body {
		base := styleKey{zebra: i%2 == 1}
		if i < len(grid.RowKinds) {
			switch grid.RowKinds[i] {
			case pivot.RowSubtotal, pivot.RowGrandTotal:
				base.bold = true
			}
		}
		if err := w.writeRow(row, cells, base); err != nil {
			f.Close()
			return nil, err
		}
		row++
	}
	if err := w.finish(len(grid.Header), frozenColumns(grid)); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func (w *sheetWriter) writeRow(row int, cells []pivot.Cell, base styleKey) error {
	col := 1
	for _, cell := range cells {
		for w.taken[row][col] {
			col++
		}
		name, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		text := StripGlyph(cell.Text)
		key := base
		if num, ok := w.number(cell, text); ok {
			key.numFmt = cell.NumFmt
			if cell.Kind == pivot.CellValue {
				num, key.numFmt = w.format.Excel(num)
			}
			if err := w.f.SetCellFloat(w.sheet, name, num, -1, 64); err != nil {
				return fmt.Errorf("xlsx: write %s: %w", name, err)
			}
		} else if err := w.f.SetCellStr(w.sheet, name, text); err != nil {
			return fmt.Errorf("xlsx: write %s: %w", name, err)
		}
		if cell.Kind == pivot.CellSubtotalLabel || cell.Kind == pivot.CellTotalLabel {
			key.bold = true
		}

		endCol, endRow := col+cell.Cols()-1, row+cell.Rows()-1
		end, err := excelize.CoordinatesToCellName(endCol, endRow)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		if endCol != col || endRow != row {
			if err := w.f.MergeCell(w.sheet, name, end); err != nil {
				return fmt.Errorf("xlsx: merge %s:%s: %w", name, end, err)
			}
		}
		styleID, err := w.style(key)
		if err != nil {
			return err
		}
		if err := w.f.SetCellStyle(w.sheet, name, end, styleID); err != nil {
			return fmt.Errorf("xlsx: style %s: %w", name, err)
		}
		for r := row; r <= endRow; r++ {
			if w.taken[r] == nil {
				w.taken[r] = map[int]bool{}
			}
			for c := col; c <= endCol; c++ {
				w.taken[r][c] = true
			}
		}
		if cell.Cols() == 1 {
			if n := utf8.RuneCountInString(text); n > w.widths[col] {
				w.widths[col] = n
			}
		}
		col = endCol + 1
	}
	return nil
}

// number returns the typed value of a cell. Body cells without a numeric
// payload are parsed from their display text.
func (w *sheetWriter) number(cell pivot.Cell, text string) (float64, bool) {
	if cell.Value != nil {
		return *cell.Value, true
	}
	if cell.Kind != pivot.CellValue {
		return 0, false
	}
	return w.format.ParseText(text)
}

func (w *sheetWriter) style(key styleKey) (int, error) {
	if id, ok := w.styles[key]; ok {
		return id, nil
	}
	style := &excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: borderTint, Style: 1},
			{Type: "top", Color: borderTint, Style: 1},
			{Type: "right", Color: borderTint, Style: 1},
			{Type: "bottom", Color: borderTint, Style: 1},
		},
		Alignment: &excelize.Alignment{Vertical: "center"},
	}
	if key.bold {
		style.Font = &excelize.Font{Bold: true}
	}
	switch {
	case key.header:
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1}
		style.Alignment.Horizontal = "center"
	case key.zebra:
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{zebraFill}, Pattern: 1}
	}
	if key.numFmt != "" {
		numFmt := key.numFmt
		style.CustomNumFmt = &numFmt
	}
	id, err := w.f.NewStyle(style)
	if err != nil {
		return 0, fmt.Errorf("xlsx: new style: %w", err)
	}
	w.styles[key] = id
	return id, nil
}

func (w *sheetWriter) finish(headerRows, frozenCols int) error {
	for col, n := range w.widths {
		name, err := excelize.ColumnNumberToName(col)
		if err != nil {
			return fmt.Errorf("xlsx: column name: %w", err)
		}
		width := float64(min(max(n+2, minColWidth), maxColWidth))
		if err := w.f.SetColWidth(w.sheet, name, name, width); err != nil {
			return fmt.Errorf("xlsx: column width: %w", err)
		}
	}
	if headerRows == 0 && frozenCols == 0 {
		return nil
	}
	topLeft, err := excelize.CoordinatesToCellName(frozenCols+1, headerRows+1)
	if err != nil {
		return fmt.Errorf("xlsx: cell name: %w", err)
	}
	if err := w.f.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      frozenCols,
		YSplit:      headerRows,
		TopLeftCell: topLeft,
		ActivePane:  "bottomRight",
	}); err != nil {
		return fmt.Errorf("xlsx: freeze panes: %w", err)
	}
	return nil
}

// frozenColumns is the width of the row-header block: the dimension label
// cells of the last header row.
func frozenColumns(grid *pivot.Grid) int {
	if len(grid.Header) == 0 {
		return 0
	}
	n := 0
	for _, cell := range grid.Header[len(grid.Header)-1] {
		if cell.Kind != pivot.CellDimLabel {
			break
		}
		n += cell.Cols()
	}
	return n
}

// StripGlyph removes a leading sort arrow from header text.
func StripGlyph(text string) string {
	for _, glyph := range []string{pivot.SortAsc.Glyph(), pivot.SortDesc.Glyph()} {
		if strings.HasPrefix(text, glyph) {
			return strings.TrimSpace(strings.TrimPrefix(text, glyph))
		}
	}
	return text
}
