// Package termview prints pivot grids as terminal tables.
package termview

import (
	"errors"
	"io"
	"strings"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/olekukonko/tablewriter"
)

// ErrNilGrid is returned when printing without a grid.
var ErrNilGrid = errors.New("termview: grid is nil")

// Options tunes terminal output.
type Options struct {
	// Emphasis renders subtotal and total rows in bold.
	Emphasis bool
	// Border draws the outer table border.
	Border bool
}

// Render writes grid to out. Header rows are flattened into one line per
// column ("2023 / Sales"); covered body slots print blank so merged row
// headers read like an outline.
func Render(out io.Writer, grid *pivot.Grid, opts Options) error {
	if grid == nil {
		return ErrNilGrid
	}
	width := grid.Columns
	header := flattenHeader(Dense(grid.Header, width, true), width)
	body := Dense(grid.Body, width, false)

	table := tablewriter.NewWriter(out)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetBorder(opts.Border)
	table.SetHeader(header)
	table.SetColumnAlignment(alignments(grid, width))

	for i, row := range body {
		kind := pivot.RowLeaf
		if i < len(grid.RowKinds) {
			kind = grid.RowKinds[i]
		}
		if opts.Emphasis && (kind == pivot.RowSubtotal || kind == pivot.RowGrandTotal) {
			colors := make([]tablewriter.Colors, len(row))
			for c := range colors {
				colors[c] = tablewriter.Colors{tablewriter.Bold}
			}
			table.Rich(row, colors)
			continue
		}
		table.Append(row)
	}
	table.Render()
	return nil
}

// Dense expands span-compressed rows into a width-wide text matrix. Spanned
// slots repeat the anchor text when fill is set and are blank otherwise.
func Dense(rows [][]pivot.Cell, width int, fill bool) [][]string {
	out := make([][]string, len(rows))
	taken := make([][]bool, len(rows))
	for i := range rows {
		out[i] = make([]string, width)
		taken[i] = make([]bool, width)
	}
	for r, cells := range rows {
		col := 0
		for _, cell := range cells {
			for col < width && taken[r][col] {
				col++
			}
			if col >= width {
				break
			}
			for dr := 0; dr < cell.Rows() && r+dr < len(rows); dr++ {
				for dc := 0; dc < cell.Cols() && col+dc < width; dc++ {
					taken[r+dr][col+dc] = true
					if (dr == 0 && dc == 0) || fill {
						out[r+dr][col+dc] = cell.Text
					}
				}
			}
			col += cell.Cols()
		}
	}
	return out
}

func flattenHeader(rows [][]string, width int) []string {
	out := make([]string, width)
	for c := 0; c < width; c++ {
		var parts []string
		for _, row := range rows {
			text := row[c]
			if text == "" || (len(parts) > 0 && parts[len(parts)-1] == text) {
				continue
			}
			parts = append(parts, text)
		}
		out[c] = strings.Join(parts, " / ")
	}
	return out
}

// alignments right-aligns value columns: everything after the row-header
// block.
func alignments(grid *pivot.Grid, width int) []int {
	headerCols := 0
	if len(grid.Header) > 0 {
		for _, cell := range grid.Header[len(grid.Header)-1] {
			if cell.Kind != pivot.CellDimLabel {
				break
			}
			headerCols += cell.Cols()
		}
	}
	if headerCols == 0 {
		headerCols = 1
	}
	out := make([]int, width)
	for i := range out {
		if i < headerCols {
			out[i] = tablewriter.ALIGN_LEFT
		} else {
			out[i] = tablewriter.ALIGN_RIGHT
		}
	}
	return out
}
