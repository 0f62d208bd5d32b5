package xlsx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/xuri/excelize/v2"
)

// ReadDataset loads a sheet as a dataset. The first row names the columns;
// numeric-looking cells become float64, empty cells nil. An empty sheet name
// reads the first sheet.
func ReadDataset(path, sheet string) (pivot.Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return pivot.Dataset{}, fmt.Errorf("xlsx: open %s: %w", path, err)
	}
	defer f.Close()
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return pivot.Dataset{}, fmt.Errorf("xlsx: read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return pivot.Dataset{}, nil
	}
	columns := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		columns[i] = strings.TrimSpace(name)
	}
	out := pivot.Dataset{Columns: columns, Rows: make([][]any, 0, len(rows)-1)}
	for _, raw := range rows[1:] {
		values := make([]any, len(columns))
		for i := range columns {
			if i < len(raw) {
				values[i] = cellValue(raw[i])
			}
		}
		out.Rows = append(out.Rows, values)
	}
	return out, nil
}

func cellValue(raw string) any {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n
	}
	return s
}
