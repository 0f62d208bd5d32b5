package pivot

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestFormatText(t *testing.T) {
	cases := []struct {
		name   string
		format Format
		value  float64
		want   string
	}{
		{"plain integer", Format{}, 1234567, "1,234,567"},
		{"plain fraction", Format{}, 1234.5, "1,234.5"},
		{"plain negative", Format{}, -1000, "-1,000"},
		{"abbreviated thousands", Format{Mode: FormatAbbreviated}, 1530, "1.5K"},
		{"abbreviated millions", Format{Mode: FormatAbbreviated}, 2_000_000, "2M"},
		{"abbreviated billions", Format{Mode: FormatAbbreviated}, 3_260_000_000, "3.3B"},
		{"abbreviated small", Format{Mode: FormatAbbreviated}, 950, "950"},
		{"fixed", Format{Mode: FormatFixed, Decimals: intPtr(1)}, 1234.56, "1,234.6"},
		{"percent", Format{Mode: FormatPercent}, 0.256, "25.6%"},
		{"bytes", Format{Mode: FormatBytes}, 1536, "1.5 KB"},
		{"bytes small", Format{Mode: FormatBytes}, 512, "512 B"},
		{"currency", Format{Mode: FormatCurrency, Prefix: "$"}, 1234.5, "$1,234.50"},
		{"suffix", Format{Mode: FormatFixed, Decimals: intPtr(0), Suffix: " EUR"}, 99.6, "100 EUR"},
		{"nan", Format{}, math.NaN(), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.format.Text(tc.value))
		})
	}
}

func TestFormatExcel(t *testing.T) {
	const gib = 1024 * 1024 * 1024
	cases := []struct {
		name   string
		format Format
		value  float64
		text   string
		stored float64
		numFmt string
	}{
		{"currency", Format{Mode: FormatCurrency, Prefix: "$"}, 1234.5, "$1,234.50", 1234.5, `"$"#,##0.00`},
		{"currency negative", Format{Mode: FormatCurrency, Prefix: "$"}, -2, "$-2.00", -2, `"$"#,##0.00;"$"-#,##0.00`},
		{"percent", Format{Mode: FormatPercent}, 0.256, "25.6%", 0.256, "0.0%"},
		{"fixed integer", Format{Mode: FormatFixed, Decimals: intPtr(0)}, 1200, "1,200", 1200, "#,##0"},
		{"plain integer", Format{}, 1234567, "1,234,567", 1234567, "#,##0"},
		{"plain fraction", Format{}, 1234.5, "1,234.5", 1234.5, "#,##0.0"},
		{"plain negative", Format{}, -1000, "-1,000", -1000, "#,##0;-#,##0"},
		{"plain rounds to zero", Format{}, -0.001, "0", 0, "#,##0"},
		{"abbreviated billions", Format{Mode: FormatAbbreviated}, 2.5e9, "2.5B", 2.5e9, `0.0,,,"B"`},
		{"abbreviated trillions", Format{Mode: FormatAbbreviated}, 4e12, "4T", 4e12, `0,,,,"T"`},
		{"abbreviated negative", Format{Mode: FormatAbbreviated}, -5000, "-5K", -5000, `0,"K";-0,"K"`},
		{"abbreviated small", Format{Mode: FormatAbbreviated}, 950, "950", 950, "#,##0"},
		{"bytes megabytes", Format{Mode: FormatBytes}, 1.5e6, "1.4 MB", 1.5e6 / (1024 * 1024), `0.0" MB"`},
		{"bytes gigabytes", Format{Mode: FormatBytes}, 3 * gib, "3 GB", 3, `0" GB"`},
		{"bytes small", Format{Mode: FormatBytes}, 512, "512 B", 512, `#,##0" B"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.text, tc.format.Text(tc.value))
			stored, numFmt := tc.format.Excel(tc.value)
			assert.InDelta(t, tc.stored, stored, 1e-9)
			assert.Equal(t, tc.numFmt, numFmt)
		})
	}
}

func TestFormatParseText(t *testing.T) {
	f := Format{Prefix: "$", Suffix: " USD"}
	n, ok := f.ParseText("$1,234.5 USD")
	assert.True(t, ok)
	assert.Equal(t, 1234.5, n)

	n, ok = Format{}.ParseText("25%")
	assert.True(t, ok)
	assert.Equal(t, 0.25, n)

	_, ok = Format{}.ParseText("EU")
	assert.False(t, ok)
	_, ok = Format{}.ParseText("NaN")
	assert.False(t, ok)
}

func TestResolveSharePrecedence(t *testing.T) {
	shares := NormalizeShares(map[string]any{
		" North ": 0.4,
		"(blank)": 0.1,
		"south":   "bad",
	})
	assert.Equal(t, 0.4, ResolveShare(shares, "north", 10, 100))
	assert.Equal(t, 0.1, ResolveShare(shares, nil, 10, 100))
	assert.Equal(t, 0.2, ResolveShare(shares, "South", 20, 100), "non-numeric server share falls back")
	assert.Equal(t, 0.0, ResolveShare(nil, "x", 20, 0))
	assert.Equal(t, 0.5, ResolveShare(map[string]float64{"x": math.Inf(1)}, "x", 5, 10))
}
