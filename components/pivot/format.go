package pivot

import (
	"math"
	"strconv"
	"strings"
)

// FormatMode selects how aggregated numbers are displayed.
type FormatMode string

const (
	FormatPlain       FormatMode = "plain"
	FormatAbbreviated FormatMode = "abbreviated"
	FormatFixed       FormatMode = "fixed"
	FormatPercent     FormatMode = "percent"
	FormatBytes       FormatMode = "bytes"
	FormatCurrency    FormatMode = "currency"
	// FormatShare displays each value as its share of the column total.
	FormatShare FormatMode = "share"
)

// Format is the presentation transform applied to every value cell. The same
// settings produce the display text and the spreadsheet number format.
type Format struct {
	Mode     FormatMode `json:"mode,omitempty" yaml:"mode,omitempty"`
	Decimals *int       `json:"decimals,omitempty" yaml:"decimals,omitempty"`
	Prefix   string     `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	Suffix   string     `json:"suffix,omitempty" yaml:"suffix,omitempty"`
}

func (f Format) decimals(def int) int {
	if f.Decimals == nil || *f.Decimals < 0 {
		return def
	}
	if *f.Decimals > 10 {
		return 10
	}
	return *f.Decimals
}

func (f Format) mode() FormatMode {
	switch f.Mode {
	case FormatAbbreviated, FormatFixed, FormatPercent, FormatBytes, FormatCurrency, FormatShare:
		return f.Mode
	default:
		return FormatPlain
	}
}

// Text renders a value for display.
func (f Format) Text(v float64) string {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return ""
	}
	var body string
	switch f.mode() {
	case FormatAbbreviated:
		body = abbreviate(v, f.decimals(1))
	case FormatFixed:
		body = groupThousands(strconv.FormatFloat(v, 'f', f.decimals(2), 64))
	case FormatPercent, FormatShare:
		body = strconv.FormatFloat(v*100, 'f', f.decimals(1), 64) + "%"
	case FormatBytes:
		body = humanBytes(v, f.decimals(1))
	case FormatCurrency:
		body = groupThousands(strconv.FormatFloat(v, 'f', f.decimals(2), 64))
	default:
		body = plainNumber(v, f.decimals(2))
	}
	return f.Prefix + body + f.Suffix
}

func plainNumber(v float64, decimals int) string {
	text := strconv.FormatFloat(v, 'f', decimals, 64)
	if strings.Contains(text, ".") {
		text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	}
	if text == "-0" {
		text = "0"
	}
	return groupThousands(text)
}

func groupThousands(text string) string {
	sign := ""
	if strings.HasPrefix(text, "-") {
		sign, text = "-", text[1:]
	}
	intPart, frac := text, ""
	if i := strings.IndexByte(text, '.'); i >= 0 {
		intPart, frac = text[:i], text[i:]
	}
	if len(intPart) <= 3 {
		return sign + intPart + frac
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	return sign + b.String() + frac
}

type scaleUnit struct {
	scale  float64
	commas int
	suffix string
}

// abbreviations are tried largest first. commas is the number of thousands
// scaling commas the spreadsheet format needs for the same scale.
var abbreviations = []scaleUnit{
	{1e12, 4, "T"},
	{1e9, 3, "B"},
	{1e6, 2, "M"},
	{1e3, 1, "K"},
}

var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB"}

func abbreviationFor(v float64) (scaleUnit, bool) {
	abs := math.Abs(v)
	for _, u := range abbreviations {
		if abs >= u.scale {
			return u, true
		}
	}
	return scaleUnit{}, false
}

func abbreviate(v float64, decimals int) string {
	if u, ok := abbreviationFor(v); ok {
		return trimZeros(strconv.FormatFloat(v/u.scale, 'f', decimals, 64)) + u.suffix
	}
	return plainNumber(v, decimals)
}

// byteScale returns v in its display unit and the index into byteUnits.
func byteScale(v float64) (float64, int) {
	abs := math.Abs(v)
	i := 0
	for abs >= 1024 && i < len(byteUnits)-1 {
		abs /= 1024
		v /= 1024
		i++
	}
	return v, i
}

func humanBytes(v float64, decimals int) string {
	scaled, i := byteScale(v)
	if i == 0 {
		return plainNumber(v, 0) + " B"
	}
	return trimZeros(strconv.FormatFloat(scaled, 'f', decimals, 64)) + " " + byteUnits[i]
}

func trimZeros(text string) string {
	if !strings.Contains(text, ".") {
		return text
	}
	return strings.TrimRight(strings.TrimRight(text, "0"), ".")
}

func fractionDigits(text string) int {
	if i := strings.IndexByte(text, '.'); i >= 0 {
		return len(text) - i - 1
	}
	return 0
}

// Excel returns the number to store in a spreadsheet cell and the custom
// number format that displays it as Text(v). Abbreviated and byte values
// get a format fixed to their own unit, since a number format holds at most
// two conditions. Byte values are stored already divided into their unit.
func (f Format) Excel(v float64) (float64, string) {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return v, ""
	}
	switch f.mode() {
	case FormatAbbreviated:
		d := f.decimals(1)
		u, ok := abbreviationFor(v)
		if !ok {
			text := plainNumber(v, d)
			return f.sections(v, text, "#,##0"+decimalPattern(fractionDigits(text)))
		}
		text := trimZeros(strconv.FormatFloat(v/u.scale, 'f', d, 64))
		body := "0" + decimalPattern(fractionDigits(text)) + strings.Repeat(",", u.commas) + `"` + u.suffix + `"`
		return f.sections(v, text, body)
	case FormatBytes:
		scaled, i := byteScale(v)
		if i == 0 {
			return f.sections(v, plainNumber(v, 0), `#,##0" B"`)
		}
		text := trimZeros(strconv.FormatFloat(scaled, 'f', f.decimals(1), 64))
		return f.sections(scaled, text, "0"+decimalPattern(fractionDigits(text))+`" `+byteUnits[i]+`"`)
	case FormatFixed, FormatCurrency:
		d := f.decimals(2)
		return f.sections(v, strconv.FormatFloat(v, 'f', d, 64), "#,##0"+decimalPattern(d))
	case FormatPercent, FormatShare:
		d := f.decimals(1)
		return f.sections(v, strconv.FormatFloat(v*100, 'f', d, 64), "0"+decimalPattern(d)+"%")
	default:
		text := plainNumber(v, f.decimals(2))
		return f.sections(v, text, "#,##0"+decimalPattern(fractionDigits(text)))
	}
}

// sections wraps body with the prefix and suffix. Negative values get an
// explicit negative section so the sign sits after the prefix as in Text.
// A negative value whose text rounds to an unsigned zero is stored as 0.
func (f Format) sections(v float64, text, body string) (float64, string) {
	prefix, suffix := quoteExcel(f.Prefix), quoteExcel(f.Suffix)
	positive := prefix + body + suffix
	if v >= 0 {
		return v, positive
	}
	if !strings.HasPrefix(text, "-") {
		return 0, positive
	}
	return v, positive + ";" + prefix + "-" + body + suffix
}

func decimalPattern(n int) string {
	if n <= 0 {
		return ""
	}
	return "." + strings.Repeat("0", n)
}

func quoteExcel(s string) string {
	if s == "" {
		return ""
	}
	return `"` + strings.ReplaceAll(s, `"`, "") + `"`
}

// ParseText reverses display text into a number after removing the
// configured prefix/suffix, thousands separators and an optional percent
// sign. Percentages come back as ratios.
func (f Format) ParseText(text string) (float64, bool) {
	s := strings.TrimSpace(text)
	if f.Prefix != "" {
		s = strings.TrimPrefix(s, f.Prefix)
	}
	if f.Suffix != "" {
		s = strings.TrimSuffix(s, f.Suffix)
	}
	s = strings.TrimSpace(s)
	percent := false
	if strings.HasSuffix(s, "%") {
		percent = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	}
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	if percent {
		n /= 100
	}
	return n, true
}
