package pivot

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DocumentVersion is the current pivot document format.
const DocumentVersion = "1"

var (
	// ErrEmptyDocument is returned when a config file has no content.
	ErrEmptyDocument = errors.New("pivot: document is empty")
)

// Config is the host pivotConfig prop.
type Config struct {
	Rows      []string `json:"rows" yaml:"rows"`
	Cols      []string `json:"cols" yaml:"cols"`
	Vals      []string `json:"vals" yaml:"vals"`
	RowTotals bool     `json:"rowTotals" yaml:"rowTotals"`
	ColTotals bool     `json:"colTotals" yaml:"colTotals"`
	// Aggregator applies to Vals entries without a matching ValueSpec.
	Aggregator string `json:"aggregator,omitempty" yaml:"aggregator,omitempty"`
}

// ValueSpec is one entry of the host pivotValues prop.
type ValueSpec struct {
	Field string `json:"field" yaml:"field"`
	Agg   string `json:"agg,omitempty" yaml:"agg,omitempty"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
	Sort  string `json:"sort,omitempty" yaml:"sort,omitempty"`
}

// Style is the host pivotStyle prop.
type Style struct {
	Title       string `json:"title,omitempty" yaml:"title,omitempty"`
	Subtotals   bool   `json:"subtotals,omitempty" yaml:"subtotals,omitempty"`
	Format      Format `json:"format,omitempty" yaml:"format,omitempty"`
	AnimationMs int    `json:"animationMs,omitempty" yaml:"animationMs,omitempty"`
}

// AnimationDuration returns the clamped transition duration.
func (s Style) AnimationDuration() time.Duration {
	return ClampAnimationDuration(time.Duration(s.AnimationMs) * time.Millisecond)
}

// Measures resolves the measure list. Explicit value specs win over Vals.
func (c Config) Measures(values []ValueSpec) []Measure {
	var out []Measure
	if len(values) > 0 {
		for _, v := range values {
			field := strings.TrimSpace(v.Field)
			agg, ok := ParseAggregator(v.Agg)
			if !ok {
				agg = AggSum
			}
			if field == "" && agg != AggCount {
				continue
			}
			out = append(out, Measure{Field: field, Aggregator: agg, Label: strings.TrimSpace(v.Label)})
		}
	} else {
		agg, ok := ParseAggregator(c.Aggregator)
		if !ok {
			agg = AggSum
		}
		for _, field := range c.Vals {
			field = strings.TrimSpace(field)
			if field == "" {
				continue
			}
			out = append(out, Measure{Field: field, Aggregator: agg})
		}
	}
	if len(out) == 0 {
		out = []Measure{{Aggregator: AggCount, Label: "Count"}}
	}
	return dedupeLabels(out)
}

// dedupeLabels keeps metric labels unique so multi-measure columns never merge.
func dedupeLabels(measures []Measure) []Measure {
	seen := map[string]int{}
	for i := range measures {
		label := measures[i].DisplayLabel()
		seen[label]++
		if n := seen[label]; n > 1 {
			measures[i].Label = fmt.Sprintf("%s (%d)", label, n)
		}
	}
	return measures
}

// ToSpec normalizes the props into an engine spec.
func (c Config) ToSpec(values []ValueSpec) Spec {
	return Spec{
		RowDims:   cleanFields(c.Rows),
		ColDims:   cleanFields(c.Cols),
		Measures:  c.Measures(values),
		RowTotals: c.RowTotals,
		ColTotals: c.ColTotals,
	}
}

func cleanFields(fields []string) []string {
	out := make([]string, 0, len(fields))
	seen := map[string]struct{}{}
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// InitialSort derives the value sort requested by the first value spec with a
// sort direction. It targets that measure's total column.
func InitialSort(spec Spec, values []ValueSpec) SortState {
	for _, v := range values {
		dir := ParseSortDirection(v.Sort)
		if dir == SortNone {
			continue
		}
		key := TotalKey
		if spec.MultiMeasure() {
			for _, m := range spec.Measures {
				if m.Field == strings.TrimSpace(v.Field) && (v.Label == "" || m.Label == strings.TrimSpace(v.Label)) {
					key = TotalTargetKey(m.DisplayLabel())
					break
				}
			}
		}
		return SortState{Value: ValueSort{Key: key, Dir: dir}}
	}
	return SortState{}
}

// Document is the on-disk description of a pivot widget: where the rows come
// from plus every host prop.
type Document struct {
	Version       string         `json:"version" yaml:"version"`
	ID            string         `json:"id,omitempty" yaml:"id,omitempty"`
	Title         string         `json:"title,omitempty" yaml:"title,omitempty"`
	Source        string         `json:"source,omitempty" yaml:"source,omitempty"`
	Where         map[string]any `json:"where,omitempty" yaml:"where,omitempty"`
	Pivot         Config         `json:"pivot" yaml:"pivot"`
	Values        []ValueSpec    `json:"values,omitempty" yaml:"values,omitempty"`
	Style         Style          `json:"style,omitempty" yaml:"style,omitempty"`
	CustomColumns []CustomColumn `json:"customColumns,omitempty" yaml:"customColumns,omitempty"`
	Path          string         `json:"-" yaml:"-"`
}

// Spec returns the normalized engine spec of the document.
func (d *Document) Spec() Spec {
	return d.Pivot.ToSpec(d.Values)
}

// DisplayTitle falls back from the style title to the document title.
func (d *Document) DisplayTitle() string {
	if d.Style.Title != "" {
		return d.Style.Title
	}
	return d.Title
}

// LoadDocumentFile reads, validates and decodes a YAML or JSON document.
func LoadDocumentFile(path string, validator *SchemaValidator) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("pivot: open document %s: %w", path, err)
	}
	doc, err := DecodeDocument(bytes.NewReader(data), validator)
	if err != nil {
		return nil, fmt.Errorf("pivot: decode document %s: %w", path, err)
	}
	doc.Path = path
	return doc, nil
}

// DecodeDocument parses a document from any reader. YAML is a superset of
// JSON so both encodings go through the YAML decoder. A nil validator skips
// schema validation.
func DecodeDocument(r io.Reader, validator *SchemaValidator) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("pivot: read document: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	if validator != nil {
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("pivot: parse document: %w", err)
		}
		if err := validator.ValidateDocument(raw); err != nil {
			return nil, err
		}
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var doc Document
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("pivot: parse document: %w", err)
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *Document) applyDefaults() {
	if d.Version == "" {
		d.Version = DocumentVersion
	}
	if d.Where == nil {
		d.Where = map[string]any{}
	}
}

// Validate checks the invariants the schema cannot express.
func (d *Document) Validate() error {
	if d.Version != DocumentVersion {
		return fmt.Errorf("pivot: unsupported document version %q", d.Version)
	}
	for idx, v := range d.Values {
		if _, ok := ParseAggregator(v.Agg); !ok {
			return fmt.Errorf("pivot: value %d has unknown aggregator %q", idx, v.Agg)
		}
	}
	if d.Pivot.Aggregator != "" {
		if _, ok := ParseAggregator(d.Pivot.Aggregator); !ok {
			return fmt.Errorf("pivot: unknown aggregator %q", d.Pivot.Aggregator)
		}
	}
	for idx, col := range d.CustomColumns {
		if strings.TrimSpace(col.Name) == "" {
			return fmt.Errorf("pivot: custom column at index %d is missing a name", idx)
		}
	}
	return nil
}

// normalizeJSON round-trips a decoded value through encoding/json so schema
// validation sees JSON types.
func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
