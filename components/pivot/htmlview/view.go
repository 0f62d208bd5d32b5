// Package htmlview renders pivot grids as HTML tables through go-template.
package htmlview

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goliatone/go-pivot/components/pivot"
	template "github.com/goliatone/go-template"
)

//go:embed templates/*.html
var embeddedTemplates embed.FS

// DefaultTemplate is the embedded table template.
const DefaultTemplate = "pivot_table"

// ErrNilGrid is returned when rendering without a grid.
var ErrNilGrid = errors.New("htmlview: grid is nil")

// Renderer is the template contract the view needs.
type Renderer interface {
	Render(name string, data any, out ...io.Writer) (string, error)
}

// NewTemplateRenderer creates a go-template renderer backed by the embedded
// templates.
func NewTemplateRenderer() (Renderer, error) {
	return template.NewRenderer(
		template.WithFS(embeddedTemplates),
		template.WithBaseDir("templates"),
		template.WithExtension(".html"),
	)
}

// Options configures a View.
type Options struct {
	Renderer Renderer
	Template string
}

// View renders grids to HTML.
type View struct {
	renderer Renderer
	template string
}

// New builds a view, falling back to the embedded template renderer.
func New(opts Options) (*View, error) {
	if opts.Renderer == nil {
		r, err := NewTemplateRenderer()
		if err != nil {
			return nil, fmt.Errorf("htmlview: template renderer: %w", err)
		}
		opts.Renderer = r
	}
	if opts.Template == "" {
		opts.Template = DefaultTemplate
	}
	return &View{renderer: opts.Renderer, template: opts.Template}, nil
}

// Page is the input of one render.
type Page struct {
	WidgetID string
	Grid     *pivot.Grid
	Busy     bool
}

// Render writes the table for page into out and returns the markup.
func (v *View) Render(ctx context.Context, page Page, out io.Writer) (string, error) {
	if page.Grid == nil {
		return "", ErrNilGrid
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	writers := []io.Writer{}
	if out != nil {
		writers = append(writers, out)
	}
	html, err := v.renderer.Render(v.template, ViewModel(page), writers...)
	if err != nil {
		return "", fmt.Errorf("htmlview: render %s: %w", v.template, err)
	}
	return html, nil
}

// ViewModel flattens a page into plain maps for the template engine.
func ViewModel(page Page) map[string]any {
	grid := page.Grid
	header := make([]any, 0, len(grid.Header))
	for _, row := range grid.Header {
		cells := make([]any, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cellModel(cell, true))
		}
		header = append(header, cells)
	}
	body := make([]any, 0, len(grid.Body))
	for i, row := range grid.Body {
		kind := pivot.RowLeaf
		if i < len(grid.RowKinds) {
			kind = grid.RowKinds[i]
		}
		cells := make([]any, 0, len(row))
		for _, cell := range row {
			cells = append(cells, cellModel(cell, cell.Kind != pivot.CellValue))
		}
		body = append(body, map[string]any{
			"kind":  string(kind),
			"cells": cells,
		})
	}
	return map[string]any{
		"widget_id": page.WidgetID,
		"title":     grid.Title,
		"busy":      page.Busy,
		"header":    header,
		"body":      body,
	}
}

func cellModel(cell pivot.Cell, header bool) map[string]any {
	classes := []string{"pivot-cell", "pivot-" + string(cell.Kind)}
	if cell.Animation != pivot.AnimNone {
		classes = append(classes, "is-"+string(cell.Animation))
	}
	if cell.Kind == pivot.CellValue && cell.Value == nil {
		classes = append(classes, "is-missing")
	}
	if cell.Approximate {
		classes = append(classes, "is-approximate")
	}
	key := ""
	if cell.Toggle != pivot.ToggleNone || cell.Sort != pivot.SortNone {
		key = pivot.EncodeKey(cell.Key)
	}
	sort := ""
	switch cell.Sort {
	case pivot.SortAsc:
		sort = "ascending"
	case pivot.SortDesc:
		sort = "descending"
	}
	return map[string]any{
		"text":    cell.Text,
		"class":   strings.Join(classes, " "),
		"rowspan": cell.Rows(),
		"colspan": cell.Cols(),
		"header":  header,
		"key":     key,
		"axis":    string(cell.Axis),
		"toggle":  string(cell.Toggle),
		"sort":    sort,
	}
}
