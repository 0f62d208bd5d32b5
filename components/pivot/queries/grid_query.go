// Package queries exposes read-only pivot lookups as go-command queriers.
package queries

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-pivot/components/pivot"
)

type widgetLookup interface {
	Get(id string) (*pivot.Widget, error)
	IDs() []string
}

// GridInput selects a widget.
type GridInput struct {
	WidgetID string `json:"widget_id"`
}

// GridView is the rendered state of one widget.
type GridView struct {
	WidgetID  string          `json:"widget_id"`
	Title     string          `json:"title,omitempty"`
	Grid      *pivot.Grid     `json:"grid"`
	Busy      bool            `json:"busy"`
	Empty     bool            `json:"empty"`
	Sort      pivot.SortState `json:"sort"`
	Collapsed []string        `json:"collapsed,omitempty"`
}

// GridQuery resolves the current grid of a widget.
type GridQuery struct {
	widgets widgetLookup
}

// NewGridQuery builds the query.
func NewGridQuery(widgets widgetLookup) *GridQuery {
	return &GridQuery{widgets: widgets}
}

var _ gocommand.Querier[GridInput, GridView] = (*GridQuery)(nil)

// Query builds (or reuses) the widget layout.
func (q *GridQuery) Query(ctx context.Context, in GridInput) (GridView, error) {
	if q.widgets == nil {
		return GridView{}, errors.New("grid query requires registry")
	}
	w, err := q.widgets.Get(in.WidgetID)
	if err != nil {
		return GridView{}, err
	}
	layout := w.Layout(ctx)
	return GridView{
		WidgetID:  w.ID(),
		Title:     w.Title(),
		Grid:      layout.Grid,
		Busy:      w.RowState().Busy() || w.ColumnState().Busy(),
		Empty:     layout.Empty(),
		Sort:      w.SortState(),
		Collapsed: w.RowState().Collapsed(),
	}, nil
}

// WidgetsQuery lists registered widget ids.
type WidgetsQuery struct {
	widgets widgetLookup
}

// NewWidgetsQuery builds the query.
func NewWidgetsQuery(widgets widgetLookup) *WidgetsQuery {
	return &WidgetsQuery{widgets: widgets}
}

var _ gocommand.Querier[struct{}, []string] = (*WidgetsQuery)(nil)

// Query returns the ids sorted.
func (q *WidgetsQuery) Query(_ context.Context, _ struct{}) ([]string, error) {
	if q.widgets == nil {
		return nil, errors.New("widgets query requires registry")
	}
	return q.widgets.IDs(), nil
}
