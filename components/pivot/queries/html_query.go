package queries

import (
	"context"
	"errors"
	"io"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-pivot/components/pivot/htmlview"
)

type pageRenderer interface {
	Render(ctx context.Context, page htmlview.Page, out io.Writer) (string, error)
}

// HTMLQuery renders a widget's grid as HTML markup.
type HTMLQuery struct {
	grid *GridQuery
	view pageRenderer
}

// NewHTMLQuery builds the query.
func NewHTMLQuery(grid *GridQuery, view pageRenderer) *HTMLQuery {
	return &HTMLQuery{grid: grid, view: view}
}

var _ gocommand.Querier[GridInput, string] = (*HTMLQuery)(nil)

// Query returns the table markup.
func (q *HTMLQuery) Query(ctx context.Context, in GridInput) (string, error) {
	if q.grid == nil || q.view == nil {
		return "", errors.New("html query requires grid query and view")
	}
	gv, err := q.grid.Query(ctx, in)
	if err != nil {
		return "", err
	}
	return q.view.Render(ctx, htmlview.Page{WidgetID: gv.WidgetID, Grid: gv.Grid, Busy: gv.Busy}, nil)
}
