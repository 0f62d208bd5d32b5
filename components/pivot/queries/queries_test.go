package queries

import (
	"context"
	"io"
	"testing"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/htmlview"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T) *pivot.Registry {
	t.Helper()
	reg := pivot.NewRegistry()
	w, err := reg.Ensure("w1", pivot.WidgetOptions{})
	require.NoError(t, err)
	w.SetProps(context.Background(), pivot.Props{
		Columns: []string{"region", "sales"},
		Rows:    [][]any{{"EU", 10}, {"US", 7}},
		Config:  pivot.Config{Rows: []string{"region"}, Vals: []string{"sales"}, ColTotals: true},
		Style:   pivot.Style{Title: "Sales"},
	})
	_, err = reg.Ensure("w0", pivot.WidgetOptions{})
	require.NoError(t, err)
	return reg
}

func TestGridQuery(t *testing.T) {
	q := NewGridQuery(newRegistry(t))
	view, err := q.Query(context.Background(), GridInput{WidgetID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, "w1", view.WidgetID)
	assert.Equal(t, "Sales", view.Title)
	assert.False(t, view.Empty)
	assert.False(t, view.Busy)
	require.NotNil(t, view.Grid)
	assert.Len(t, view.Grid.Body, 3)

	_, err = q.Query(context.Background(), GridInput{WidgetID: "missing"})
	assert.Error(t, err)

	_, err = NewGridQuery(nil).Query(context.Background(), GridInput{})
	assert.Error(t, err)
}

func TestWidgetsQuery(t *testing.T) {
	ids, err := NewWidgetsQuery(newRegistry(t)).Query(context.Background(), struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []string{"w0", "w1"}, ids)
}

type stubView struct {
	page htmlview.Page
}

func (s *stubView) Render(_ context.Context, page htmlview.Page, _ io.Writer) (string, error) {
	s.page = page
	return "<table></table>", nil
}

func TestHTMLQuery(t *testing.T) {
	view := &stubView{}
	q := NewHTMLQuery(NewGridQuery(newRegistry(t)), view)
	html, err := q.Query(context.Background(), GridInput{WidgetID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, "<table></table>", html)
	assert.Equal(t, "w1", view.page.WidgetID)
	require.NotNil(t, view.page.Grid)

	_, err = NewHTMLQuery(nil, nil).Query(context.Background(), GridInput{WidgetID: "w1"})
	assert.Error(t, err)
}
