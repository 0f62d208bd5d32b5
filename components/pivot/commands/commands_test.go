package commands

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/components/pivot/tablecard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type heldTimer struct{ stopped bool }

func (t *heldTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// heldScheduler keeps callbacks until flush is called.
type heldScheduler struct {
	mu    sync.Mutex
	funcs []func()
	tms   []*heldTimer
}

func (s *heldScheduler) AfterFunc(_ time.Duration, f func()) pivot.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &heldTimer{}
	s.funcs = append(s.funcs, f)
	s.tms = append(s.tms, t)
	return t
}

func (s *heldScheduler) flush() {
	s.mu.Lock()
	funcs, tms := s.funcs, s.tms
	s.funcs, s.tms = nil, nil
	s.mu.Unlock()
	for i, f := range funcs {
		if !tms[i].stopped {
			f()
		}
	}
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func salesProps() pivot.Props {
	return pivot.Props{
		Columns: []string{"region", "country", "sales"},
		Rows: [][]any{
			{"EU", "DE", 10},
			{"EU", "FR", 5},
			{"US", "US", 7},
			{"US", "CA", 3},
		},
		Config: pivot.Config{Rows: []string{"region", "country"}, Vals: []string{"sales"}, ColTotals: true},
		Style:  pivot.Style{Title: "Sales"},
	}
}

func newRegistry(t *testing.T) (*pivot.Registry, *pivot.Widget, *heldScheduler) {
	t.Helper()
	sched := &heldScheduler{}
	reg := pivot.NewRegistry()
	w, err := reg.Ensure("w1", pivot.WidgetOptions{Scheduler: sched})
	require.NoError(t, err)
	w.SetProps(context.Background(), salesProps())
	return reg, w, sched
}

func TestCollapseAndExpandAllCommands(t *testing.T) {
	reg, w, _ := newRegistry(t)
	tel := &recordingTelemetry{}
	ctx := context.Background()

	require.NoError(t, NewCollapseAllCommand(reg, tel).Execute(ctx, WidgetInput{WidgetID: "w1"}))
	assert.Equal(t, []string{"EU", "US"}, w.RowState().Collapsed())

	require.NoError(t, NewExpandAllCommand(reg, tel).Execute(ctx, WidgetInput{WidgetID: "w1"}))
	assert.Empty(t, w.RowState().Collapsed())
	assert.Equal(t, []string{"pivot.command.collapse_all", "pivot.command.expand_all"}, tel.events)

	err := NewExpandAllCommand(reg, nil).Execute(ctx, WidgetInput{WidgetID: "nope"})
	assert.Error(t, err)
	err = NewExpandAllCommand(nil, nil).Execute(ctx, WidgetInput{WidgetID: "w1"})
	assert.ErrorIs(t, err, errNoWidgets)
}

func TestToggleCommandDecodesKey(t *testing.T) {
	reg, w, sched := newRegistry(t)
	ctx := context.Background()
	cmd := NewToggleCommand(reg, nil)

	require.NoError(t, cmd.Execute(ctx, ToggleInput{WidgetID: "w1", Key: pivot.EncodeKey("EU")}))
	assert.Equal(t, pivot.PhaseCollapsing, w.RowState().Phase("EU"))
	sched.flush()
	assert.True(t, w.RowState().IsCollapsed("EU"))

	assert.ErrorIs(t, cmd.Execute(ctx, ToggleInput{WidgetID: "w1"}), ErrInvalidInput)
}

func TestSortCommand(t *testing.T) {
	reg, w, _ := newRegistry(t)
	ctx := context.Background()
	cmd := NewSortCommand(reg, nil)

	level := 0
	require.NoError(t, cmd.Execute(ctx, SortInput{WidgetID: "w1", Level: &level}))
	assert.Equal(t, pivot.SortDesc, w.SortState().Level(0))

	bad := 9
	assert.ErrorIs(t, cmd.Execute(ctx, SortInput{WidgetID: "w1", Level: &bad}), pivot.ErrInvalidLevel)

	require.NoError(t, cmd.Execute(ctx, SortInput{WidgetID: "w1", Column: pivot.TotalKey}))
	assert.Equal(t, pivot.SortDesc, w.SortState().Value.Dir)

	assert.ErrorIs(t, cmd.Execute(ctx, SortInput{WidgetID: "w1"}), ErrInvalidInput)
}

type stubExporter struct {
	path string
	err  error
}

func (s stubExporter) Export(context.Context, pivot.ExportRequest) (string, error) {
	return s.path, s.err
}

func TestExportCommandReportsErrors(t *testing.T) {
	reg, _, _ := newRegistry(t)
	ctx := context.Background()

	var path string
	cmd := NewExportCommand(reg, stubExporter{path: "out/sales.xlsx"}, nil)
	require.NoError(t, cmd.Execute(ctx, ExportInput{WidgetID: "w1", Path: &path}))
	assert.Equal(t, "out/sales.xlsx", path)

	failing := NewExportCommand(reg, stubExporter{err: errors.New("disk full")}, nil)
	assert.ErrorContains(t, failing.Execute(ctx, ExportInput{WidgetID: "w1"}), "disk full")

	assert.Error(t, NewExportCommand(reg, nil, nil).Execute(ctx, ExportInput{WidgetID: "w1"}))
}

type stubLoader struct {
	props pivot.Props
	err   error
}

func (s stubLoader) Load(ctx context.Context, w *pivot.Widget, _ tablecard.Request) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	return w.SetProps(ctx, s.props), nil
}

func TestLoadCommandCreatesWidget(t *testing.T) {
	reg := pivot.NewRegistry()
	tel := &recordingTelemetry{}
	cmd := NewLoadCommand(reg, stubLoader{props: salesProps()}, pivot.WidgetOptions{}, tel)

	require.NoError(t, cmd.Execute(context.Background(), LoadInput{Request: tablecard.Request{WidgetID: "fresh"}}))
	w, err := reg.Get("fresh")
	require.NoError(t, err)
	assert.Equal(t, "Sales", w.Title())
	assert.Equal(t, []string{"pivot.command.load"}, tel.events)

	failing := NewLoadCommand(reg, stubLoader{err: errors.New("boom")}, pivot.WidgetOptions{}, nil)
	assert.ErrorContains(t, failing.Execute(context.Background(), LoadInput{Request: tablecard.Request{WidgetID: "fresh"}}), "boom")

	assert.Error(t, NewLoadCommand(nil, nil, pivot.WidgetOptions{}, nil).Execute(context.Background(), LoadInput{}))
}

func TestHostEventCommand(t *testing.T) {
	reg, w, _ := newRegistry(t)
	cmd := NewHostEventCommand(pivot.NewDispatcher(reg, nil, nil))
	require.NoError(t, cmd.Execute(context.Background(), pivot.HostEvent{Name: pivot.EventCollapseAll, WidgetID: "w1"}))
	assert.Len(t, w.RowState().Collapsed(), 2)

	err := cmd.Execute(context.Background(), pivot.HostEvent{Name: "bogus", WidgetID: "w1"})
	assert.ErrorIs(t, err, pivot.ErrUnknownEvent)

	assert.Error(t, NewHostEventCommand(nil).Execute(context.Background(), pivot.HostEvent{}))
}
