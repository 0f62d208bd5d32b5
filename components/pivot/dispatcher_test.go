package pivot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDispatcher(t *testing.T, exporter Exporter) (*Dispatcher, *recordingTelemetry) {
	t.Helper()
	tel := &recordingTelemetry{}
	registry := NewRegistry()
	w, err := registry.Ensure("w1", WidgetOptions{Scheduler: &fakeScheduler{}})
	require.NoError(t, err)
	w.SetProps(context.Background(), salesProps())
	return NewDispatcher(registry, exporter, tel), tel
}

func TestDispatchCollapseAndExpandAll(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	res, err := d.Dispatch(ctx, HostEvent{Name: EventCollapseAll, WidgetID: "w1"})
	require.NoError(t, err)
	assert.Equal(t, []string{"EU", "US"}, res.Prefixes)

	w, err := d.Registry().Get("w1")
	require.NoError(t, err)
	assert.Len(t, w.Layout(ctx).VisibleRows, 2)

	_, err = d.Dispatch(ctx, HostEvent{Name: EventExpandAll, WidgetID: "w1"})
	require.NoError(t, err)
	assert.Len(t, w.Layout(ctx).VisibleRows, 4)
}

func TestDispatchRejectsUnknownTargets(t *testing.T) {
	d, _ := newTestDispatcher(t, nil)
	ctx := context.Background()

	_, err := d.Dispatch(ctx, HostEvent{Name: "pivot-explode", WidgetID: "w1"})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = d.Dispatch(ctx, HostEvent{Name: EventExpandAll, WidgetID: "nope"})
	assert.ErrorIs(t, err, ErrUnknownWidget)

	_, err = d.Dispatch(ctx, HostEvent{Name: EventExpandAll})
	assert.ErrorIs(t, err, ErrMissingWidgetID)
}

func TestDispatchExportFailureIsSwallowed(t *testing.T) {
	exp := &stubExporter{err: errors.New("permission denied")}
	d, tel := newTestDispatcher(t, exp)

	res, err := d.Dispatch(context.Background(), HostEvent{Name: EventExportExcel, WidgetID: "w1"})
	require.NoError(t, err)
	assert.Empty(t, res.Path)
	assert.Equal(t, 1, tel.count("pivot.export.failed"))

	exp.err, exp.path = nil, "/tmp/out.xlsx"
	res, err = d.Dispatch(context.Background(), HostEvent{Name: EventExportExcel, WidgetID: "w1", Filename: "out.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.xlsx", res.Path)
	assert.Equal(t, "out.xlsx", exp.req.Filename)
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(NewWidget(WidgetOptions{ID: "b"})))
	assert.ErrorIs(t, r.Register(NewWidget(WidgetOptions{ID: "b"})), ErrDuplicateWidget)
	assert.ErrorIs(t, r.Register(NewWidget(WidgetOptions{})), ErrMissingWidgetID)

	a, err := r.Ensure("a", WidgetOptions{})
	require.NoError(t, err)
	again, err := r.Ensure("a", WidgetOptions{})
	require.NoError(t, err)
	assert.Same(t, a, again)
	assert.Equal(t, []string{"a", "b"}, r.IDs())

	r.Remove("a")
	_, err = r.Get("a")
	assert.ErrorIs(t, err, ErrUnknownWidget)
}
