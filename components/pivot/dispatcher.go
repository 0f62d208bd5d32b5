package pivot

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnknownEvent is returned for host events the dispatcher does not route.
var ErrUnknownEvent = errors.New("pivot: unknown event")

// HostEvent is a signal sent by the dashboard host to one widget.
type HostEvent struct {
	Name     string `json:"name"`
	WidgetID string `json:"widget_id"`
	Filename string `json:"filename,omitempty"`
}

// DispatchResult describes what a dispatched event did.
type DispatchResult struct {
	Prefixes []string `json:"prefixes,omitempty"`
	Path     string   `json:"path,omitempty"`
}

// Dispatcher routes host events to registered widgets.
type Dispatcher struct {
	registry  *Registry
	exporter  Exporter
	telemetry Telemetry
}

// NewDispatcher builds a dispatcher. exporter may be nil when export is not
// wired.
func NewDispatcher(registry *Registry, exporter Exporter, telemetry Telemetry) *Dispatcher {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Dispatcher{
		registry:  registry,
		exporter:  exporter,
		telemetry: normalizeTelemetry(telemetry),
	}
}

// Registry returns the widget registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Dispatch applies a host event. Export failures are recorded and swallowed
// since export is best effort and user-retryable.
func (d *Dispatcher) Dispatch(ctx context.Context, event HostEvent) (DispatchResult, error) {
	var result DispatchResult
	switch event.Name {
	case EventExpandAll, EventCollapseAll, EventExportExcel:
	default:
		return result, fmt.Errorf("%w: %q", ErrUnknownEvent, event.Name)
	}
	w, err := d.registry.Get(event.WidgetID)
	if err != nil {
		return result, err
	}
	switch event.Name {
	case EventExpandAll:
		w.ExpandAll(ctx)
	case EventCollapseAll:
		result.Prefixes = w.CollapseAll(ctx)
	case EventExportExcel:
		path, err := w.Export(ctx, d.exporter, event.Filename)
		if err != nil {
			d.telemetry.Record(ctx, "pivot.export.failed", map[string]any{
				"widget": event.WidgetID,
				"error":  err.Error(),
			})
			return result, nil
		}
		result.Path = path
	}
	return result, nil
}
