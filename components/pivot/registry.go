package pivot

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrUnknownWidget is returned when no widget is registered under an id.
	ErrUnknownWidget = errors.New("pivot: unknown widget")
	// ErrDuplicateWidget is returned when registering an id twice.
	ErrDuplicateWidget = errors.New("pivot: widget already registered")
	// ErrMissingWidgetID is returned for widgets or events without an id.
	ErrMissingWidgetID = errors.New("pivot: widget id is required")
)

// Registry tracks live widgets by id.
type Registry struct {
	mu      sync.RWMutex
	widgets map[string]*Widget
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{widgets: map[string]*Widget{}}
}

// Register adds a widget.
func (r *Registry) Register(w *Widget) error {
	if w == nil || w.ID() == "" {
		return ErrMissingWidgetID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.widgets[w.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWidget, w.ID())
	}
	r.widgets[w.ID()] = w
	return nil
}

// Get returns the widget registered under id.
func (r *Registry) Get(id string) (*Widget, error) {
	if id == "" {
		return nil, ErrMissingWidgetID
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.widgets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownWidget, id)
	}
	return w, nil
}

// Ensure returns the widget under id, creating it with opts when absent.
func (r *Registry) Ensure(id string, opts WidgetOptions) (*Widget, error) {
	if id == "" {
		return nil, ErrMissingWidgetID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.widgets[id]; ok {
		return w, nil
	}
	opts.ID = id
	w := NewWidget(opts)
	r.widgets[id] = w
	return w, nil
}

// Remove drops a widget and resets its collapse state.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()
	if ok {
		w.RowState().Reset()
		w.ColumnState().Reset()
	}
}

// IDs returns the registered ids sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.widgets))
	for id := range r.widgets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
