package pivot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrNilGrid is returned when exporting before any layout exists.
	ErrNilGrid = errors.New("pivot: grid is not available")
	// ErrNoExporter is returned when no exporter is configured.
	ErrNoExporter = errors.New("pivot: exporter is not configured")
	// ErrInvalidLevel is returned for sort levels outside the row dimensions.
	ErrInvalidLevel = errors.New("pivot: sort level out of range")
)

// Props is the full host input of a pivot widget.
type Props struct {
	Columns    []string       `json:"columns"`
	Rows       [][]any        `json:"rows"`
	Aggregated bool           `json:"aggregated,omitempty"`
	Config     Config         `json:"pivotConfig"`
	Style      Style          `json:"pivotStyle"`
	Values     []ValueSpec    `json:"pivotValues,omitempty"`
	Shares     map[string]any `json:"shares,omitempty"`
	// Identity names the dataset (source, filters, config). When empty it is
	// derived from the content.
	Identity string `json:"identity,omitempty"`
}

// Dataset returns the tabular part of the props.
func (p Props) Dataset() Dataset {
	return Dataset{Columns: p.Columns, Rows: p.Rows, Aggregated: p.Aggregated}
}

// ExportRequest is handed to an Exporter.
type ExportRequest struct {
	WidgetID string
	Title    string
	Filename string
	Grid     *Grid
	At       time.Time
}

// Exporter writes a grid snapshot somewhere and returns the written path.
type Exporter interface {
	Export(ctx context.Context, req ExportRequest) (string, error)
}

// WidgetOptions configures a Widget.
type WidgetOptions struct {
	ID        string
	Telemetry Telemetry
	Events    EventSink
	Scheduler Scheduler
	Cache     *LayoutCache
	Now       func() time.Time
}

// Widget owns the pivot state of one table widget: data, spec, collapse and
// sort state, and the memoized layout.
type Widget struct {
	mu        sync.Mutex
	id        string
	telemetry Telemetry
	events    EventSink
	scheduler Scheduler
	cache     *LayoutCache
	now       func() time.Time

	identity string
	version  string
	spec     Spec
	style    Style
	rows     []Row
	shares   map[string]float64
	sort     SortState
	rowState *CollapseState
	colState *CollapseState

	lastKey  string
	last     *Layout
	readyKey string
}

// NewWidget builds an empty widget.
func NewWidget(opts WidgetOptions) *Widget {
	if opts.Scheduler == nil {
		opts.Scheduler = RealScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Widget{
		id:        opts.ID,
		telemetry: normalizeTelemetry(opts.Telemetry),
		events:    normalizeEventSink(opts.Events),
		scheduler: opts.Scheduler,
		cache:     opts.Cache,
		now:       opts.Now,
	}
	w.resetStateLocked(Style{}, false)
	return w
}

// ID returns the widget id.
func (w *Widget) ID() string {
	return w.id
}

func (w *Widget) resetStateLocked(style Style, multi bool) {
	if w.rowState != nil {
		w.rowState.Reset()
	}
	if w.colState != nil {
		w.colState.Reset()
	}
	duration := style.AnimationDuration()
	w.rowState = NewCollapseState(CollapseOptions{
		Axis:      AxisRows,
		Duration:  duration,
		Scheduler: w.scheduler,
		OnSettle:  w.settled(AxisRows),
	})
	w.colState = NewCollapseState(CollapseOptions{
		Axis:        AxisColumns,
		Duration:    duration,
		Scheduler:   w.scheduler,
		MetricAware: multi,
		OnSettle:    w.settled(AxisColumns),
	})
}

func (w *Widget) settled(axis Axis) func(string, Phase) {
	return func(prefix string, phase Phase) {
		w.publish(context.Background(), EventLayoutChanged, map[string]any{
			"axis":   string(axis),
			"prefix": KeyLabel(prefix),
			"phase":  phase.String(),
		})
	}
}

// SetProps replaces the widget input. Collapse and sort state reset whenever
// the dataset identity changes. It reports whether the identity changed.
func (w *Widget) SetProps(ctx context.Context, props Props) bool {
	spec := props.Config.ToSpec(props.Values)
	if props.Aggregated {
		for i := range spec.Measures {
			m := &spec.Measures[i]
			m.Upstream = m.Aggregator
			m.Aggregator = m.Aggregator.Rollup()
		}
	}
	identity := props.Identity
	if identity == "" {
		identity = contentHash(props.Columns, props.Rows, props.Config, props.Values)
	} else {
		identity = contentHash(identity, props.Config, props.Values)
	}
	version := contentHash(props.Columns, props.Rows, props.Aggregated)
	rows := props.Dataset().Records()
	shares := NormalizeShares(props.Shares)

	w.mu.Lock()
	changed := identity != w.identity
	w.identity = identity
	w.version = version
	w.spec = spec
	w.style = props.Style
	w.rows = rows
	w.shares = shares
	if changed {
		w.resetStateLocked(props.Style, spec.MultiMeasure())
		w.sort = InitialSort(spec, props.Values)
		w.lastKey, w.last, w.readyKey = "", nil, ""
	}
	w.mu.Unlock()

	if changed {
		w.telemetry.Record(ctx, "pivot.data.set", map[string]any{
			"widget":   w.id,
			"rows":     len(rows),
			"measures": len(spec.Measures),
		})
	}
	return changed
}

// Spec returns the normalized spec.
func (w *Widget) Spec() Spec {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spec
}

// SortState returns a copy of the sort state.
func (w *Widget) SortState() SortState {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := w.sort
	out.Levels = append([]SortDirection(nil), w.sort.Levels...)
	return out
}

// RowState exposes the row collapse state machine.
func (w *Widget) RowState() *CollapseState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowState
}

// ColumnState exposes the column collapse state machine.
func (w *Widget) ColumnState() *CollapseState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.colState
}

// Layout returns the current layout, recomputing it only when its content key
// changed. The first computation for a key emits pivot-data-ready.
func (w *Widget) Layout(ctx context.Context) *Layout {
	w.mu.Lock()
	// Build from frozen collapse state so a transition settling mid-build
	// cannot store a newer layout under this key.
	rowState, colState := w.rowState.Snapshot(), w.colState.Snapshot()
	in := LayoutInput{
		Spec:     w.spec,
		Rows:     w.rows,
		Style:    w.style,
		Sort:     w.sort,
		RowState: rowState,
		ColState: colState,
		Shares:   w.shares,
	}
	key := contentHash(w.identity, w.version, w.spec, w.style, w.sort.Fingerprint(),
		rowState.Fingerprint(), colState.Fingerprint(), w.shares)
	if w.last != nil && w.lastKey == key {
		layout := w.last
		w.mu.Unlock()
		return layout
	}
	w.mu.Unlock()

	started := w.now()
	var layout *Layout
	built := true
	if w.cache != nil {
		layout, built = w.cache.GetOrBuild(key, func() *Layout { return BuildLayout(in) })
	} else {
		layout = BuildLayout(in)
	}
	if built {
		w.telemetry.Record(ctx, "pivot.layout.build", map[string]any{
			"widget":       w.id,
			"visible_rows": len(layout.VisibleRows),
			"visible_cols": len(layout.VisibleCols),
			"duration_ms":  w.now().Sub(started).Milliseconds(),
		})
	}

	w.mu.Lock()
	w.lastKey, w.last = key, layout
	emit := w.readyKey != key
	w.readyKey = key
	w.mu.Unlock()

	if emit {
		w.publish(ctx, EventDataReady, map[string]any{
			"rows":    len(layout.VisibleRows),
			"columns": len(layout.VisibleCols),
			"empty":   layout.Empty(),
		})
	}
	return layout
}

// Grid is shorthand for Layout(ctx).Grid.
func (w *Widget) Grid(ctx context.Context) *Grid {
	return w.Layout(ctx).Grid
}

func (w *Widget) stateFor(axis Axis) *CollapseState {
	w.mu.Lock()
	defer w.mu.Unlock()
	if axis == AxisColumns {
		return w.colState
	}
	return w.rowState
}

// representative picks the first visible leaf under prefix so the row or
// column the user clicked stays in place.
func representative(visible []VisibleLeaf, prefix string) string {
	for _, vl := range visible {
		if HasPrefix(vl.Key, prefix) {
			return vl.Key
		}
	}
	return ""
}

// Toggle collapses or expands a prefix on an axis and returns the new phase.
func (w *Widget) Toggle(ctx context.Context, axis Axis, prefix string) Phase {
	layout := w.Layout(ctx)
	state := w.stateFor(axis)
	order, vis := layout.RowOrder, layout.VisibleRows
	if axis == AxisColumns {
		order, vis = layout.ColOrder, layout.VisibleCols
	}
	phase := state.Toggle(prefix, representative(vis, prefix), order)
	w.telemetry.Record(ctx, "pivot.toggle", map[string]any{
		"widget": w.id,
		"axis":   string(axis),
		"prefix": KeyLabel(prefix),
		"phase":  phase.String(),
	})
	return phase
}

// ExpandAll clears both collapsed sets.
func (w *Widget) ExpandAll(ctx context.Context) {
	w.stateFor(AxisRows).ExpandAll()
	w.stateFor(AxisColumns).ExpandAll()
	w.telemetry.Record(ctx, "pivot.expand_all", map[string]any{"widget": w.id})
}

// CollapseAll collapses every row prefix with children, derived from the
// currently visible row leaves. It returns the collapsed prefixes.
func (w *Widget) CollapseAll(ctx context.Context) []string {
	layout := w.Layout(ctx)
	keys := make([]string, 0, len(layout.VisibleRows))
	for _, vl := range layout.VisibleRows {
		keys = append(keys, vl.Key)
	}
	prefixes := ParentPrefixes(keys, len(layout.Spec.RowDims))
	w.stateFor(AxisRows).CollapseAll(prefixes)
	w.telemetry.Record(ctx, "pivot.collapse_all", map[string]any{
		"widget":   w.id,
		"prefixes": len(prefixes),
	})
	return prefixes
}

// CycleLevelSort advances the header sort of a row level.
func (w *Widget) CycleLevelSort(ctx context.Context, level int) (SortDirection, error) {
	w.mu.Lock()
	if level < 0 || level >= len(w.spec.RowDims) {
		w.mu.Unlock()
		return SortNone, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	dir := w.sort.CycleLevel(level)
	w.mu.Unlock()
	w.telemetry.Record(ctx, "pivot.sort", map[string]any{"widget": w.id, "level": level, "dir": string(dir)})
	return dir, nil
}

// CycleValueSort advances the value sort on a column key or TotalKey.
func (w *Widget) CycleValueSort(ctx context.Context, key string) SortDirection {
	w.mu.Lock()
	dir := w.sort.CycleValue(key)
	w.mu.Unlock()
	w.telemetry.Record(ctx, "pivot.sort", map[string]any{"widget": w.id, "key": KeyLabel(key), "dir": string(dir)})
	return dir
}

// Title returns the style title.
func (w *Widget) Title() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.style.Title
}

// Export hands the current grid snapshot to the exporter. Data is never
// re-queried.
func (w *Widget) Export(ctx context.Context, exporter Exporter, filename string) (string, error) {
	if exporter == nil {
		return "", ErrNoExporter
	}
	grid := w.Grid(ctx)
	if grid == nil {
		return "", ErrNilGrid
	}
	path, err := exporter.Export(ctx, ExportRequest{
		WidgetID: w.id,
		Title:    w.Title(),
		Filename: filename,
		Grid:     grid,
		At:       w.now(),
	})
	payload := map[string]any{"widget": w.id, "path": path}
	if err != nil {
		payload["error"] = err.Error()
	}
	w.telemetry.Record(ctx, "pivot.export", payload)
	if err != nil {
		return "", fmt.Errorf("pivot: export widget %s: %w", w.id, err)
	}
	return path, nil
}

func (w *Widget) publish(ctx context.Context, name string, payload map[string]any) {
	if err := w.events.Publish(ctx, Event{
		Name:     name,
		WidgetID: w.id,
		Payload:  payload,
		At:       w.now(),
	}); err != nil {
		w.telemetry.Record(ctx, "pivot.event.failed", map[string]any{"widget": w.id, "event": name, "error": err.Error()})
	}
}
