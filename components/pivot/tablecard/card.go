// Package tablecard fetches pivot data for table widgets: one query per
// measure, issued sequentially, merged into a single metric-tagged dataset.
package tablecard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goliatone/go-pivot/components/pivot"
	"github.com/goliatone/go-pivot/pkg/query"
	"github.com/google/uuid"
)

var (
	// ErrStaleResult is returned when a newer fetch for the same widget
	// started before this one finished.
	ErrStaleResult = errors.New("tablecard: stale result")
	// ErrNoSource is returned when neither the request nor the settings name
	// a source.
	ErrNoSource = errors.New("tablecard: no source")
	// ErrNoExecutor is returned when the card has no query executor.
	ErrNoExecutor = errors.New("tablecard: query executor is not configured")
)

// QueryError wraps a failed measure query.
type QueryError struct {
	WidgetID  string
	Source    string
	Measure   string
	RequestID string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("tablecard: query %s for measure %q of widget %s: %v", e.Source, e.Measure, e.WidgetID, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Request describes what one widget wants to display.
type Request struct {
	WidgetID      string
	Source        string
	Config        pivot.Config
	Values        []pivot.ValueSpec
	Style         pivot.Style
	Where         pivot.Where
	GlobalWhere   pivot.Where
	CustomColumns []pivot.CustomColumn
	Shares        map[string]any
}

// Options configures a Card.
type Options struct {
	Executor  query.Executor
	Settings  pivot.Settings
	Telemetry pivot.Telemetry
	NewID     func() string
	Now       func() time.Time
}

// Card runs widget fetches. For each widget only the latest fetch may
// publish results; starting a new fetch cancels the previous one.
type Card struct {
	exec      query.Executor
	settings  pivot.Settings
	telemetry pivot.Telemetry
	newID     func() string
	now       func() time.Time

	mu       sync.Mutex
	inflight map[string]*fetch
	latest   map[string]uint64
	gen      uint64
}

type fetch struct {
	gen    uint64
	cancel context.CancelFunc
}

// New builds a card.
func New(opts Options) *Card {
	if opts.Settings == nil {
		opts.Settings = pivot.NewInMemorySettings()
	}
	if opts.Telemetry == nil {
		opts.Telemetry = noopTelemetry{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Card{
		exec:      opts.Executor,
		settings:  opts.Settings,
		telemetry: opts.Telemetry,
		newID:     opts.NewID,
		now:       opts.Now,
		inflight:  map[string]*fetch{},
		latest:    map[string]uint64{},
	}
}

type noopTelemetry struct{}

func (noopTelemetry) Record(context.Context, string, map[string]any) {}

// Fetch runs every measure query of req in order and returns widget props.
// The matrix is never fed partial data: any failing measure aborts the fetch
// with a *QueryError.
func (c *Card) Fetch(ctx context.Context, req Request) (pivot.Props, error) {
	props, _, err := c.fetch(ctx, req)
	return props, err
}

func (c *Card) fetch(ctx context.Context, req Request) (pivot.Props, uint64, error) {
	if c.exec == nil {
		return pivot.Props{}, 0, ErrNoExecutor
	}
	source := req.Source
	if source == "" {
		source = c.settings.DefaultDatasource()
	}
	if source == "" {
		return pivot.Props{}, 0, ErrNoSource
	}

	fctx, gen := c.begin(ctx, req.WidgetID)
	defer c.end(req.WidgetID, gen)

	spec := req.Config.ToSpec(req.Values)
	where := pivot.MergeWhere(req.GlobalWhere, req.Where, c.settings.BreakGlobalFilters(req.WidgetID))
	custom := pivot.ColumnsInScope(req.CustomColumns, source)
	dims := spec.DimensionFields()
	started := c.now()

	// One distinct measure keeps every measure raw so the merged rows share
	// one granularity.
	ungrouped := false
	for _, m := range spec.Measures {
		if m.Aggregator == pivot.AggDistinct {
			ungrouped = true
		}
	}

	results := make([]pivot.Dataset, 0, len(spec.Measures))
	for _, m := range spec.Measures {
		qs := query.Spec{
			RequestID:     c.newID(),
			Source:        source,
			Dimensions:    dims,
			Where:         where,
			Aggregator:    m.Aggregator,
			CustomColumns: custom,
			Ungrouped:     ungrouped,
		}
		if m.Field != "" {
			qs.Measures = []string{m.Field}
		}
		ds, err := c.exec.ExecuteSpec(fctx, qs)
		if !c.current(req.WidgetID, gen) {
			c.telemetry.Record(ctx, "pivot.fetch.stale", map[string]any{
				"widget":     req.WidgetID,
				"request_id": qs.RequestID,
			})
			return pivot.Props{}, 0, ErrStaleResult
		}
		if err != nil {
			return pivot.Props{}, 0, &QueryError{
				WidgetID:  req.WidgetID,
				Source:    source,
				Measure:   m.DisplayLabel(),
				RequestID: qs.RequestID,
				Err:       err,
			}
		}
		results = append(results, ds)
	}

	var merged pivot.Dataset
	if spec.MultiMeasure() {
		merged = MergeTagged(results, spec.Measures)
	} else if len(results) > 0 {
		merged = results[0]
	}
	c.telemetry.Record(ctx, "pivot.fetch", map[string]any{
		"widget":      req.WidgetID,
		"source":      source,
		"measures":    len(spec.Measures),
		"rows":        len(merged.Rows),
		"duration_ms": c.now().Sub(started).Milliseconds(),
	})
	return pivot.Props{
		Columns:    merged.Columns,
		Rows:       merged.Rows,
		Aggregated: merged.Aggregated,
		Config:     req.Config,
		Style:      req.Style,
		Values:     req.Values,
		Shares:     req.Shares,
		Identity:   identity(source, where),
	}, gen, nil
}

// Load fetches req and hands the result to w. It reports whether the
// widget's dataset identity changed. A result overtaken by a newer fetch of
// the same widget is dropped with ErrStaleResult.
func (c *Card) Load(ctx context.Context, w *pivot.Widget, req Request) (bool, error) {
	if req.WidgetID == "" {
		req.WidgetID = w.ID()
	}
	props, gen, err := c.fetch(ctx, req)
	if err != nil {
		return false, err
	}
	return c.apply(ctx, w, req.WidgetID, gen, props)
}

// apply hands props to w while holding the card lock, so no newer fetch can
// begin between the freshness check and SetProps.
func (c *Card) apply(ctx context.Context, w *pivot.Widget, widgetID string, gen uint64, props pivot.Props) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest[widgetID] != gen {
		c.telemetry.Record(ctx, "pivot.fetch.stale", map[string]any{"widget": widgetID})
		return false, ErrStaleResult
	}
	return w.SetProps(ctx, props), nil
}

// Cancel aborts the in-flight fetch of a widget, if any.
func (c *Card) Cancel(widgetID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.inflight[widgetID]; ok {
		f.cancel()
		delete(c.inflight, widgetID)
	}
}

func (c *Card) begin(ctx context.Context, widgetID string) (context.Context, uint64) {
	fctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.inflight[widgetID]; ok {
		prev.cancel()
	}
	c.gen++
	c.inflight[widgetID] = &fetch{gen: c.gen, cancel: cancel}
	c.latest[widgetID] = c.gen
	return fctx, c.gen
}

func (c *Card) current(widgetID string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.inflight[widgetID]
	return ok && f.gen == gen
}

func (c *Card) end(widgetID string, gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.inflight[widgetID]; ok && f.gen == gen {
		f.cancel()
		delete(c.inflight, widgetID)
	}
}

// MergeTagged concatenates per-measure results into one dataset. Columns
// are the union in first-seen order plus the metric column, and every row is
// tagged with the label of the measure it came from.
func MergeTagged(results []pivot.Dataset, measures []pivot.Measure) pivot.Dataset {
	var out pivot.Dataset
	index := map[string]int{}
	for _, ds := range results {
		for _, col := range ds.Columns {
			if _, ok := index[col]; ok || col == pivot.MetricField {
				continue
			}
			index[col] = len(out.Columns)
			out.Columns = append(out.Columns, col)
		}
	}
	metric := len(out.Columns)
	out.Columns = append(out.Columns, pivot.MetricField)

	for i, ds := range results {
		if i >= len(measures) {
			break
		}
		label := measures[i].DisplayLabel()
		out.Aggregated = out.Aggregated || ds.Aggregated
		for _, raw := range ds.Rows {
			row := make([]any, len(out.Columns))
			for j, col := range ds.Columns {
				if j >= len(raw) || col == pivot.MetricField {
					continue
				}
				row[index[col]] = raw[j]
			}
			row[metric] = label
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

func identity(source string, where pivot.Where) string {
	data, err := json.Marshal(where)
	if err != nil {
		return source
	}
	return source + "|" + string(data)
}
