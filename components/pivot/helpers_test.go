package pivot

import (
	"context"
	"sync"
	"time"
)

type fakeTimer struct {
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	wasActive := !t.stopped && !t.fired
	t.stopped = true
	return wasActive
}

// fakeScheduler records callbacks and runs them only when Fire is called.
type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
	delays []time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &fakeTimer{f: f}
	s.timers = append(s.timers, t)
	s.delays = append(s.delays, d)
	return t
}

// Fire runs every pending timer, including stopped ones when force is set,
// so tests can simulate a callback racing its cancellation.
func (s *fakeScheduler) Fire(force bool) int {
	s.mu.Lock()
	pending := append([]*fakeTimer(nil), s.timers...)
	s.timers = nil
	s.mu.Unlock()
	ran := 0
	for _, t := range pending {
		if t.fired || (t.stopped && !force) {
			continue
		}
		t.fired = true
		t.f()
		ran++
	}
	return ran
}

type recordedEvent struct {
	event   string
	payload map[string]any
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *recordingTelemetry) Record(_ context.Context, event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{event: event, payload: payload})
}

func (r *recordingTelemetry) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.event == event {
			n++
		}
	}
	return n
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Name)
	}
	return out
}

func key(parts ...string) string {
	return JoinKey(parts)
}

// salesRows is a two-level region/country dataset over two years.
func salesRows() []Row {
	return []Row{
		{"region": "EU", "country": "DE", "year": 2023, "sales": 10},
		{"region": "EU", "country": "DE", "year": 2024, "sales": 20},
		{"region": "EU", "country": "FR", "year": 2023, "sales": 5},
		{"region": "US", "country": "CA", "year": 2024, "sales": 7},
		{"region": "US", "country": "US", "year": 2023, "sales": 8},
		{"region": "US", "country": "US", "year": 2024, "sales": 2},
	}
}

func salesSpec() Spec {
	return Spec{
		RowDims:   []string{"region", "country"},
		ColDims:   []string{"year"},
		Measures:  []Measure{{Field: "sales", Aggregator: AggSum}},
		RowTotals: true,
		ColTotals: true,
	}
}

func texts(cells []Cell) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = c.Text
	}
	return out
}
