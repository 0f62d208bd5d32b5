package main

import (
	"sync"
	"time"

	"github.com/goliatone/go-pivot/components/pivot"
)

// settleScheduler queues transition callbacks until Settle. Terminal
// sessions have nothing to animate, so each action settles right away.
type settleScheduler struct {
	mu      sync.Mutex
	pending []*settleTimer
}

type settleTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *settleTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

func (s *settleScheduler) AfterFunc(_ time.Duration, f func()) pivot.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &settleTimer{f: f}
	s.pending = append(s.pending, t)
	return t
}

// Settle runs every callback that was not stopped.
func (s *settleScheduler) Settle() {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()
	for _, t := range pending {
		t.mu.Lock()
		run := !t.stopped
		t.stopped = true
		t.mu.Unlock()
		if run {
			t.f()
		}
	}
}
