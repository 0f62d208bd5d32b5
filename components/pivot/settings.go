package pivot

import "sync"

// Settings is the host-owned store of per-widget preferences the table card
// consults. The pivot core never reads global state directly.
type Settings interface {
	BreakGlobalFilters(widgetID string) bool
	SetBreakGlobalFilters(widgetID string, enabled bool)
	DefaultDatasource() string
	SetDefaultDatasource(id string)
}

// InMemorySettings is a concurrency-safe Settings implementation.
type InMemorySettings struct {
	mu         sync.RWMutex
	breaks     map[string]bool
	datasource string
}

// NewInMemorySettings returns empty settings.
func NewInMemorySettings() *InMemorySettings {
	return &InMemorySettings{breaks: map[string]bool{}}
}

func (s *InMemorySettings) BreakGlobalFilters(widgetID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.breaks[widgetID]
}

func (s *InMemorySettings) SetBreakGlobalFilters(widgetID string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !enabled {
		delete(s.breaks, widgetID)
		return
	}
	s.breaks[widgetID] = true
}

func (s *InMemorySettings) DefaultDatasource() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.datasource
}

func (s *InMemorySettings) SetDefaultDatasource(id string) {
	s.mu.Lock()
	s.datasource = id
	s.mu.Unlock()
}
