package pivot

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// LayoutCache is an in-memory TTL cache of computed layouts shared by widgets.
type LayoutCache struct {
	ttl     time.Duration
	mu      sync.RWMutex
	entries map[string]cachedLayout
}

type cachedLayout struct {
	layout  *Layout
	expires time.Time
}

// NewLayoutCache builds a cache with the provided TTL. A non-positive TTL
// disables caching.
func NewLayoutCache(ttl time.Duration) *LayoutCache {
	return &LayoutCache{
		ttl:     ttl,
		entries: make(map[string]cachedLayout),
	}
}

// GetOrBuild returns a cached layout or builds and stores a new one. built is
// true when build ran.
func (c *LayoutCache) GetOrBuild(key string, build func() *Layout) (layout *Layout, built bool) {
	if l, ok := c.get(key); ok {
		return l, false
	}
	l := build()
	c.set(key, l)
	return l, true
}

// Len returns the number of live entries.
func (c *LayoutCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops expired entries.
func (c *LayoutCache) Purge() {
	if c == nil {
		return
	}
	now := time.Now()
	c.mu.Lock()
	for key, entry := range c.entries {
		if now.After(entry.expires) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
}

func (c *LayoutCache) get(key string) (*Layout, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || time.Now().After(entry.expires) {
		if ok {
			c.mu.Lock()
			delete(c.entries, key)
			c.mu.Unlock()
		}
		return nil, false
	}
	return entry.layout, true
}

func (c *LayoutCache) set(key string, layout *Layout) {
	if c == nil || c.ttl <= 0 || layout == nil {
		return
	}
	c.mu.Lock()
	c.entries[key] = cachedLayout{
		layout:  layout,
		expires: time.Now().Add(c.ttl),
	}
	c.mu.Unlock()
}

// contentHash returns a deterministic sha1 over the JSON encoding of parts.
func contentHash(parts ...any) string {
	h := sha1.New()
	enc := json.NewEncoder(h)
	for _, part := range parts {
		if err := enc.Encode(part); err != nil {
			fmt.Fprintf(h, "%#v\n", part)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}
