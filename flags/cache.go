package flags

import (
	"strings"
	"sync"
	"time"
)

// StatusCache memoizes flag decisions for a short TTL so hot paths
// like autocomplete do not re-evaluate the same grant on every
// keystroke. The clock is injectable so tests can advance time
// deterministically.
type StatusCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]cacheEntry
}

type cacheEntry struct {
	decision Decision
	expires  time.Time
}

// NewStatusCache returns a cache whose entries live for ttl.
func NewStatusCache(ttl time.Duration) *StatusCache {
	return NewStatusCacheWithClock(ttl, time.Now)
}

// NewStatusCacheWithClock is NewStatusCache with an injected clock.
func NewStatusCacheWithClock(ttl time.Duration, now func() time.Time) *StatusCache {
	return &StatusCache{
		ttl:   ttl,
		now:   now,
		items: make(map[string]cacheEntry),
	}
}

func (c *StatusCache) get(key string) (Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.items[key]
	if !ok {
		return Decision{}, false
	}
	if c.now().After(entry.expires) {
		delete(c.items, key)
		return Decision{}, false
	}
	return entry.decision, true
}

func (c *StatusCache) put(key string, d Decision) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[key] = cacheEntry{decision: d, expires: c.now().Add(c.ttl)}
}

// Invalidate drops every cached decision for a subject, used after a
// grant or revoke so the next evaluation sees fresh state.
func (c *StatusCache) Invalidate(subjectID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if strings.HasPrefix(k, subjectID+"/") {
			delete(c.items, k)
		}
	}
}
