package digest

import (
	"sync"
	"time"

	"github.com/Synergy-kakaotrack/moa-be/internal/model"
)

// DefaultStatusTTL is how long the last attempt stays visible to readers.
const DefaultStatusTTL = 10 * time.Minute

type statusEntry struct {
	outcome model.Outcome
	expires time.Time
}

// StatusCache remembers the most recent refresh outcome per subject key for a
// fixed TTL. Reads do not extend an entry's life.
type StatusCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]statusEntry
}

// NewStatusCache creates a cache. A nil now uses time.Now.
func NewStatusCache(ttl time.Duration, now func() time.Time) *StatusCache {
	if ttl <= 0 {
		ttl = DefaultStatusTTL
	}
	if now == nil {
		now = time.Now
	}
	return &StatusCache{ttl: ttl, now: now, entries: make(map[string]statusEntry)}
}

// Put overwrites the outcome for key.
func (c *StatusCache) Put(key string, o model.Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = statusEntry{outcome: o, expires: c.now().Add(c.ttl)}
}

// Get returns the live outcome for key. Expired entries are evicted.
func (c *StatusCache) Get(key string) (model.Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return model.Outcome{}, false
	}
	if !c.now().Before(e.expires) {
		delete(c.entries, key)
		return model.Outcome{}, false
	}
	return e.outcome, true
}

// Len returns the number of stored entries, expired ones included.
func (c *StatusCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
