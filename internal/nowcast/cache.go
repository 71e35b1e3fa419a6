package nowcast

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// resultCache is a small TTL cache for nowcast results, keyed by
// model|horizon. Entries expire rather than evict: the key space is bounded
// by models x horizons.
type resultCache struct {
	ttl   time.Duration
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result  *Result
	expires time.Time
}

func newResultCache(ttl time.Duration, clock clockwork.Clock) *resultCache {
	return &resultCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]cacheEntry),
	}
}

func (c *resultCache) get(key string) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.result, true
}

func (c *resultCache) put(key string, result *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: result, expires: c.clock.Now().Add(c.ttl)}
}

// invalidate drops all entries. Called after new readings arrive.
func (c *resultCache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
