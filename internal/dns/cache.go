package dns

import (
	"sync"
	"time"
)

type cacheEntry[V any] struct {
	value     V
	err       error
	timestamp time.Time
}

// cache keeps lookup results, including failures, for a fixed time so
// repeated source IPs do not hammer the DNS server.
type cache[V any] struct {
	timeout time.Duration
	mutex   sync.Mutex
	entries map[string]cacheEntry[V]
	now     func() time.Time
}

func newCache[V any](timeout time.Duration) *cache[V] {
	return &cache[V]{
		timeout: timeout,
		entries: make(map[string]cacheEntry[V]),
		now:     time.Now,
	}
}

func (c *cache[V]) put(key string, value V, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.entries[key] = cacheEntry[V]{
		value:     value,
		err:       err,
		timestamp: c.now(),
	}
}

// get returns the cached entry. ok is false if there is no entry or it
// expired.
func (c *cache[V]) get(key string) (cacheEntry[V], bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	entry, found := c.entries[key]
	if !found {
		return cacheEntry[V]{}, false
	}
	// check if the cache expired
	if c.now().Add(-1 * c.timeout).After(entry.timestamp) {
		delete(c.entries, key)
		return cacheEntry[V]{}, false
	}
	return entry, true
}
