package mapbox

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/globe-observer-qa/internal/domain"
	"github.com/couchcryptid/globe-observer-qa/internal/observability"
)

// CachedLandChecker wraps a LandChecker with an in-memory LRU cache keyed on
// the coordinate rounded to 4 decimal places (about 11 m).
type CachedLandChecker struct {
	inner   domain.LandChecker
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedLandChecker creates a cache decorator around a land checker.
func NewCachedLandChecker(inner domain.LandChecker, maxEntries int, metrics *observability.Metrics) *CachedLandChecker {
	return &CachedLandChecker{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedLandChecker) IsLand(ctx context.Context, lat, lon float64) (bool, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	if land, ok := c.cache.get(key); ok {
		c.metrics.LandCheckCache.WithLabelValues("hit").Inc()
		return land, nil
	}
	c.metrics.LandCheckCache.WithLabelValues("miss").Inc()

	land, err := c.inner.IsLand(ctx, lat, lon)
	if err != nil {
		// Errors are not cached so the next lookup retries.
		return false, err
	}
	c.cache.put(key, land)
	return land, nil
}

// Len returns the number of cached coordinates.
func (c *CachedLandChecker) Len() int { return c.cache.len() }

// lruCache is a simple thread-safe LRU cache of land check results.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value bool
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return false, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
