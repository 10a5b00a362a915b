// Package cache provides a bounded LRU cache keyed by string.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

const (
	// DefaultCapacity is the default maximum number of cached entries.
	DefaultCapacity = 1000
)

// LRU stores values with a least recently used eviction policy. It is safe
// for concurrent use.
type LRU[V any] struct {
	mu       sync.RWMutex
	capacity int
	items    map[string]*list.Element
	lruList  *list.List
	onEvict  func(key string, value V)

	// Metrics using atomic for lock-free access.
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry[V any] struct {
	key   string
	value V
}

// New creates a cache holding at most capacity entries. A capacity of zero
// or less uses DefaultCapacity.
func New[V any](capacity int) *LRU[V] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LRU[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// OnEvict sets a callback run for every value dropped by eviction, Set on an
// existing key, or Clear. The callback runs with the cache locked and must
// not call back into it.
func (c *LRU[V]) OnEvict(fn func(key string, value V)) *LRU[V] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
	return c
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, exists := c.items[key]
	if !exists {
		c.misses.Add(1)
		var zero V
		return zero, false
	}

	c.lruList.MoveToFront(elem)
	c.hits.Add(1)
	return elem.Value.(*entry[V]).value, true
}

// Set stores value under key. If the cache is at capacity, the least
// recently used entry is evicted.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.lruList.MoveToFront(elem)
		e := elem.Value.(*entry[V])
		c.dropped(e)
		e.value = value
		return
	}

	if c.lruList.Len() >= c.capacity {
		c.evictOldest()
	}

	c.items[key] = c.lruList.PushFront(&entry[V]{key: key, value: value})
}

// evictOldest removes the least recently used entry. Must be called with
// lock held.
func (c *LRU[V]) evictOldest() {
	elem := c.lruList.Back()
	if elem == nil {
		return
	}

	c.lruList.Remove(elem)
	e := elem.Value.(*entry[V])
	delete(c.items, e.key)
	c.dropped(e)
	c.evictions.Add(1)
}

func (c *LRU[V]) dropped(e *entry[V]) {
	if c.onEvict != nil {
		c.onEvict(e.key, e.value)
	}
}

// Clear removes all entries.
func (c *LRU[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.lruList.Front(); elem != nil; elem = elem.Next() {
		c.dropped(elem.Value.(*entry[V]))
	}
	c.items = make(map[string]*list.Element, c.capacity)
	c.lruList.Init()
}

// Stats holds cache performance metrics.
type Stats struct {
	Size      int     // Current number of entries.
	Capacity  int     // Maximum capacity.
	Hits      uint64  // Number of successful lookups.
	Misses    uint64  // Number of misses.
	Evictions uint64  // Number of evicted entries.
	HitRate   float64 // Hits / total lookups.
}

// Stats returns cache statistics.
func (c *LRU[V]) Stats() Stats {
	c.mu.RLock()
	size := c.lruList.Len()
	c.mu.RUnlock()

	hits := c.hits.Load()
	misses := c.misses.Load()

	total := hits + misses
	hitRate := 0.0
	if total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return Stats{
		Size:      size,
		Capacity:  c.capacity,
		Hits:      hits,
		Misses:    misses,
		Evictions: c.evictions.Load(),
		HitRate:   hitRate,
	}
}
