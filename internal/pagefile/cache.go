package pagefile

import (
	"container/list"
	"sync"
)

// cacheEntry mirrors the teacher's lib/kayveedb.go CacheEntry: the decoded
// page, its position in the LRU order list, and the key it was stored
// under.
type cacheEntry[V any] struct {
	offset  int64
	value   V
	element *list.Element
}

// Cache is an LRU read cache over decoded, offset-keyed pages. It is
// adapted from the teacher's Cache (sync.Map + container/list), but drops
// the dirty/flush-on-evict path: history index pages are immutable once
// written (spec.md's "On-disk records: immutable once written"), so an
// evicted entry is simply dropped, never written back.
type Cache[V any] struct {
	mu    sync.Mutex
	store map[int64]*cacheEntry[V]
	order *list.List
	size  int
}

// NewCache returns an LRU cache holding at most size entries. size <= 0
// means unbounded.
func NewCache[V any](size int) *Cache[V] {
	return &Cache[V]{
		store: make(map[int64]*cacheEntry[V]),
		order: list.New(),
		size:  size,
	}
}

// Get retrieves the page cached for offset, moving it to the front of the
// LRU order on a hit.
func (c *Cache[V]) Get(offset int64) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.store[offset]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(entry.element)
	return entry.value, true
}

// Put inserts or updates the page cached for offset, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache[V]) Put(offset int64, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.store[offset]; ok {
		entry.value = value
		c.order.MoveToFront(entry.element)
		return
	}

	if c.size > 0 && c.order.Len() >= c.size {
		c.evictLocked()
	}

	element := c.order.PushFront(offset)
	c.store[offset] = &cacheEntry[V]{offset: offset, value: value, element: element}
}

func (c *Cache[V]) evictLocked() {
	tail := c.order.Back()
	if tail == nil {
		return
	}
	offset := tail.Value.(int64)
	c.order.Remove(tail)
	delete(c.store, offset)
}

// Len returns the number of pages currently cached.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
