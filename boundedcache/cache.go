/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package boundedcache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
)

type cacheItem[K comparable, V any] struct {
	key   K
	entry *Entry[V]
}

// Cache is a bounded key-entry store with first-in-first-out eviction and Prometheus metrics.
//
// Entries are ordered by insertion. When an insertion would exceed the capacity,
// the entry inserted earliest among the present ones is evicted, regardless of how often it was read.
// Reads never change the order.
type Cache[K comparable, V any] struct {
	maxEntries int

	mu        sync.Mutex
	order     *list.List          // front is the oldest entry
	items     map[K]*list.Element // value is an order element
	hits      uint64
	misses    uint64
	evictions uint64

	loads singleFlightGroup[K, *Entry[V]]

	onEvicted        func(key K, entry *Entry[V])
	metricsCollector MetricsCollector
}

// Options represents options for the cache.
type Options[K comparable, V any] struct {
	// OnEvicted is called for every entry evicted due to the capacity limit.
	// It is called after the cache lock is released, so it may use the cache.
	// Entries removed via Remove or Purge are not reported.
	OnEvicted func(key K, entry *Entry[V])
}

// Stats is a point-in-time snapshot of cache usage.
type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// New creates a new Cache with the provided maximum number of entries and metrics collector.
func New[K comparable, V any](maxEntries int, metricsCollector MetricsCollector) (*Cache[K, V], error) {
	return NewWithOpts[K, V](maxEntries, metricsCollector, Options[K, V]{})
}

// NewWithOpts creates a new Cache with the provided maximum number of entries, metrics collector, and options.
// Metrics collector is used to collect statistics about cache usage.
// It can be nil, in this case, metrics will be disabled.
func NewWithOpts[K comparable, V any](
	maxEntries int, metricsCollector MetricsCollector, opts Options[K, V],
) (*Cache[K, V], error) {
	if maxEntries <= 0 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidCapacity, maxEntries)
	}
	if metricsCollector == nil {
		metricsCollector = disabledMetricsCollector
	}
	return &Cache[K, V]{
		maxEntries:       maxEntries,
		order:            list.New(),
		items:            make(map[K]*list.Element, maxEntries),
		onEvicted:        opts.OnEvicted,
		metricsCollector: metricsCollector,
	}, nil
}

// Get returns the entry stored for the key.
// The returned entry is shared with every other caller; acquire its lock before reading or mutating the value.
func (c *Cache[K, V]) Get(key K) (entry *Entry[V], ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.get(key)
}

// Insert stores a new entry for the key and returns it.
// If the key is already present, ErrDuplicateKey is returned and the cache is not changed.
// If the cache is full, the oldest entry is evicted first.
func (c *Cache[K, V]) Insert(key K, value V) (*Entry[V], error) {
	c.mu.Lock()
	if _, exists := c.items[key]; exists {
		c.mu.Unlock()
		c.metricsCollector.IncDuplicates()
		return nil, fmt.Errorf("%w: %v", ErrDuplicateKey, key)
	}
	entry, evicted := c.insertNew(key, value)
	c.mu.Unlock()

	c.notifyEvicted(evicted)
	return entry, nil
}

// GetOrInsert returns the entry stored for the key.
// If the key does not exist, the value is computed by compute outside the cache lock and inserted.
// Concurrent callers missing the same key share a single computation.
// If compute fails, its error is returned and the cache is not changed.
// exists reports whether the entry was found without waiting for a computation.
func (c *Cache[K, V]) GetOrInsert(
	ctx context.Context, key K, compute func(ctx context.Context) (V, error),
) (entry *Entry[V], exists bool, err error) {
	c.mu.Lock()
	entry, exists = c.get(key)
	c.mu.Unlock()
	if exists {
		return entry, true, nil
	}

	entry, _, err = c.loads.Do(ctx, key, func() (*Entry[V], error) {
		c.mu.Lock()
		if elem, ok := c.items[key]; ok {
			c.mu.Unlock()
			return elem.Value.(*cacheItem[K, V]).entry, nil
		}
		c.mu.Unlock()

		value, computeErr := compute(ctx)
		if computeErr != nil {
			return nil, computeErr
		}

		c.mu.Lock()
		if elem, ok := c.items[key]; ok {
			// Inserted by a concurrent Insert while computing.
			c.mu.Unlock()
			return elem.Value.(*cacheItem[K, V]).entry, nil
		}
		newEntry, evicted := c.insertNew(key, value)
		c.mu.Unlock()

		c.notifyEvicted(evicted)
		return newEntry, nil
	})
	if err != nil {
		return nil, false, err
	}
	return entry, false, nil
}

// Remove deletes the entry for the key and reports whether it was present.
// A guard already held for the removed entry stays valid.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.items, key)
	c.metricsCollector.SetAmount(len(c.items))
	return true
}

// Purge removes all entries from the cache.
// Removed entries are not counted as evictions and OnEvicted is not called for them.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[K]*list.Element, c.maxEntries)
	c.order.Init()
	c.metricsCollector.SetAmount(0)
}

// Keys returns the keys of all entries, oldest first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*cacheItem[K, V]).key)
	}
	return keys
}

// Len returns the number of entries in the cache.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cap returns the maximum number of entries in the cache.
func (c *Cache[K, V]) Cap() int {
	return c.maxEntries
}

// IsEmpty reports whether the cache holds no entries.
func (c *Cache[K, V]) IsEmpty() bool {
	return c.Len() == 0
}

// IsFull reports whether the cache holds the maximum number of entries,
// so the next insertion of a new key evicts the oldest entry.
func (c *Cache[K, V]) IsFull() bool {
	return c.Len() == c.maxEntries
}

// Stats returns a snapshot of cache usage.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.items),
		Capacity:  c.maxEntries,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

func (c *Cache[K, V]) get(key K) (entry *Entry[V], ok bool) {
	elem, hit := c.items[key]
	if !hit {
		c.misses++
		c.metricsCollector.IncMisses()
		return nil, false
	}
	c.hits++
	c.metricsCollector.IncHits()
	return elem.Value.(*cacheItem[K, V]).entry, true
}

// insertNew must be called with c.mu held and only for a key that is not present.
func (c *Cache[K, V]) insertNew(key K, value V) (*Entry[V], *cacheItem[K, V]) {
	var evicted *cacheItem[K, V]
	if len(c.items) >= c.maxEntries {
		evicted = c.removeOldest()
	}
	entry := newEntry(value)
	c.items[key] = c.order.PushBack(&cacheItem[K, V]{key: key, entry: entry})
	c.metricsCollector.SetAmount(len(c.items))
	if evicted != nil {
		c.evictions++
		c.metricsCollector.AddEvictions(1)
	}
	return entry, evicted
}

func (c *Cache[K, V]) removeOldest() *cacheItem[K, V] {
	elem := c.order.Front()
	if elem == nil {
		return nil
	}
	c.order.Remove(elem)
	item := elem.Value.(*cacheItem[K, V])
	delete(c.items, item.key)
	return item
}

func (c *Cache[K, V]) notifyEvicted(item *cacheItem[K, V]) {
	if item == nil || c.onEvicted == nil {
		return
	}
	c.onEvicted(item.key, item.entry)
}
