// Package lru implements a bounded read-through cache with least-recently-used
// eviction. Values are produced by a caller-supplied loader and keyed by frame
// index; the cache never invokes the loader for a key that is already resident.
package lru

import (
	"errors"
	"fmt"
)

// ErrBadCapacity is returned by New for capacities below 1.
var ErrBadCapacity = errors.New("lru: capacity must be at least 1")

// LoadFunc materializes the value for a key on a cache miss.
type LoadFunc[V any] func(key int) (V, error)

type slot[V any] struct {
	key      int
	occupied bool
	value    V
	useRank  uint64
}

// Cache is a fixed-capacity read-through LRU cache. It is not safe for
// concurrent use; callers serialize access (the media stream holds one lock
// around the full read path).
type Cache[V any] struct {
	slots   []slot[V]
	counter uint64
	load    LoadFunc[V]

	hits   uint64
	misses uint64
}

// New creates an empty cache with the given capacity. A capacity of 1
// degenerates to "reload unless the same key repeats", which is a valid
// no-cache mode.
func New[V any](capacity int, load LoadFunc[V]) (*Cache[V], error) {
	if capacity < 1 {
		return nil, ErrBadCapacity
	}
	if load == nil {
		return nil, errors.New("lru: nil loader")
	}
	return &Cache[V]{
		slots: make([]slot[V], capacity),
		load:  load,
	}, nil
}

// Get returns the value for key, invoking the loader on a miss. The evicted
// slot is the occupied slot with the lowest use rank; ties resolve to the
// lowest slot index, which only matters before every slot has been touched.
// A loader failure propagates unchanged and leaves the cache as it was: the
// victim slot keeps its previous key and value.
func (c *Cache[V]) Get(key int) (V, error) {
	if s := c.lookup(key); s != nil {
		c.hits++
		c.counter++
		s.useRank = c.counter
		return s.value, nil
	}

	c.misses++
	victim := &c.slots[0]
	for i := 1; i < len(c.slots); i++ {
		if c.slots[i].useRank < victim.useRank {
			victim = &c.slots[i]
		}
	}

	value, err := c.load(key)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("lru: load key %d: %w", key, err)
	}

	c.counter++
	victim.key = key
	victim.occupied = true
	victim.value = value
	victim.useRank = c.counter
	return value, nil
}

func (c *Cache[V]) lookup(key int) *slot[V] {
	for i := range c.slots {
		if c.slots[i].occupied && c.slots[i].key == key {
			return &c.slots[i]
		}
	}
	return nil
}

// Contains reports whether key is resident without touching recency.
func (c *Cache[V]) Contains(key int) bool {
	return c.lookup(key) != nil
}

// Len returns the number of occupied slots.
func (c *Cache[V]) Len() int {
	n := 0
	for i := range c.slots {
		if c.slots[i].occupied {
			n++
		}
	}
	return n
}

// Cap returns the fixed capacity.
func (c *Cache[V]) Cap() int {
	return len(c.slots)
}

// Stats returns cumulative hit and miss counts.
func (c *Cache[V]) Stats() (hits, misses uint64) {
	return c.hits, c.misses
}

// Purge drops every cached value, releasing the buffers it owns. Recency
// state resets with it.
func (c *Cache[V]) Purge() {
	for i := range c.slots {
		c.slots[i] = slot[V]{}
	}
	c.counter = 0
}
