// Package cache provides content-addressed caching for derived GPU objects
// such as pipelines and descriptor sets.
//
// Entries carry a time-to-live measured in frames: every call to
// [Cache.NextFrame] decrements the TTL of all entries and evicts the ones
// that reached zero, unless they are marked persistent. Accessing an entry
// refreshes its TTL, so objects in active use never expire.
package cache

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// DefaultTTL is the number of frames an unused entry survives before
// eviction.
const DefaultTTL = 8

// Cache is a thread-safe map from content-hash keys to derived values with
// per-entry frame TTLs.
//
// The zero value is not usable; create caches with [New].
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*entry[V]
	ttl     int
	onEvict func(K, V)

	// Statistics (atomic for zero-allocation reads)
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

type entry[V any] struct {
	value      V
	ttl        int
	persistent bool
}

// Option configures a Cache during creation.
type Option[K comparable, V any] func(*Cache[K, V])

// WithTTL sets the number of frames an unused entry survives. Values below 1
// fall back to [DefaultTTL].
func WithTTL[K comparable, V any](frames int) Option[K, V] {
	return func(c *Cache[K, V]) {
		if frames >= 1 {
			c.ttl = frames
		}
	}
}

// WithEvict registers a callback invoked for every evicted entry, outside
// the cache lock. Use it to destroy the underlying GPU object.
func WithEvict[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *Cache[K, V]) { c.onEvict = fn }
}

// New creates an empty cache.
func New[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		entries: make(map[K]*entry[V]),
		ttl:     DefaultTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value cached under key, refreshing its TTL on a hit.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	e.ttl = c.ttl
	return e.value, true
}

// GetOrCreate returns the value cached under key, creating it with create on
// a miss. The TTL is refreshed on access either way. If create fails,
// nothing is cached and the error is returned.
//
// create runs under the cache lock: concurrent callers of the same key wait
// rather than duplicating expensive GPU object creation.
func (c *Cache[K, V]) GetOrCreate(key K, create func() (V, error)) (V, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.hits.Add(1)
		e.ttl = c.ttl
		return e.value, nil
	}
	c.misses.Add(1)
	value, err := create()
	if err != nil {
		var zero V
		return zero, err
	}
	c.entries[key] = &entry[V]{value: value, ttl: c.ttl}
	return value, nil
}

// Put stores value under key with a fresh TTL, replacing any existing entry.
func (c *Cache[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &entry[V]{value: value, ttl: c.ttl}
}

// SetPersistent marks an entry as exempt from TTL eviction. It reports
// whether the key was present.
func (c *Cache[K, V]) SetPersistent(key K, persistent bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok {
		e.persistent = persistent
	}
	return ok
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// NextFrame advances the cache by one frame: every entry's TTL is
// decremented and expired, non-persistent entries are evicted. Call it once
// per frame.
func (c *Cache[K, V]) NextFrame() {
	type evicted struct {
		key   K
		value V
	}
	var gone []evicted

	c.mu.Lock()
	for key, e := range c.entries {
		if e.persistent {
			continue
		}
		e.ttl--
		if e.ttl <= 0 {
			gone = append(gone, evicted{key: key, value: e.value})
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()

	if len(gone) > 0 {
		c.evictions.Add(uint64(len(gone)))
		if c.onEvict != nil {
			for _, e := range gone {
				c.onEvict(e.key, e.value)
			}
		}
	}
}

// Stats reports cache hit, miss and eviction counts.
func (c *Cache[K, V]) Stats() (hits, misses, evictions uint64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load()
}

// HashString computes the FNV-1a hash of a string, for building
// content-addressed keys.
func HashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s)) // fnv.Write never returns an error
	return h.Sum64()
}

// HashBytes computes the FNV-1a hash of the concatenation of the given byte
// slices, for content-addressing composite descriptions.
func HashBytes(parts ...[]byte) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write(p)
	}
	return h.Sum64()
}
