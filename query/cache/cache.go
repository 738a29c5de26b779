// Package cache provides a size-bounded LRU cache with hit statistics.
package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is used when a non-positive size is requested.
const DefaultSize = 256

// Stats represents cache statistics
type Stats struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	Size      int     `json:"size"`
	MaxSize   int     `json:"maxSize"`
	HitRate   float64 `json:"hitRate"`
}

// LRU is a concurrency-safe least-recently-used cache.
type LRU[K comparable, V any] struct {
	entries   *lru.Cache[K, V]
	maxSize   int
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates an LRU holding at most size entries.
func New[K comparable, V any](size int) *LRU[K, V] {
	return NewWithEvict[K, V](size, nil)
}

// NewWithEvict creates an LRU that calls onEvict for every entry dropped
// to make room or removed by Clear. onEvict runs synchronously inside the
// Set or Clear call that dropped the entry.
func NewWithEvict[K comparable, V any](size int, onEvict func(K, V)) *LRU[K, V] {
	if size <= 0 {
		size = DefaultSize
	}
	c := &LRU[K, V]{maxSize: size}
	// lru.NewWithEvict only fails for a non-positive size.
	c.entries, _ = lru.NewWithEvict[K, V](size, func(k K, v V) {
		c.evictions.Add(1)
		if onEvict != nil {
			onEvict(k, v)
		}
	})
	return c
}

// Get retrieves a value and marks it as recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value, evicting the least recently used entry when full.
func (c *LRU[K, V]) Set(key K, value V) {
	c.entries.Add(key, value)
}

// GetOrLoad returns the cached value for key, calling load on a miss. Load
// errors are returned and not cached.
func (c *LRU[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(key, v)
	return v, nil
}

// Clear removes all entries. Statistics are kept.
func (c *LRU[K, V]) Clear() {
	n := c.entries.Len()
	c.entries.Purge()
	// Purge reports each entry to the eviction callback.
	c.evictions.Add(-int64(n))
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	return c.entries.Len()
}

// GetStats returns cache statistics
func (c *LRU[K, V]) GetStats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.entries.Len(),
		MaxSize:   c.maxSize,
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
