package embedder

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is used when a non-positive capacity is requested
const DefaultCacheSize = 10000

// CacheStats is a point-in-time snapshot of the cache counters
type CacheStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
	Capacity  int
}

// HitRate returns hits / (hits + misses), or 0 before any lookup
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a content-addressed LRU cache of embedding vectors.
// Keys are the SHA-256 of the exact text; callers shape text upstream.
// It is safe for concurrent use and never a source of truth.
type Cache struct {
	cache    *lru.Cache[string, []float32]
	capacity int

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	cache, err := lru.New[string, []float32](capacity)
	if err != nil {
		// Only fails for non-positive sizes, which are excluded above
		panic("embedder: failed to create LRU cache: " + err.Error())
	}
	return &Cache{
		cache:    cache,
		capacity: capacity,
	}
}

// Get returns a copy of the cached vector for text.
// A hit promotes the entry to most recently used.
func (c *Cache) Get(text string) ([]float32, bool) {
	vec, ok := c.cache.Get(ComputeHash(text))
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)

	// Return a copy so callers cannot mutate the cached value
	out := make([]float32, len(vec))
	copy(out, vec)
	return out, true
}

// Put stores a copy of vector for text, evicting the least recently used
// entry when the cache is full. Concurrent puts of the same text: last write wins.
func (c *Cache) Put(text string, vector []float32) {
	stored := make([]float32, len(vector))
	copy(stored, vector)

	if evicted := c.cache.Add(ComputeHash(text), stored); evicted {
		c.evictions.Add(1)
	}
}

// Contains reports presence without touching recency or counters
func (c *Cache) Contains(text string) bool {
	return c.cache.Contains(ComputeHash(text))
}

// Len returns the current number of cached vectors
func (c *Cache) Len() int {
	return c.cache.Len()
}

// Purge empties the cache; counters are kept
func (c *Cache) Purge() {
	c.cache.Purge()
}

// Stats returns a snapshot of the cache counters
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Size:      c.cache.Len(),
		Capacity:  c.capacity,
	}
}
