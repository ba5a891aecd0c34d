package feed

import (
	"context"
	"sync"
	"time"

	"spotenginev1/internal/model"
)

// Cache is a bounded TTL cache for candle batches. It is injected into
// CachedSource rather than constructed inside it, so tests and alternative
// eviction policies can swap it out.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type cacheEntry struct {
	candles  []model.Candle
	storedAt time.Time
}

// NewCache creates a cache holding at most maxEntries keys, each valid for ttl.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return &Cache{
		entries:    make(map[string]cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get returns the cached batch for key, or nil if absent or expired.
func (c *Cache) Get(key string) []model.Candle {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.now().Sub(e.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil
	}
	return e.candles
}

// Put stores a batch. When the cache is full, the oldest entry is evicted.
func (c *Cache) Put(key string, candles []model.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		var oldestKey string
		var oldestAt time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.storedAt.Before(oldestAt) {
				oldestKey, oldestAt = k, e.storedAt
			}
		}
		delete(c.entries, oldestKey)
	}
	c.entries[key] = cacheEntry{candles: candles, storedAt: c.now()}
}

// Len returns the number of live entries (including expired but unevicted).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// CachedSource serves FetchCandles from the cache when a fresh batch exists,
// hitting the underlying source only on miss or expiry.
type CachedSource struct {
	src   model.CandleSource
	cache *Cache
}

var _ model.CandleSource = (*CachedSource)(nil)

// NewCachedSource wraps src with the given cache.
func NewCachedSource(src model.CandleSource, cache *Cache) *CachedSource {
	return &CachedSource{src: src, cache: cache}
}

func (s *CachedSource) FetchCandles(ctx context.Context, limit int) ([]model.Candle, error) {
	key := s.src.Name() + ":" + model.Itoa(limit)
	if cached := s.cache.Get(key); cached != nil {
		return cached, nil
	}
	candles, err := s.src.FetchCandles(ctx, limit)
	if err != nil {
		return nil, err
	}
	s.cache.Put(key, candles)
	return candles, nil
}

func (s *CachedSource) Name() string {
	return s.src.Name()
}
