package routing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/transfer-booking/internal/models"
)

// Cache is a tiny in-memory cache for distance lookups keyed by coords.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	v  Result
	ts time.Time
}

// NewCache creates a cache with the provided TTL.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Get returns cached value and true if present and not expired.
func (c *Cache) Get(_ context.Context, a, b models.Coord) (Result, bool) {
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return Result{}, false
	}
	if c.now().Sub(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return Result{}, false
	}
	return e.v, true
}

// Set stores a value in the cache.
func (c *Cache) Set(_ context.Context, a, b models.Coord, v Result) {
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: v, ts: c.now()}
	c.mu.Unlock()
}

// ResultCache is implemented by Cache and RedisCache.
type ResultCache interface {
	Get(ctx context.Context, a, b models.Coord) (Result, bool)
	Set(ctx context.Context, a, b models.Coord, v Result)
}

// Cached decorates a Calculator with a cache. Only successful lookups are
// stored, so a failed route is asked again next time.
type Cached struct {
	Next  Calculator
	Cache ResultCache
}

func (c Cached) DrivingDistance(ctx context.Context, from, to models.Coord) (Result, error) {
	if v, ok := c.Cache.Get(ctx, from, to); ok {
		return v, nil
	}
	v, err := c.Next.DrivingDistance(ctx, from, to)
	if err != nil {
		return Result{}, err
	}
	c.Cache.Set(ctx, from, to, v)
	return v, nil
}
