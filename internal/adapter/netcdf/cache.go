package netcdf

import (
	"context"

	"github.com/couchcryptid/storm-data-tbb/internal/adapter/lru"
	"github.com/couchcryptid/storm-data-tbb/internal/domain"
)

// Cache lookup results passed to a LookupHook.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// LookupHook observes every cache lookup.
type LookupHook func(result string)

// CachedSource wraps a GridSource with an in-memory LRU keyed by path.
// Cached grids are shared between runs and must be treated as read-only.
type CachedSource struct {
	inner    domain.GridSource
	cache    *lru.Cache[*domain.Grid]
	onLookup LookupHook
}

// NewCachedSource creates a cache decorator around a grid source. onLookup may be nil.
func NewCachedSource(inner domain.GridSource, maxEntries int, onLookup LookupHook) *CachedSource {
	return &CachedSource{
		inner:    inner,
		cache:    lru.New[*domain.Grid](maxEntries),
		onLookup: onLookup,
	}
}

func (c *CachedSource) Load(ctx context.Context, path string) (*domain.Grid, error) {
	if g, ok := c.cache.Get(path); ok {
		c.observe(CacheHit)
		return g, nil
	}
	c.observe(CacheMiss)

	g, err := c.inner.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	c.cache.Put(path, g)
	return g, nil
}

func (c *CachedSource) observe(result string) {
	if c.onLookup != nil {
		c.onLookup(result)
	}
}
