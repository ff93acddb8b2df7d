package pricing

import (
	"context"
	"time"

	"github.com/turtacn/KeyQTO/internal/domain/component"
	"github.com/turtacn/KeyQTO/internal/infrastructure/database/redis"
	"github.com/turtacn/KeyQTO/internal/infrastructure/monitoring/logging"
)

const cacheKeyPrefix = "price:"

// Lookup resolves labels to price items.
type Lookup interface {
	Lookup(ctx context.Context, label string) (*component.PriceItem, bool)
}

// CachedLookup is a read-through cache in front of another Lookup.  Misses
// are cached too.  Cache failures fall back to the wrapped lookup.
type CachedLookup struct {
	next    Lookup
	cache   redis.Cache
	ttl     time.Duration
	logger  logging.Logger
	metrics CacheMetrics
}

// CacheMetrics counts cache hits and misses.
type CacheMetrics interface {
	RecordCacheAccess(cache string, hit bool)
}

// NewCachedLookup wraps next with cache.
func NewCachedLookup(next Lookup, cache redis.Cache, ttl time.Duration, logger logging.Logger) *CachedLookup {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &CachedLookup{next: next, cache: cache, ttl: ttl, logger: logger}
}

// SetMetrics installs m.  Call before first use.
func (c *CachedLookup) SetMetrics(m CacheMetrics) { c.metrics = m }

// Lookup implements Lookup.
func (c *CachedLookup) Lookup(ctx context.Context, label string) (*component.PriceItem, bool) {
	key := cacheKeyPrefix + normalise(label)
	var item component.PriceItem
	loaded := false
	err := c.cache.GetOrSet(ctx, key, &item, c.ttl, func(ctx context.Context) (interface{}, error) {
		loaded = true
		found, ok := c.next.Lookup(ctx, label)
		if !ok {
			return nil, nil
		}
		return found, nil
	})
	if c.metrics != nil && (err == nil || err == redis.ErrCacheMiss) {
		c.metrics.RecordCacheAccess("price", !loaded)
	}
	switch {
	case err == nil:
		return &item, true
	case err == redis.ErrCacheMiss:
		return nil, false
	default:
		c.logger.Warn("price cache unavailable", logging.String("label", label), logging.Err(err))
		return c.next.Lookup(ctx, label)
	}
}

// Invalidate drops every cached price.  It is meant as a reload hook.
func (c *CachedLookup) Invalidate(ctx context.Context, _ int) {
	n, err := c.cache.DeleteByPrefix(ctx, cacheKeyPrefix)
	if err != nil {
		c.logger.Warn("failed to invalidate price cache", logging.Err(err))
		return
	}
	c.logger.Debug("price cache invalidated", logging.Int64("keys", n))
}

//Personal.AI order the ending
