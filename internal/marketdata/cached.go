package marketdata

import (
	"context"
	"time"

	"github.com/wonny/hedgefund/internal/contracts"
	"github.com/wonny/hedgefund/pkg/logger"
	"github.com/wonny/hedgefund/pkg/redis"
)

// Cached puts a redis cache in front of another source.
// Cache failures are logged and fall through to the inner source.
type Cached struct {
	inner  contracts.PriceSource
	cache  *redis.Cache
	ttl    time.Duration
	logger *logger.Logger
}

// NewCached wraps inner with cache
func NewCached(inner contracts.PriceSource, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *Cached {
	return &Cached{inner: inner, cache: cache, ttl: ttl, logger: log}
}

// History serves from cache when possible
func (c *Cached) History(ctx context.Context, ticker string, from, to time.Time) ([]contracts.Bar, error) {
	key := redis.PriceHistoryKey(ticker, from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))

	var bars []contracts.Bar
	found, err := c.cache.Get(ctx, key, &bars)
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Price cache read failed")
	}
	if found {
		return bars, nil
	}

	bars, err = c.inner.History(ctx, ticker, from, to)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, bars, c.ttl); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Price cache write failed")
	}
	return bars, nil
}
