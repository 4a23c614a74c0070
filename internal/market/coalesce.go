package market

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/MessaoudiOussama/market-analytics/internal/metrics"
	"golang.org/x/sync/singleflight"
)

// ObservationCache is a shared cache for resolved price observations,
// typically Redis-backed. Misses are not cached.
type ObservationCache interface {
	Get(ctx context.Context, key string) (domain.Observation, bool, error)
	Set(ctx context.Context, key string, obs domain.Observation) error
}

// CoalescingProvider deduplicates lookups for the same (symbol, date,
// window) triple. Concurrently processing documents that reference the same
// trading window collapse onto a single upstream call via singleflight, and
// resolved observations are served from the cache afterwards. Cache errors
// degrade to upstream calls, never to failures.
type CoalescingProvider struct {
	inner domain.PriceProvider
	cache ObservationCache
	group singleflight.Group
}

func NewCoalescingProvider(inner domain.PriceProvider, cache ObservationCache) *CoalescingProvider {
	return &CoalescingProvider{inner: inner, cache: cache}
}

func (c *CoalescingProvider) PriceNear(ctx context.Context, symbol string, date time.Time, lookaheadDays int) (domain.Observation, error) {
	key := fmt.Sprintf("%s|%s|%d", symbol, date.Format(dateLayout), lookaheadDays)

	if c.cache != nil {
		obs, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("Price cache read failed", "key", key, "error", err)
		} else if ok {
			metrics.PriceCacheHitsTotal.Inc()
			return obs, nil
		}
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		metrics.PriceLookupsTotal.Inc()
		obs, err := c.inner.PriceNear(ctx, symbol, date, lookaheadDays)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			if err := c.cache.Set(ctx, key, obs); err != nil {
				slog.Warn("Price cache write failed", "key", key, "error", err)
			}
		}
		return obs, nil
	})
	if err != nil {
		return domain.Observation{}, err
	}
	return result.(domain.Observation), nil
}
