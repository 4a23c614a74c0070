package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MessaoudiOussama/market-analytics/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	priceKeyPrefix = "price:"
	priceCacheTTL  = 24 * time.Hour
)

// PriceCache stores resolved price observations so concurrently processing
// documents (and repeated backfills) don't hammer the market-data provider.
// Historical closes never change, so a generous TTL is safe.
type PriceCache struct {
	rdb *redis.Client
}

func NewPriceCache(rdb *redis.Client) *PriceCache {
	return &PriceCache{rdb: rdb}
}

type cachedObservation struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
}

func (c *PriceCache) Get(ctx context.Context, key string) (domain.Observation, bool, error) {
	raw, err := c.rdb.Get(ctx, priceKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Observation{}, false, nil
	}
	if err != nil {
		return domain.Observation{}, false, fmt.Errorf("price cache get: %w", err)
	}

	var cached cachedObservation
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return domain.Observation{}, false, fmt.Errorf("price cache decode: %w", err)
	}
	date, err := time.Parse("2006-01-02", cached.Date)
	if err != nil {
		return domain.Observation{}, false, fmt.Errorf("price cache date: %w", err)
	}
	return domain.Observation{Symbol: cached.Symbol, Date: date, Close: cached.Close}, true, nil
}

func (c *PriceCache) Set(ctx context.Context, key string, obs domain.Observation) error {
	raw, err := json.Marshal(cachedObservation{
		Symbol: obs.Symbol,
		Date:   obs.Date.Format("2006-01-02"),
		Close:  obs.Close,
	})
	if err != nil {
		return fmt.Errorf("price cache encode: %w", err)
	}
	if err := c.rdb.Set(ctx, priceKeyPrefix+key, raw, priceCacheTTL).Err(); err != nil {
		return fmt.Errorf("price cache set: %w", err)
	}
	return nil
}
