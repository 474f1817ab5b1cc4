package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultQuoteTTL keeps quotes fresh enough for sizing decisions without
// hammering the upstream on every tick.
const DefaultQuoteTTL = 30 * time.Second

const vixKey = "md:vix"

// Cache is a read-through quote cache on Redis. Cache failures degrade
// to the inner provider; they never fail the read. A nil inner makes
// the cache push-only: misses report ErrNotFound instead of reading
// through.
type Cache struct {
	inner Provider
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCache wraps a provider with a Redis quote cache. A zero ttl gets
// DefaultQuoteTTL.
func NewCache(inner Provider, rdb *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultQuoteTTL
	}
	return &Cache{inner: inner, rdb: rdb, ttl: ttl}
}

func quoteKey(symbol string) string { return "md:quote:" + symbol }

// Quote returns the cached quote when present, otherwise reads through
// to the inner provider and stores the result.
func (c *Cache) Quote(ctx context.Context, symbol string) (Quote, error) {
	if raw, err := c.rdb.Get(ctx, quoteKey(symbol)).Bytes(); err == nil {
		var q Quote
		if err := json.Unmarshal(raw, &q); err == nil {
			return q, nil
		}
		log.Warn().Str("symbol", symbol).Msg("discarding undecodable cached quote")
	}

	if c.inner == nil {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, ErrNotFound)
	}
	q, err := c.inner.Quote(ctx, symbol)
	if err != nil {
		return Quote{}, fmt.Errorf("quote %s: %w", symbol, err)
	}
	c.put(ctx, quoteKey(symbol), q)
	return q, nil
}

// VIX caches the index level under its own key.
func (c *Cache) VIX(ctx context.Context) (float64, error) {
	if v, err := c.rdb.Get(ctx, vixKey).Float64(); err == nil {
		return v, nil
	}
	if c.inner == nil {
		return 0, fmt.Errorf("vix: %w", ErrNotFound)
	}
	v, err := c.inner.VIX(ctx)
	if err != nil {
		return 0, fmt.Errorf("vix: %w", err)
	}
	if err := c.rdb.Set(ctx, vixKey, v, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("vix cache write failed")
	}
	return v, nil
}

// Put stores a quote directly, bypassing the inner provider. The stream
// uses this to push live updates.
func (c *Cache) Put(ctx context.Context, q Quote) {
	c.put(ctx, quoteKey(q.Symbol), q)
}

// PutVIX stores a live index level.
func (c *Cache) PutVIX(ctx context.Context, v float64) {
	if err := c.rdb.Set(ctx, vixKey, v, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("vix cache write failed")
	}
}

func (c *Cache) put(ctx context.Context, key string, q Quote) {
	raw, err := json.Marshal(q)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("quote cache write failed")
	}
}
