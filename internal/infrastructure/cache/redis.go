package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/vitos/trade_calls/internal/domain"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Expiry bounds how long a quote key lives in Redis.
	Expiry time.Duration
}

// RedisQuoteCache stores each quote as a hash at "quote:{symbol}" with fields
// "price" and "ts" (Unix nanoseconds), so several terminal processes share
// one cache.
type RedisQuoteCache struct {
	rdb    *redis.Client
	expiry time.Duration
}

func NewRedisQuoteCache(ctx context.Context, cfg RedisConfig) (*RedisQuoteCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	if cfg.Expiry <= 0 {
		cfg.Expiry = 10 * time.Minute
	}
	return &RedisQuoteCache{rdb: rdb, expiry: cfg.Expiry}, nil
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

func (c *RedisQuoteCache) Set(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	key := quoteKey(symbol)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"price": price.String(),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	})
	pipe.Expire(ctx, key, c.expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", symbol, err)
	}
	return nil
}

// Get returns domain.ErrNotFound when no quote is cached for symbol.
func (c *RedisQuoteCache) Get(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	vals, err := c.rdb.HGetAll(ctx, quoteKey(symbol)).Result()
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: get quote %s: %w", symbol, err)
	}
	return parseQuote(symbol, vals)
}

func parseQuote(symbol string, vals map[string]string) (decimal.Decimal, time.Time, error) {
	priceStr, ok := vals["price"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	tsStr, ok := vals["ts"]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	price, err := decimal.NewFromString(priceStr)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse price %s: %w", symbol, err)
	}
	tsNano, err := strconv.ParseInt(tsStr, 10, 64)
	if err != nil {
		return decimal.Zero, time.Time{}, fmt.Errorf("redis: parse ts %s: %w", symbol, err)
	}
	return price, time.Unix(0, tsNano), nil
}

func (c *RedisQuoteCache) Close() error {
	return c.rdb.Close()
}

var _ domain.QuoteCache = (*RedisQuoteCache)(nil)
