package cache

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitos/trade_calls/internal/domain"
)

type entry struct {
	price decimal.Decimal
	ts    time.Time
}

// MemoryQuoteCache is the in-process quote cache. Freshness is decided by
// the caller from the returned timestamp.
type MemoryQuoteCache struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func NewMemoryQuoteCache() *MemoryQuoteCache {
	return &MemoryQuoteCache{entries: make(map[string]entry)}
}

func (c *MemoryQuoteCache) Get(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return e.price, e.ts, nil
}

func (c *MemoryQuoteCache) Set(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	c.mu.Lock()
	c.entries[symbol] = entry{price: price, ts: ts}
	c.mu.Unlock()
	return nil
}

var _ domain.QuoteCache = (*MemoryQuoteCache)(nil)
