package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/vitos/trade_calls/internal/domain"
)

// MockProvider for MarketService
type MockProvider struct {
	mu      sync.Mutex
	Prices  map[string]decimal.Decimal
	Indices map[domain.MarketIndex]domain.IndexQuote
	Calls   int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	p, ok := m.Prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("unknown symbol")
	}
	return p, nil
}

func (m *MockProvider) Index(ctx context.Context, index domain.MarketIndex) (domain.IndexQuote, error) {
	q, ok := m.Indices[index]
	if !ok {
		return domain.IndexQuote{}, errors.New("index offline")
	}
	return q, nil
}

type mockCache struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	ts     map[string]time.Time
}

func newMockCache() *mockCache {
	return &mockCache{prices: map[string]decimal.Decimal{}, ts: map[string]time.Time{}}
}

func (c *mockCache) Get(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.prices[symbol]
	if !ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return p, c.ts[symbol], nil
}

func (c *mockCache) Set(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = price
	c.ts[symbol] = ts
	return nil
}

func TestMarketService_QuoteUsesCacheWithinTTL(t *testing.T) {
	provider := &MockProvider{Prices: map[string]decimal.Decimal{"INFY": decimal.RequireFromString("1500.25")}}
	service := NewMarketService(provider, newMockCache(), MarketConfig{CacheTTL: time.Minute}, zap.NewNop())

	currentTime := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	service.timeNow = func() time.Time { return currentTime }
	ctx := context.Background()

	price, ok := service.Quote(ctx, "infy")
	assert.True(t, ok)
	assert.Equal(t, "1500.25", price.String())
	assert.Equal(t, 1, provider.Calls)

	// Fresh entry: served from cache
	currentTime = currentTime.Add(30 * time.Second)
	_, ok = service.Quote(ctx, "INFY")
	assert.True(t, ok)
	assert.Equal(t, 1, provider.Calls)

	// Stale entry: refetched
	currentTime = currentTime.Add(time.Minute)
	_, ok = service.Quote(ctx, "INFY")
	assert.True(t, ok)
	assert.Equal(t, 2, provider.Calls)
}

func TestMarketService_QuoteFailureIsNoPrice(t *testing.T) {
	provider := &MockProvider{Prices: map[string]decimal.Decimal{"ZERO": decimal.Zero}}
	service := NewMarketService(provider, nil, MarketConfig{}, zap.NewNop())

	price, ok := service.Quote(context.Background(), "UNKNOWN")
	assert.False(t, ok)
	assert.True(t, price.IsZero())

	_, ok = service.Quote(context.Background(), "ZERO")
	assert.False(t, ok, "non-positive prices are not quotes")

	_, ok = service.Quote(context.Background(), "  ")
	assert.False(t, ok)
}

func TestMarketService_QuotesOmitsFailures(t *testing.T) {
	provider := &MockProvider{Prices: map[string]decimal.Decimal{
		"INFY": decimal.NewFromInt(1500),
		"TCS":  decimal.NewFromInt(3500),
	}}
	service := NewMarketService(provider, nil, MarketConfig{MaxParallel: 2}, zap.NewNop())

	got := service.Quotes(context.Background(), []string{"INFY", "tcs", "INFY", "MISSING"})
	assert.Len(t, got, 2)
	assert.True(t, decimal.NewFromInt(3500).Equal(got["TCS"]))
	assert.Equal(t, 3, provider.Calls)
}

func TestMarketService_IndicesZeroOnFailure(t *testing.T) {
	provider := &MockProvider{Indices: map[domain.MarketIndex]domain.IndexQuote{
		domain.IndexNifty50: {
			Index:  domain.IndexNifty50,
			Last:   decimal.RequireFromString("22450.1"),
			Change: decimal.RequireFromString("-35.4"),
		},
	}}
	service := NewMarketService(provider, nil, MarketConfig{}, zap.NewNop())

	got := service.Indices(context.Background())
	assert.Len(t, got, 2)
	assert.Equal(t, domain.IndexNifty50, got[0].Index)
	assert.Equal(t, "22450.1", got[0].Last.String())
	assert.Equal(t, domain.IndexBankNifty, got[1].Index)
	assert.True(t, got[1].Last.IsZero())
	assert.True(t, got[1].Change.IsZero())
}

// blockingProvider holds LastPrice until release is closed.
type blockingProvider struct {
	MockProvider
	started chan struct{}
	release chan struct{}

	once      sync.Once
	cancelled bool
}

func (b *blockingProvider) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	b.once.Do(func() { close(b.started) })
	select {
	case <-b.release:
	case <-ctx.Done():
		b.mu.Lock()
		b.cancelled = true
		b.mu.Unlock()
		return decimal.Zero, ctx.Err()
	}
	return b.MockProvider.LastPrice(ctx, symbol)
}

func TestMarketService_CancelledCallerDoesNotFailSharedFetch(t *testing.T) {
	provider := &blockingProvider{
		MockProvider: MockProvider{Prices: map[string]decimal.Decimal{"INFY": decimal.NewFromInt(1500)}},
		started:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	service := NewMarketService(provider, nil, MarketConfig{Timeout: 5 * time.Second}, zap.NewNop())

	firstCtx, cancel := context.WithCancel(context.Background())
	firstDone := make(chan bool)
	go func() {
		_, ok := service.Quote(firstCtx, "INFY")
		firstDone <- ok
	}()
	<-provider.started

	cancel()
	assert.False(t, <-firstDone, "cancelled caller gives up")

	secondDone := make(chan bool)
	go func() {
		price, ok := service.Quote(context.Background(), "INFY")
		secondDone <- ok && price.Equal(decimal.NewFromInt(1500))
	}()
	time.Sleep(20 * time.Millisecond)
	close(provider.release)

	assert.True(t, <-secondDone)
	provider.mu.Lock()
	assert.False(t, provider.cancelled, "shared fetch must not see the first caller's cancellation")
	provider.mu.Unlock()
}
