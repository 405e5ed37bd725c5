package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/vitos/trade_calls/internal/domain"
	"github.com/vitos/trade_calls/internal/infrastructure/tracing"
)

type MarketConfig struct {
	CacheTTL    time.Duration
	Timeout     time.Duration
	MaxParallel int
}

// MarketService answers "what is the CMP of this symbol" on a best-effort
// basis. A failed lookup is reported as no price, never as an error.
type MarketService struct {
	provider domain.QuoteProvider
	cache    domain.QuoteCache
	cfg      MarketConfig
	logger   *zap.Logger
	group    singleflight.Group
	timeNow  func() time.Time // For testing
}

func NewMarketService(provider domain.QuoteProvider, cache domain.QuoteCache, cfg MarketConfig, logger *zap.Logger) *MarketService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	return &MarketService{
		provider: provider,
		cache:    cache,
		cfg:      cfg,
		logger:   logger,
		timeNow:  time.Now,
	}
}

// Quote returns the latest price for symbol, served from cache when fresh.
func (s *MarketService) Quote(ctx context.Context, symbol string) (decimal.Decimal, bool) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return decimal.Zero, false
	}

	if s.cache != nil && s.cfg.CacheTTL > 0 {
		price, ts, err := s.cache.Get(ctx, symbol)
		if err == nil && s.timeNow().Sub(ts) < s.cfg.CacheTTL {
			return price, true
		}
	}

	// The shared fetch outlives any one caller; fetch bounds it with the
	// quote timeout. Each caller still gives up on its own ctx.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(symbol, func() (interface{}, error) {
		return s.fetch(fetchCtx, symbol)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return decimal.Zero, false
	}

	v, err := res.Val, res.Err
	if err != nil {
		s.logger.Warn("Quote unavailable",
			zap.String("symbol", symbol),
			zap.String("provider", s.provider.Name()),
			zap.Error(err))
		return decimal.Zero, false
	}
	return v.(decimal.Decimal), true
}

func (s *MarketService) fetch(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ctx, span := tracing.StartSpan(ctx, "market.fetch", attribute.String("symbol", symbol))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	price, err := s.provider.LastPrice(ctx, symbol)
	if err != nil {
		span.RecordError(err)
		return decimal.Zero, err
	}
	if !price.IsPositive() {
		return decimal.Zero, domain.ErrQuoteUnavailable
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, symbol, price, s.timeNow()); err != nil {
			s.logger.Debug("Failed to cache quote", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return price, nil
}

// Quotes fetches many symbols concurrently. Symbols without a price are
// absent from the result.
func (s *MarketService) Quotes(ctx context.Context, symbols []string) map[string]decimal.Decimal {
	var (
		mu     sync.Mutex
		result = make(map[string]decimal.Decimal, len(symbols))
		seen   = make(map[string]bool, len(symbols))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for _, sym := range symbols {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true

		g.Go(func() error {
			price, ok := s.Quote(gctx, sym)
			if !ok {
				return nil
			}
			mu.Lock()
			result[sym] = price
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return result
}

// Indices returns the NIFTY 50 and BANK NIFTY quotes, zeroed when the
// provider cannot serve them.
func (s *MarketService) Indices(ctx context.Context) []domain.IndexQuote {
	indices := []domain.MarketIndex{domain.IndexNifty50, domain.IndexBankNifty}
	out := make([]domain.IndexQuote, len(indices))
	for i, idx := range indices {
		out[i] = domain.IndexQuote{Index: idx, Last: decimal.Zero, Change: decimal.Zero}

		qctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		q, err := s.provider.Index(qctx, idx)
		cancel()
		if err != nil {
			s.logger.Warn("Index quote unavailable", zap.String("index", string(idx)), zap.Error(err))
			continue
		}
		out[i] = q
	}
	return out
}
