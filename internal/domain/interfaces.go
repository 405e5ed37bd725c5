package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PositionRepository stores the whole call sheet. Save replaces the stored
// list with positions; there is no per-row patch.
type PositionRepository interface {
	Load(ctx context.Context) ([]Position, error)
	Save(ctx context.Context, positions []Position) error
}

// QuoteProvider fetches the latest traded price from a market data source.
type QuoteProvider interface {
	Name() string
	LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Index(ctx context.Context, index MarketIndex) (IndexQuote, error)
}

// QuoteCache keeps recent quotes so repeated page loads don't hit the provider.
type QuoteCache interface {
	Get(ctx context.Context, symbol string) (decimal.Decimal, time.Time, error)
	Set(ctx context.Context, symbol string, price decimal.Decimal, ts time.Time) error
}

type MarketIndex string

const (
	IndexNifty50   MarketIndex = "NIFTY 50"
	IndexBankNifty MarketIndex = "BANK NIFTY"
)

type IndexQuote struct {
	Index  MarketIndex     `json:"index"`
	Last   decimal.Decimal `json:"last"`
	Change decimal.Decimal `json:"change"`
}
