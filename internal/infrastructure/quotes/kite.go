package quotes

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"github.com/vitos/trade_calls/internal/domain"
)

// KiteAPI is the part of *kiteconnect.Client used for quotes.
type KiteAPI interface {
	GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error)
	GetOHLC(instruments ...string) (kiteconnect.QuoteOHLC, error)
}

var kiteIndexInstruments = map[domain.MarketIndex]string{
	domain.IndexNifty50:   "NSE:NIFTY 50",
	domain.IndexBankNifty: "NSE:NIFTY BANK",
}

// KiteProvider reads NSE prices through Zerodha Kite Connect.
type KiteProvider struct {
	api KiteAPI
}

func NewKiteProvider(apiKey, accessToken string) *KiteProvider {
	kc := kiteconnect.New(apiKey)
	kc.SetAccessToken(accessToken)
	return &KiteProvider{api: kc}
}

func NewKiteProviderWithAPI(api KiteAPI) *KiteProvider {
	return &KiteProvider{api: api}
}

func (k *KiteProvider) Name() string { return "kite" }

func kiteInstrument(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	symbol = strings.TrimSuffix(symbol, ".NS")
	if strings.Contains(symbol, ":") {
		return symbol
	}
	return "NSE:" + symbol
}

// LastPrice honours ctx only before the call; the Kite client has no
// context support.
func (k *KiteProvider) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	inst := kiteInstrument(symbol)
	ltp, err := k.api.GetLTP(inst)
	if err != nil {
		return decimal.Zero, fmt.Errorf("kite: ltp %s: %w", inst, err)
	}
	q, ok := ltp[inst]
	if !ok || q.LastPrice <= 0 {
		return decimal.Zero, fmt.Errorf("kite: %s: %w", inst, domain.ErrQuoteUnavailable)
	}
	return decimal.NewFromFloat(q.LastPrice).Round(2), nil
}

// Index returns the index level and the change since the session open.
func (k *KiteProvider) Index(ctx context.Context, index domain.MarketIndex) (domain.IndexQuote, error) {
	if err := ctx.Err(); err != nil {
		return domain.IndexQuote{}, err
	}
	inst, ok := kiteIndexInstruments[index]
	if !ok {
		return domain.IndexQuote{}, fmt.Errorf("kite: unknown index %q", index)
	}
	ohlc, err := k.api.GetOHLC(inst)
	if err != nil {
		return domain.IndexQuote{}, fmt.Errorf("kite: ohlc %s: %w", inst, err)
	}
	q, ok := ohlc[inst]
	if !ok || q.LastPrice <= 0 {
		return domain.IndexQuote{}, fmt.Errorf("kite: %s: %w", inst, domain.ErrQuoteUnavailable)
	}

	last := decimal.NewFromFloat(q.LastPrice)
	change := decimal.Zero
	if q.OHLC.Open > 0 {
		change = last.Sub(decimal.NewFromFloat(q.OHLC.Open))
	}
	return domain.IndexQuote{Index: index, Last: last.Round(2), Change: change.Round(2)}, nil
}

var _ domain.QuoteProvider = (*KiteProvider)(nil)
