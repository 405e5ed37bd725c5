package quotes

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	kiteconnect "github.com/zerodha/gokiteconnect/v4"
	"github.com/zerodha/gokiteconnect/v4/models"

	"github.com/vitos/trade_calls/internal/domain"
)

type fakeKite struct {
	ltp  kiteconnect.QuoteLTP
	ohlc kiteconnect.QuoteOHLC
	err  error
	asks []string
}

func (f *fakeKite) GetLTP(instruments ...string) (kiteconnect.QuoteLTP, error) {
	f.asks = append(f.asks, instruments...)
	return f.ltp, f.err
}

func (f *fakeKite) GetOHLC(instruments ...string) (kiteconnect.QuoteOHLC, error) {
	f.asks = append(f.asks, instruments...)
	return f.ohlc, f.err
}

func TestKiteProvider_LastPrice(t *testing.T) {
	fake := &fakeKite{ltp: kiteconnect.QuoteLTP{
		"NSE:SBIN": {LastPrice: 612.349},
	}}
	k := NewKiteProviderWithAPI(fake)

	price, err := k.LastPrice(context.Background(), "sbin.ns")
	require.NoError(t, err)
	assert.Equal(t, "612.35", price.String())
	assert.Equal(t, []string{"NSE:SBIN"}, fake.asks)

	_, err = k.LastPrice(context.Background(), "INFY")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestKiteProvider_Errors(t *testing.T) {
	k := NewKiteProviderWithAPI(&fakeKite{err: errors.New("token expired")})

	_, err := k.LastPrice(context.Background(), "SBIN")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = k.Index(ctx, domain.IndexNifty50)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKiteProvider_Index(t *testing.T) {
	fake := &fakeKite{ohlc: kiteconnect.QuoteOHLC{
		"NSE:NIFTY BANK": {LastPrice: 48010.25, OHLC: models.OHLC{Open: 47900}},
	}}
	k := NewKiteProviderWithAPI(fake)

	q, err := k.Index(context.Background(), domain.IndexBankNifty)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexBankNifty, q.Index)
	assert.Equal(t, "48010.25", q.Last.String())
	assert.Equal(t, "110.25", q.Change.String())
}
