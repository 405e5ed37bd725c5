package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitos/trade_calls/internal/domain"
)

func newChartServer(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1d", r.URL.Query().Get("range"))
		assert.Equal(t, "1m", r.URL.Query().Get("interval"))
		body, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestYahooProvider_LastPrice(t *testing.T) {
	srv := newChartServer(t, map[string]string{
		"/v8/finance/chart/INFY.NS": `{"chart":{"result":[{"meta":{"regularMarketPrice":1502.4567},"indicators":{"quote":[{"close":[1500.1,null,1502.3]}]}}],"error":null}}`,
		"/v8/finance/chart/TCS.NS":  `{"chart":{"result":[{"meta":{},"indicators":{"quote":[{"close":[3500,3511.119,null]}]}}],"error":null}}`,
	})
	y := NewYahooProvider(srv.URL)
	ctx := context.Background()

	price, err := y.LastPrice(ctx, "infy")
	require.NoError(t, err)
	assert.Equal(t, "1502.46", price.String())

	// Falls back to the last non-null close
	price, err = y.LastPrice(ctx, "TCS.NS")
	require.NoError(t, err)
	assert.Equal(t, "3511.12", price.String())

	_, err = y.LastPrice(ctx, "NOPE")
	assert.ErrorIs(t, err, domain.ErrQuoteUnavailable)
}

func TestYahooProvider_Index(t *testing.T) {
	srv := newChartServer(t, map[string]string{
		"/v8/finance/chart/^NSEI": `{"chart":{"result":[{"meta":{"regularMarketPrice":22450.5},"indicators":{"quote":[{"close":[22500,22480,22450.5]}]}}],"error":null}}`,
	})
	y := NewYahooProvider(srv.URL)

	q, err := y.Index(context.Background(), domain.IndexNifty50)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexNifty50, q.Index)
	assert.Equal(t, "22450.5", q.Last.String())
	assert.Equal(t, "-49.5", q.Change.String())

	_, err = y.Index(context.Background(), domain.IndexBankNifty)
	assert.Error(t, err)
}
