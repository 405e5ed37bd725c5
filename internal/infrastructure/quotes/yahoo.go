package quotes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitos/trade_calls/internal/domain"
)

const YahooBaseURL = "https://query1.finance.yahoo.com"

var yahooIndexTickers = map[domain.MarketIndex]string{
	domain.IndexNifty50:   "^NSEI",
	domain.IndexBankNifty: "^NSEBANK",
}

// YahooProvider reads NSE prices from the public Yahoo chart endpoint.
type YahooProvider struct {
	baseURL string
	client  *http.Client
}

func NewYahooProvider(baseURL string) *YahooProvider {
	if baseURL == "" {
		baseURL = YahooBaseURL
	}
	return &YahooProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (y *YahooProvider) Name() string { return "yahoo" }

// nseTicker maps a plain NSE symbol to its Yahoo ticker.
func nseTicker(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if strings.HasSuffix(symbol, ".NS") {
		return symbol
	}
	return symbol + ".NS"
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice *float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// intraday returns the regular market price and the non-null 1m closes of
// the current session.
func (y *YahooProvider) intraday(ctx context.Context, ticker string) (decimal.Decimal, []decimal.Decimal, error) {
	path := "/v8/finance/chart/" + url.PathEscape(ticker) + "?range=1d&interval=1m"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+path, nil)
	if err != nil {
		return decimal.Zero, nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := y.client.Do(req)
	if err != nil {
		return decimal.Zero, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, nil, err
	}

	var result chartResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return decimal.Zero, nil, fmt.Errorf("yahoo: decode %s (status %d): %w", ticker, resp.StatusCode, err)
	}
	if result.Chart.Error != nil {
		return decimal.Zero, nil, fmt.Errorf("yahoo: %s: %s: %w", ticker, result.Chart.Error.Description, domain.ErrQuoteUnavailable)
	}
	if resp.StatusCode != http.StatusOK || len(result.Chart.Result) == 0 {
		return decimal.Zero, nil, fmt.Errorf("yahoo: %s status %d: %w", ticker, resp.StatusCode, domain.ErrQuoteUnavailable)
	}

	r := result.Chart.Result[0]
	var closes []decimal.Decimal
	if len(r.Indicators.Quote) > 0 {
		for _, c := range r.Indicators.Quote[0].Close {
			if c != nil {
				closes = append(closes, decimal.NewFromFloat(*c))
			}
		}
	}

	var last decimal.Decimal
	switch {
	case r.Meta.RegularMarketPrice != nil:
		last = decimal.NewFromFloat(*r.Meta.RegularMarketPrice)
	case len(closes) > 0:
		last = closes[len(closes)-1]
	default:
		return decimal.Zero, nil, fmt.Errorf("yahoo: %s has no price: %w", ticker, domain.ErrQuoteUnavailable)
	}
	return last, closes, nil
}

// LastPrice returns the latest price rounded to 2 decimals.
func (y *YahooProvider) LastPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	last, _, err := y.intraday(ctx, nseTicker(symbol))
	if err != nil {
		return decimal.Zero, err
	}
	return last.Round(2), nil
}

// Index returns the index level and the change since the first bar of the
// session.
func (y *YahooProvider) Index(ctx context.Context, index domain.MarketIndex) (domain.IndexQuote, error) {
	ticker, ok := yahooIndexTickers[index]
	if !ok {
		return domain.IndexQuote{}, fmt.Errorf("yahoo: unknown index %q", index)
	}
	last, closes, err := y.intraday(ctx, ticker)
	if err != nil {
		return domain.IndexQuote{}, err
	}
	q := domain.IndexQuote{Index: index, Last: last.Round(2), Change: decimal.Zero}
	if len(closes) > 0 {
		q.Change = last.Sub(closes[0]).Round(2)
	}
	return q, nil
}

var _ domain.QuoteProvider = (*YahooProvider)(nil)
