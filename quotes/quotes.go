// Package quotes resolves ticker symbols to live prices. The rest of the
// application only sees the Provider interface; the Alpha Vantage client and
// its Redis cache live behind it.
package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
)

const (
	cacheExpiration = 5 * time.Minute
	requestTimeout  = 5 * time.Second
)

var (
	// ErrUnknownSymbol means the provider does not know the ticker.
	ErrUnknownSymbol = errors.New("unknown symbol")
	// ErrUnavailable means the provider could not be reached or answered
	// with garbage; the caller may retry.
	ErrUnavailable = errors.New("quote unavailable")
)

// Quote is a point-in-time price for one ticker. Symbol is the provider's
// canonical spelling, which may differ in case from what the user typed.
type Quote struct {
	Symbol string          `json:"symbol"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
}

// Provider looks up live quotes. Lookup returns ErrUnknownSymbol for tickers
// the provider does not recognize and ErrUnavailable for transient failures.
type Provider interface {
	Lookup(ctx context.Context, symbol string) (Quote, error)
}

// AlphaVantage fetches quotes from the Alpha Vantage HTTP API and caches
// them in Redis for a few minutes. A nil Redis client disables caching.
type AlphaVantage struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	apiKey string
	client *http.Client
	rdb    *redis.Client
}

func NewAlphaVantage(apiKey string, rdb *redis.Client) *AlphaVantage {
	return &AlphaVantage{
		BaseURL: "https://www.alphavantage.co",
		apiKey:  apiKey,
		client:  &http.Client{Timeout: requestTimeout},
		rdb:     rdb,
	}
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Symbol string `json:"01. symbol"`
		Price  string `json:"05. price"`
	} `json:"Global Quote"`
}

type symbolSearchResponse struct {
	BestMatches []struct {
		Symbol string `json:"1. symbol"`
		Name   string `json:"2. name"`
	} `json:"bestMatches"`
}

// Lookup resolves a ticker to its current quote. The Redis cache is checked
// first; on a miss the price comes from GLOBAL_QUOTE and the display name
// from SYMBOL_SEARCH. A missing name degrades to the symbol itself rather
// than failing the lookup.
func (a *AlphaVantage) Lookup(ctx context.Context, symbol string) (Quote, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, ErrUnknownSymbol
	}

	cacheKey := fmt.Sprintf("stock:%s:quote", symbol)
	if a.rdb != nil {
		if cached, err := a.rdb.Get(ctx, cacheKey).Result(); err == nil {
			var q Quote
			if err := json.Unmarshal([]byte(cached), &q); err == nil {
				return q, nil
			}
		}
	}

	var gq globalQuoteResponse
	if err := a.get(ctx, url.Values{
		"function": {"GLOBAL_QUOTE"},
		"symbol":   {symbol},
	}, &gq); err != nil {
		return Quote{}, err
	}
	if gq.GlobalQuote.Price == "" {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownSymbol, symbol)
	}
	price, err := decimal.NewFromString(gq.GlobalQuote.Price)
	if err != nil {
		return Quote{}, fmt.Errorf("%w: bad price %q", ErrUnavailable, gq.GlobalQuote.Price)
	}

	q := Quote{Symbol: symbol, Name: symbol, Price: price}
	if gq.GlobalQuote.Symbol != "" {
		q.Symbol = gq.GlobalQuote.Symbol
	}
	if name := a.searchName(ctx, q.Symbol); name != "" {
		q.Name = name
	}

	if a.rdb != nil {
		if data, err := json.Marshal(q); err == nil {
			// Cache failures are not worth failing the request over.
			a.rdb.Set(ctx, cacheKey, data, cacheExpiration)
		}
	}
	return q, nil
}

// searchName asks SYMBOL_SEARCH for the company name behind a ticker.
// Returns "" when the provider has no match or cannot be reached.
func (a *AlphaVantage) searchName(ctx context.Context, symbol string) string {
	var sr symbolSearchResponse
	if err := a.get(ctx, url.Values{
		"function": {"SYMBOL_SEARCH"},
		"keywords": {symbol},
	}, &sr); err != nil {
		return ""
	}
	for _, m := range sr.BestMatches {
		if strings.EqualFold(m.Symbol, symbol) {
			return m.Name
		}
	}
	return ""
}

func (a *AlphaVantage) get(ctx context.Context, params url.Values, out interface{}) error {
	params.Set("apikey", a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/query?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
