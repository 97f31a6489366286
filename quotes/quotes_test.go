package quotes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func newTestProvider(handler http.HandlerFunc) (*AlphaVantage, *httptest.Server) {
	srv := httptest.NewServer(handler)
	av := NewAlphaVantage("testkey", nil)
	av.BaseURL = srv.URL
	return av, srv
}

func TestLookup(t *testing.T) {
	av, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "testkey" {
			t.Errorf("missing api key in %s", r.URL)
		}
		switch r.URL.Query().Get("function") {
		case "GLOBAL_QUOTE":
			fmt.Fprint(w, `{"Global Quote": {"01. symbol": "AAPL", "05. price": "150.2500"}}`)
		case "SYMBOL_SEARCH":
			fmt.Fprint(w, `{"bestMatches": [{"1. symbol": "AAPL", "2. name": "Apple Inc"}]}`)
		default:
			t.Errorf("unexpected function in %s", r.URL)
		}
	})
	defer srv.Close()

	q, err := av.Lookup(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if q.Symbol != "AAPL" {
		t.Errorf("symbol = %q, want AAPL", q.Symbol)
	}
	if q.Name != "Apple Inc" {
		t.Errorf("name = %q, want Apple Inc", q.Name)
	}
	if !q.Price.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("price = %s, want 150.25", q.Price)
	}
}

func TestLookupNameFallback(t *testing.T) {
	av, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("function") {
		case "GLOBAL_QUOTE":
			fmt.Fprint(w, `{"Global Quote": {"01. symbol": "AAPL", "05. price": "150.25"}}`)
		default:
			// Name search is down; the quote must still come through.
			w.WriteHeader(http.StatusInternalServerError)
		}
	})
	defer srv.Close()

	q, err := av.Lookup(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if q.Name != "AAPL" {
		t.Errorf("name = %q, want fallback to symbol", q.Name)
	}
}

func TestLookupUnknownSymbol(t *testing.T) {
	av, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		// Alpha Vantage answers 200 with an empty quote for bad tickers.
		fmt.Fprint(w, `{"Global Quote": {}}`)
	})
	defer srv.Close()

	_, err := av.Lookup(context.Background(), "NOPE")
	if !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
}

func TestLookupEmptySymbol(t *testing.T) {
	av := NewAlphaVantage("testkey", nil)
	if _, err := av.Lookup(context.Background(), "   "); !errors.Is(err, ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
}

func TestLookupServerError(t *testing.T) {
	av, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	defer srv.Close()

	_, err := av.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestLookupBadPayload(t *testing.T) {
	av, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"Global Quote": {"01. symbol": "AAPL", "05. price": "not-a-number"}}`)
	})
	defer srv.Close()

	_, err := av.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}

func TestLookupUnreachable(t *testing.T) {
	av, srv := newTestProvider(func(w http.ResponseWriter, r *http.Request) {})
	srv.Close() // nothing listening anymore

	_, err := av.Lookup(context.Background(), "AAPL")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
