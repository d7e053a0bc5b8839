package marketdata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testClient(baseURL string) *HTTPClient {
	c := NewHTTPClient(
		WithBaseURL(baseURL),
		WithRateLimit(rate.Inf, 1),
	)
	c.retryDelay = time.Millisecond
	c.maxDelay = time.Millisecond
	return c
}

func TestTopSymbols_FilterSortLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Write([]byte(`[
			{"symbol": "BTCUSDT", "quoteVolume": "5000.0"},
			{"symbol": "ETHBTC", "quoteVolume": "9000.0"},
			{"symbol": "ETHUSDT", "quoteVolume": "3000.0"},
			{"symbol": "SOLUSDT", "quoteVolume": "4000.0"},
			{"symbol": "ADAUSDT", "quoteVolume": "notanumber"},
			{"symbol": "USDT", "quoteVolume": "1.0"}
		]`))
	}))
	defer server.Close()

	symbols, err := testClient(server.URL).TopSymbols(context.Background(), "USDT", 2)
	if err != nil {
		t.Fatalf("TopSymbols failed: %v", err)
	}

	// ETHBTC is the wrong quote asset, ADAUSDT has a broken volume and
	// bare USDT is not a pair; the rest rank by volume desc.
	want := []string{"BTCUSDT", "SOLUSDT"}
	if len(symbols) != len(want) || symbols[0] != want[0] || symbols[1] != want[1] {
		t.Errorf("symbols: got %v, want %v", symbols, want)
	}
}

func TestTopSymbols_VolumeTieBreaksBySymbol(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"symbol": "ZZZUSDT", "quoteVolume": "100.0"},
			{"symbol": "AAAUSDT", "quoteVolume": "100.0"}
		]`))
	}))
	defer server.Close()

	symbols, err := testClient(server.URL).TopSymbols(context.Background(), "USDT", 0)
	if err != nil {
		t.Fatalf("TopSymbols failed: %v", err)
	}
	if len(symbols) != 2 || symbols[0] != "AAAUSDT" {
		t.Errorf("symbols: got %v, want AAAUSDT first", symbols)
	}
}

func TestKlines_ParsesPositionalRows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/klines" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol param: got %s", got)
		}
		if got := r.URL.Query().Get("interval"); got != "1m" {
			t.Errorf("interval param: got %s", got)
		}
		if got := r.URL.Query().Get("limit"); got != "2" {
			t.Errorf("limit param: got %s", got)
		}
		// Real kline rows carry trailing fields the client ignores.
		w.Write([]byte(`[
			[1700000000000, "100.5", "101.0", "99.8", "100.9", "12.34", 1700000059999, "1240.0", 42, "6.0", "600.0", "0"],
			[1700000060000, "100.9", "102.0", "100.5", "101.7", "8.00", 1700000119999, "812.0", 30, "4.0", "400.0", "0"]
		]`))
	}))
	defer server.Close()

	candles, err := testClient(server.URL).Klines(context.Background(), "BTCUSDT", 2)
	if err != nil {
		t.Fatalf("Klines failed: %v", err)
	}

	if len(candles) != 2 {
		t.Fatalf("candles: got %d, want 2", len(candles))
	}
	first := candles[0]
	if first.OpenTime != 1700000000000 {
		t.Errorf("open time: got %d", first.OpenTime)
	}
	if first.Open != 100.5 || first.High != 101.0 || first.Low != 99.8 || first.Close != 100.9 || first.Volume != 12.34 {
		t.Errorf("first candle: got %+v", first)
	}
}

func TestKlines_ShortRowIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[1700000000000, "100.5", "101.0"]]`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Klines(context.Background(), "BTCUSDT", 1)
	if err == nil || !strings.Contains(err.Error(), "short kline row") {
		t.Errorf("Expected short row error, got %v", err)
	}
}

func TestGet_RetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).TopSymbols(context.Background(), "USDT", 10)
	if err != nil {
		t.Fatalf("TopSymbols failed after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestGet_RetriesRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := testClient(server.URL).TopSymbols(context.Background(), "USDT", 10)
	if err != nil {
		t.Fatalf("TopSymbols failed after 429: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls: got %d, want 2", calls)
	}
}

func TestGet_MaxRetriesExceeded(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := testClient(server.URL)
	client.maxRetries = 2

	_, err := client.TopSymbols(context.Background(), "USDT", 10)
	if err == nil || !strings.Contains(err.Error(), "max retries exceeded") {
		t.Fatalf("Expected max retries error, got %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3 (initial + 2 retries)", calls)
	}
}
