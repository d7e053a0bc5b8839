// Package marketdata fetches per-minute candles from the exchange REST
// API and streams live kline updates over websocket.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"leadlag/internal/domain"
)

// Default configuration values.
const (
	DefaultBaseURL     = "https://api.binance.com"
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0

	// Binance allows 1200 request weight per minute; 10 req/s keeps a
	// comfortable margin for the kline weight of 2.
	DefaultRateLimit = rate.Limit(10)
	DefaultRateBurst = 20
)

// klineInterval is the only candle resolution the pipeline works in,
// used for both REST klines and the websocket stream names.
const klineInterval = "1m"

// Client fetches market data. Implementations must be safe for
// concurrent use.
type Client interface {
	// TopSymbols returns up to limit symbols quoted in quoteAsset,
	// ordered by 24h quote volume descending.
	TopSymbols(ctx context.Context, quoteAsset string, limit int) ([]string, error)
	// Klines returns up to limit most recent 1-minute candles for
	// symbol, in ascending open-time order.
	Klines(ctx context.Context, symbol string, limit int) ([]domain.Candle, error)
}

// HTTPClient implements Client against the Binance spot REST API.
type HTTPClient struct {
	baseURL     string
	client      *http.Client
	limiter     *rate.Limiter
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithBaseURL overrides the API endpoint, primarily for tests.
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) {
		c.baseURL = u
	}
}

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRateLimit replaces the request limiter.
func WithRateLimit(limit rate.Limit, burst int) ClientOption {
	return func(c *HTTPClient) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a Binance REST client.
func NewHTTPClient(opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		baseURL:     DefaultBaseURL,
		client:      &http.Client{Timeout: DefaultTimeout},
		limiter:     rate.NewLimiter(DefaultRateLimit, DefaultRateBurst),
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET with rate limiting, retries and exponential
// backoff, decoding the JSON body into result.
func (c *HTTPClient) get(ctx context.Context, path string, query url.Values, result interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
			continue
		}

		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// tickerEntry is one row of the 24hr ticker response.
type tickerEntry struct {
	Symbol      string `json:"symbol"`
	QuoteVolume string `json:"quoteVolume"`
}

// TopSymbols implements Client.
func (c *HTTPClient) TopSymbols(ctx context.Context, quoteAsset string, limit int) ([]string, error) {
	var tickers []tickerEntry
	if err := c.get(ctx, "/api/v3/ticker/24hr", nil, &tickers); err != nil {
		return nil, err
	}

	type ranked struct {
		symbol string
		volume float64
	}
	candidates := make([]ranked, 0, len(tickers))
	for _, t := range tickers {
		if len(t.Symbol) <= len(quoteAsset) || t.Symbol[len(t.Symbol)-len(quoteAsset):] != quoteAsset {
			continue
		}
		volume, err := strconv.ParseFloat(t.QuoteVolume, 64)
		if err != nil {
			continue
		}
		candidates = append(candidates, ranked{symbol: t.Symbol, volume: volume})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].volume != candidates[j].volume {
			return candidates[i].volume > candidates[j].volume
		}
		return candidates[i].symbol < candidates[j].symbol
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	symbols := make([]string, len(candidates))
	for i, cand := range candidates {
		symbols[i] = cand.symbol
	}
	return symbols, nil
}

// Klines implements Client.
func (c *HTTPClient) Klines(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("interval", klineInterval)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	// Klines come back as positional arrays of mixed numbers and
	// numeric strings.
	var raw [][]json.RawMessage
	if err := c.get(ctx, "/api/v3/klines", query, &raw); err != nil {
		return nil, err
	}

	candles := make([]domain.Candle, 0, len(raw))
	for _, row := range raw {
		candle, err := parseKlineRow(row)
		if err != nil {
			return nil, fmt.Errorf("parse kline for %s: %w", symbol, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseKlineRow(row []json.RawMessage) (domain.Candle, error) {
	if len(row) < 6 {
		return domain.Candle{}, fmt.Errorf("short kline row: %d fields", len(row))
	}

	var candle domain.Candle
	if err := json.Unmarshal(row[0], &candle.OpenTime); err != nil {
		return domain.Candle{}, fmt.Errorf("open time: %w", err)
	}

	fields := []struct {
		raw  json.RawMessage
		dst  *float64
		name string
	}{
		{row[1], &candle.Open, "open"},
		{row[2], &candle.High, "high"},
		{row[3], &candle.Low, "low"},
		{row[4], &candle.Close, "close"},
		{row[5], &candle.Volume, "volume"},
	}
	for _, f := range fields {
		var s string
		if err := json.Unmarshal(f.raw, &s); err != nil {
			return domain.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return domain.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return candle, nil
}
