package marketdata

import (
	"context"

	"leadlag/internal/domain"
	"leadlag/internal/pricetable"
)

// StreamingClient serves klines out of a live rolling window, falling
// back to the REST client while the window is still warming up. The
// REST backfill seeds the window so subsequent cycles go stream-only.
type StreamingClient struct {
	rest    Client
	rolling *pricetable.Rolling

	// minRows is how many streamed candles a symbol needs before the
	// window replaces REST for it.
	minRows int
}

var _ Client = (*StreamingClient)(nil)

// NewStreamingClient wraps rest with the rolling window.
func NewStreamingClient(rest Client, rolling *pricetable.Rolling, minRows int) *StreamingClient {
	if minRows <= 0 {
		minRows = 30
	}
	return &StreamingClient{rest: rest, rolling: rolling, minRows: minRows}
}

// TopSymbols delegates to the REST client; the ticker has no stream
// equivalent worth maintaining.
func (c *StreamingClient) TopSymbols(ctx context.Context, quoteAsset string, limit int) ([]string, error) {
	return c.rest.TopSymbols(ctx, quoteAsset, limit)
}

// Klines returns the rolling window for symbol once it is warm,
// otherwise backfills over REST and seeds the window.
func (c *StreamingClient) Klines(ctx context.Context, symbol string, limit int) ([]domain.Candle, error) {
	series := c.rolling.Snapshot()[symbol]
	if len(series) >= c.minRows {
		if limit > 0 && len(series) > limit {
			series = series[len(series)-limit:]
		}
		return series, nil
	}

	candles, err := c.rest.Klines(ctx, symbol, limit)
	if err != nil {
		return nil, err
	}
	for _, candle := range candles {
		c.rolling.Append(symbol, candle)
	}
	return candles, nil
}
