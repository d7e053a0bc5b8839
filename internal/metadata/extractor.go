// Package metadata computes per-asset market metadata from raw OHLCV
// series, independent of the correlation engine.
package metadata

import (
	"math"

	"leadlag/internal/domain"
)

// Config holds extractor window sizes.
type Config struct {
	// VolatilityWindow is the number of trailing samples for the
	// log-return standard deviation.
	VolatilityWindow int
	// VolumeWindow is the number of trailing samples for the rolling
	// mean volume.
	VolumeWindow int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		VolatilityWindow: 60,
		VolumeWindow:     20,
	}
}

// Extractor computes volatility and volume metrics. Undefined results
// (short series, zero denominators, NaN) normalize to 0.0 rather than
// propagating.
type Extractor struct {
	cfg Config
}

// NewExtractor creates an extractor with the given configuration.
func NewExtractor(cfg Config) *Extractor {
	return &Extractor{cfg: cfg}
}

// Volatility returns the sample standard deviation of log returns over
// the trailing window, expressed as a percentage.
func (e *Extractor) Volatility(candles []domain.Candle) float64 {
	if len(candles) > e.cfg.VolatilityWindow {
		candles = candles[len(candles)-e.cfg.VolatilityWindow:]
	}
	if len(candles) < 3 {
		return 0
	}

	logReturns := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			continue
		}
		logReturns = append(logReturns, math.Log(cur/prev))
	}
	n := len(logReturns)
	if n < 2 {
		return 0
	}

	mean := 0.0
	for _, r := range logReturns {
		mean += r
	}
	mean /= float64(n)

	sumSq := 0.0
	for _, r := range logReturns {
		diff := r - mean
		sumSq += diff * diff
	}
	vol := math.Sqrt(sumSq/float64(n-1)) * 100

	if math.IsNaN(vol) || math.IsInf(vol, 0) {
		return 0
	}
	return vol
}

// VolumeRatio returns the most recent volume divided by the rolling mean
// volume over the trailing window. A zero or undefined rolling mean
// yields 0.
func (e *Extractor) VolumeRatio(candles []domain.Candle) float64 {
	if len(candles) == 0 {
		return 0
	}
	window := candles
	if len(window) > e.cfg.VolumeWindow {
		window = window[len(window)-e.cfg.VolumeWindow:]
	}

	sum := 0.0
	for _, c := range window {
		sum += c.Volume
	}
	mean := sum / float64(len(window))
	if mean == 0 || math.IsNaN(mean) {
		return 0
	}

	ratio := candles[len(candles)-1].Volume / mean
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}
	return ratio
}

// Extract builds the full asset metadata record for one symbol.
func (e *Extractor) Extract(symbol string, candles []domain.Candle, now int64) *domain.Asset {
	return &domain.Asset{
		Symbol:      symbol,
		Volatility:  e.Volatility(candles),
		VolumeRatio: e.VolumeRatio(candles),
		LastSeen:    now,
	}
}
