package correlation

import (
	"context"
	"math"
	"testing"

	"leadlag/internal/domain"
	"leadlag/internal/pricetable"
)

// noisyPrices generates a deterministic price walk with enough
// variation that only the constructed lag relationship survives a high
// threshold.
func noisyPrices(n int, seed uint32) []float64 {
	prices := make([]float64, n)
	p := 100.0
	state := seed
	for i := range prices {
		state = state*1664525 + 1013904223
		p += float64(state%2001)/1000.0 - 1.0
		prices[i] = p
	}
	return prices
}

func candleSeries(prices []float64) []domain.Candle {
	candles := make([]domain.Candle, len(prices))
	for i, p := range prices {
		candles[i] = domain.Candle{OpenTime: int64(i) * 60_000, Close: p}
	}
	return candles
}

// shiftedBy returns a series that repeats prices k steps later, padded
// with a flat prefix.
func shiftedBy(prices []float64, k int) []float64 {
	out := make([]float64, len(prices))
	for i := range out {
		if i < k {
			out[i] = prices[0]
			continue
		}
		out[i] = prices[i-k]
	}
	return out
}

func TestDiscover_FindsLagAndAntisymmetry(t *testing.T) {
	const k = 3
	leader := noisyPrices(60, 42)
	follower := shiftedBy(leader, k)

	table := pricetable.Build(map[string][]domain.Candle{
		"AAA": candleSeries(leader),
		"BBB": candleSeries(follower),
	})

	engine := NewEngine(Config{MaxLag: 6, Threshold: 0.9, MinOverlap: 3, Workers: 2})
	candidates := engine.Discover(context.Background(), table)

	if len(candidates) != 2 {
		t.Fatalf("candidates: got %d (%v), want 2", len(candidates), candidates)
	}

	ab := candidates[0]
	ba := candidates[1]
	if ab.Leader != "AAA" || ab.Follower != "BBB" {
		t.Fatalf("first candidate: got %s->%s, want AAA->BBB", ab.Leader, ab.Follower)
	}
	if ab.Lag != k {
		t.Errorf("AAA->BBB lag: got %d, want %d", ab.Lag, k)
	}
	if ba.Lag != -k {
		t.Errorf("BBB->AAA lag: got %d, want %d", ba.Lag, -k)
	}
	if math.Abs(math.Abs(ab.Correlation)-math.Abs(ba.Correlation)) > 1e-9 {
		t.Errorf("mirrored pair magnitudes differ: %v vs %v", ab.Correlation, ba.Correlation)
	}
	if ab.Correlation < 0.99 {
		t.Errorf("AAA->BBB correlation: got %v, want ~1", ab.Correlation)
	}
}

func TestDiscover_ZeroLagExcludedByDefault(t *testing.T) {
	// Identical series: the only perfect correlation is at lag 0.
	prices := noisyPrices(60, 7)
	table := pricetable.Build(map[string][]domain.Candle{
		"AAA": candleSeries(prices),
		"BBB": candleSeries(prices),
	})

	engine := NewEngine(Config{MaxLag: 6, Threshold: 0.9, MinOverlap: 3, Workers: 1})
	if got := engine.Discover(context.Background(), table); len(got) != 0 {
		t.Errorf("lag-0 relationship leaked through: %v", got)
	}

	engine = NewEngine(Config{MaxLag: 6, Threshold: 0.9, MinOverlap: 3, Workers: 1, IncludeZeroLag: true})
	candidates := engine.Discover(context.Background(), table)
	if len(candidates) != 2 {
		t.Fatalf("with zero lag allowed: got %d candidates, want 2", len(candidates))
	}
	for _, c := range candidates {
		if c.Lag != 0 {
			t.Errorf("%s->%s lag: got %d, want 0", c.Leader, c.Follower, c.Lag)
		}
	}
}

func TestDiscover_ThresholdFiltersWeakPairs(t *testing.T) {
	table := pricetable.Build(map[string][]domain.Candle{
		"AAA": candleSeries(noisyPrices(60, 1)),
		"BBB": candleSeries(noisyPrices(60, 999)),
	})

	engine := NewEngine(Config{MaxLag: 6, Threshold: 0.95, MinOverlap: 3, Workers: 1})
	if got := engine.Discover(context.Background(), table); len(got) != 0 {
		t.Errorf("unrelated pair produced candidates: %v", got)
	}
}

func TestDiscover_EmptyTable(t *testing.T) {
	engine := NewEngine(DefaultConfig())
	table := pricetable.Build(nil)
	if got := engine.Discover(context.Background(), table); got != nil {
		t.Errorf("empty table: got %v, want nil", got)
	}
}

func TestSweep_TieKeepsFirstLag(t *testing.T) {
	// Period-4 return pattern correlates perfectly with itself at lags
	// -4 and +4; ascending sweep order must keep -4.
	pattern := []float64{1, -1, 2, -2}
	rets := make([]float64, 24)
	for i := range rets {
		rets[i] = pattern[i%len(pattern)]
	}

	engine := NewEngine(Config{MaxLag: 4, Threshold: 0.9, MinOverlap: 3, Workers: 1})
	best := engine.sweep(rets, rets)

	if !best.found {
		t.Fatal("expected a defined best lag")
	}
	if best.lag != -4 {
		t.Errorf("tie resolution: got lag %d, want -4 (first in ascending order)", best.lag)
	}
	if math.Abs(best.corr-1) > 1e-12 {
		t.Errorf("corr: got %v, want 1", best.corr)
	}
}

func TestSweep_NoDefinedCorrelation(t *testing.T) {
	flat := []float64{0, 0, 0, 0, 0, 0}
	moving := []float64{1, 2, 1, 3, 1, 4}

	engine := NewEngine(Config{MaxLag: 2, Threshold: 0.5, MinOverlap: 3, Workers: 1})
	if best := engine.sweep(flat, moving); best.found {
		t.Errorf("flat series produced a best lag: %+v", best)
	}
}
