// Package correlation implements the lag-correlation discovery engine.
// For every ordered asset pair it sweeps a bounded lag window over the
// aligned return series and keeps the (lag, correlation) pair of maximal
// absolute correlation, emitting a directed relationship candidate when
// that maximum clears the configured threshold.
package correlation

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"

	"leadlag/internal/pricetable"
)

// Config holds engine parameters. Passed in at construction; the engine
// reads no ambient state.
type Config struct {
	// MaxLag bounds the symmetric lag window [-MaxLag, MaxLag], in time units.
	MaxLag int
	// Threshold is the minimum absolute correlation for a candidate, in (0, 1].
	Threshold float64
	// IncludeZeroLag permits lag 0 in the sweep. Default false: instantaneous
	// co-movement is not a lead/lag relationship.
	IncludeZeroLag bool
	// MinOverlap is the minimum number of valid overlapping samples for a
	// correlation to be defined.
	MinOverlap int
	// Workers bounds the pair-level worker pool.
	Workers int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		MaxLag:     60,
		Threshold:  0.7,
		MinOverlap: 3,
		Workers:    runtime.GOMAXPROCS(0),
	}
}

// Candidate is a directed relationship candidate: Leader's move at time t
// correlates with Follower's move at time t+Lag. Sign of both lag and
// correlation is preserved from the best sweep result.
type Candidate struct {
	Leader      string
	Follower    string
	Correlation float64
	Lag         int
}

// Engine discovers lead-lag relationships in an aligned price table.
type Engine struct {
	cfg Config
}

// NewEngine creates an engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	if cfg.MinOverlap < 3 {
		cfg.MinOverlap = 3
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Engine{cfg: cfg}
}

// bestLag holds the running best of a lag sweep. The zero value means
// "no defined correlation seen yet": a real candidate must never lose to
// an uninitialized zero, so replacement happens only on a strictly larger
// absolute value of a defined correlation.
type bestLag struct {
	lag   int
	corr  float64
	found bool
}

// sweep runs the full lag window for one ordered pair, ascending lag order.
// Ties keep the first-encountered lag, making the result deterministic.
func (e *Engine) sweep(x, y []float64) bestLag {
	var best bestLag
	for lag := -e.cfg.MaxLag; lag <= e.cfg.MaxLag; lag++ {
		if lag == 0 && !e.cfg.IncludeZeroLag {
			continue
		}
		c, ok := pearsonShifted(x, y, lag, e.cfg.MinOverlap)
		if !ok {
			continue
		}
		if !best.found || math.Abs(c) > math.Abs(best.corr) {
			best = bestLag{lag: lag, corr: c, found: true}
		}
	}
	return best
}

// Discover computes relationship candidates for every ordered symbol pair
// in the table. Pairs are independent and processed by a bounded worker
// pool; the output is sorted by (leader, follower) so parallelism has no
// observable ordering effect. Pairs with no defined correlation at any lag
// are silently excluded.
func (e *Engine) Discover(ctx context.Context, table *pricetable.Table) []Candidate {
	returns := table.Returns()
	if len(returns) == 0 {
		return nil
	}

	type pair struct{ a, b string }
	jobs := make(chan pair)
	results := make(chan Candidate)

	var wg sync.WaitGroup
	for w := 0; w < e.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				best := e.sweep(returns[p.a], returns[p.b])
				if !best.found || math.Abs(best.corr) <= e.cfg.Threshold {
					continue
				}
				results <- Candidate{
					Leader:      p.a,
					Follower:    p.b,
					Correlation: best.corr,
					Lag:         best.lag,
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, a := range table.Symbols {
			for _, b := range table.Symbols {
				if a == b {
					continue
				}
				select {
				case jobs <- pair{a: a, b: b}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var candidates []Candidate
	for c := range results {
		candidates = append(candidates, c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Leader != candidates[j].Leader {
			return candidates[i].Leader < candidates[j].Leader
		}
		return candidates[i].Follower < candidates[j].Follower
	})
	return candidates
}
