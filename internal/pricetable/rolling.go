package pricetable

import (
	"sort"
	"sync"

	"leadlag/internal/domain"
)

// Rolling accumulates closed candles from a live stream and serves
// bounded per-symbol series for periodic re-analysis. Safe for one
// writer (the stream reader) and concurrent snapshot readers.
type Rolling struct {
	mu      sync.RWMutex
	maxRows int
	series  map[string][]domain.Candle
}

// NewRolling creates a rolling window keeping at most maxRows candles
// per symbol.
func NewRolling(maxRows int) *Rolling {
	return &Rolling{
		maxRows: maxRows,
		series:  make(map[string][]domain.Candle),
	}
}

// Append adds one closed candle for symbol. A candle with an already-seen
// open time replaces the prior one (stream retransmit); older rows beyond
// the window are evicted.
func (r *Rolling) Append(symbol string, c domain.Candle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.series[symbol]
	if n := len(s); n > 0 && s[n-1].OpenTime == c.OpenTime {
		s[n-1] = c
		r.series[symbol] = s
		return
	}

	s = append(s, c)
	// Stream messages can arrive slightly out of order after a reconnect.
	if n := len(s); n > 1 && s[n-1].OpenTime < s[n-2].OpenTime {
		sort.Slice(s, func(i, j int) bool { return s[i].OpenTime < s[j].OpenTime })
	}
	if len(s) > r.maxRows {
		s = append([]domain.Candle(nil), s[len(s)-r.maxRows:]...)
	}
	r.series[symbol] = s
}

// Snapshot returns a copy of the current per-symbol series.
func (r *Rolling) Snapshot() map[string][]domain.Candle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]domain.Candle, len(r.series))
	for sym, s := range r.series {
		cp := make([]domain.Candle, len(s))
		copy(cp, s)
		out[sym] = cp
	}
	return out
}
