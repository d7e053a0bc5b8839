// Package pricetable builds time-aligned close-price tables from raw
// per-asset candle series. Alignment joins all series on the union of
// their timestamps, forward-fills gaps, and drops incomplete leading rows,
// so downstream consumers never see missing values.
package pricetable

import (
	"math"
	"sort"

	"leadlag/internal/domain"
)

// Table is a time-aligned table of closing prices: one column per asset
// symbol over a shared strictly increasing timestamp index. After Build
// no NaN values remain.
type Table struct {
	Index   []int64  // Unix ms, strictly increasing
	Symbols []string // column order, sorted ascending

	columns map[string][]float64
}

// Len returns the number of aligned rows.
func (t *Table) Len() int {
	return len(t.Index)
}

// Close returns the close-price column for symbol, or nil if absent.
func (t *Table) Close(symbol string) []float64 {
	return t.columns[symbol]
}

// Returns computes simple returns per column: r[i] = p[i+1]/p[i] - 1.
// Result columns have length Len()-1. A zero price yields NaN, which the
// correlation engine treats as undefined rather than zero.
func (t *Table) Returns() map[string][]float64 {
	if t.Len() < 2 {
		return nil
	}
	out := make(map[string][]float64, len(t.Symbols))
	for _, sym := range t.Symbols {
		prices := t.columns[sym]
		rets := make([]float64, len(prices)-1)
		for i := 0; i < len(prices)-1; i++ {
			if prices[i] == 0 {
				rets[i] = math.NaN()
				continue
			}
			rets[i] = prices[i+1]/prices[i] - 1
		}
		out[sym] = rets
	}
	return out
}

// Build aligns raw candle series into a gap-free table.
// Symbols with empty series are excluded. Gaps within a series are
// forward-filled with the prior close; leading rows where any remaining
// column has no value yet are dropped.
func Build(series map[string][]domain.Candle) *Table {
	symbols := make([]string, 0, len(series))
	for sym, candles := range series {
		if len(candles) > 0 {
			symbols = append(symbols, sym)
		}
	}
	sort.Strings(symbols)
	if len(symbols) == 0 {
		return &Table{columns: map[string][]float64{}}
	}

	// Union of timestamps across all series.
	tsSet := make(map[int64]struct{})
	for _, sym := range symbols {
		for _, c := range series[sym] {
			tsSet[c.OpenTime] = struct{}{}
		}
	}
	index := make([]int64, 0, len(tsSet))
	for ts := range tsSet {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i] < index[j] })

	// Forward-fill each column over the shared index.
	columns := make(map[string][]float64, len(symbols))
	for _, sym := range symbols {
		candles := sortedByOpenTime(series[sym])
		col := make([]float64, len(index))
		last := math.NaN()
		ci := 0
		for i, ts := range index {
			for ci < len(candles) && candles[ci].OpenTime <= ts {
				last = candles[ci].Close
				ci++
			}
			col[i] = last
		}
		columns[sym] = col
	}

	// Drop leading rows until every column has a value.
	start := 0
	for ; start < len(index); start++ {
		complete := true
		for _, sym := range symbols {
			if math.IsNaN(columns[sym][start]) {
				complete = false
				break
			}
		}
		if complete {
			break
		}
	}
	for _, sym := range symbols {
		columns[sym] = columns[sym][start:]
	}

	return &Table{
		Index:   index[start:],
		Symbols: symbols,
		columns: columns,
	}
}

// sortedByOpenTime returns candles sorted ascending with duplicate
// timestamps collapsed (first occurrence wins, matching the exchange
// feed where a repeated bar is a retransmit).
func sortedByOpenTime(candles []domain.Candle) []domain.Candle {
	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OpenTime < sorted[j].OpenTime })

	out := sorted[:0]
	var prev int64 = -1
	for _, c := range sorted {
		if c.OpenTime == prev {
			continue
		}
		out = append(out, c)
		prev = c.OpenTime
	}
	return out
}
