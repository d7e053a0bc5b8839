package domain

// Asset is a vertex in the leadership graph, identified by its exchange
// symbol with the quote currency stripped (e.g. "BTC", not "BTCUSDT").
// Attributes are fully overwritten on every update cycle, never merged.
type Asset struct {
	Symbol      string  // unique, case-sensitive
	Volatility  float64 // trailing log-return stddev, percent, >= 0
	VolumeRatio float64 // last volume / rolling mean volume, 1.0 = average, >= 0
	LastSeen    int64   // Unix timestamp in milliseconds
}

// LeadsRelationship is a directed edge from a leader asset to a follower.
// At most one edge exists per ordered (Leader, Follower) pair; a new
// computation for the same pair replaces the prior edge.
type LeadsRelationship struct {
	Leader      string  // leading asset symbol
	Follower    string  // following asset symbol
	Correlation float64 // best Pearson correlation, in [-1, 1], sign preserved
	Lag         int     // time units; positive = leader moves before follower
	UpdatedAt   int64   // Unix timestamp in milliseconds
}
