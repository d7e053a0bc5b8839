package domain

import "math"

// LeaderQuality is a categorical label derived from graph structure.
type LeaderQuality string

const (
	// QualityAlpha marks assets that lead several others while being led
	// by none.
	QualityAlpha LeaderQuality = "ALPHA"
	// QualityStrong marks assets with a large follower set regardless of
	// their own independence.
	QualityStrong LeaderQuality = "STRONG"
	// QualityWeak is the default label.
	QualityWeak LeaderQuality = "WEAK"
)

// LeaderSnapshot is a derived, point-in-time row for one asset with at
// least one outgoing relationship. Rows are append-only history; quality
// is computed at snapshot-build time and never stored on the vertex.
type LeaderSnapshot struct {
	Leader            string        // asset symbol
	FollowerCount     int           // out-degree
	AvgCorrelation    float64       // mean of |correlation| over outgoing edges
	AvgLag            float64       // mean lag over outgoing edges, sign preserved
	FollowersList     string        // e.g. "ETH(0.91); SOL(-0.76)", deduplicated by symbol
	LeaderQuality     LeaderQuality // ALPHA | STRONG | WEAK
	VolatilityScore   float64       // percent
	VolumeMomentum    float64       // volume ratio, 1.0 = average
	InfluenceScore    int           // out-degree
	IndependenceScore int           // in-degree
	Timestamp         int64         // data timestamp, Unix ms
}

// NormalizeSnapshot applies defaults to optional metadata fields.
// Older history rows predate the metadata extractor and may carry NaN or
// negative placeholders; callers reading rows back from a history store
// must pass them through here before rule evaluation.
func NormalizeSnapshot(s *LeaderSnapshot) {
	if s.LeaderQuality == "" {
		s.LeaderQuality = QualityWeak
	}
	if math.IsNaN(s.VolatilityScore) || s.VolatilityScore < 0 {
		s.VolatilityScore = 0
	}
	if math.IsNaN(s.VolumeMomentum) || s.VolumeMomentum < 0 {
		s.VolumeMomentum = 0
	}
	if math.IsNaN(s.AvgCorrelation) {
		s.AvgCorrelation = 0
	}
	if math.IsNaN(s.AvgLag) {
		s.AvgLag = 0
	}
}
