// Package classify derives leader quality labels and point-in-time
// snapshot rows from the leadership graph. Both are pure passes over
// read-only graph state; nothing here is stored back on the vertices.
package classify

import "leadlag/internal/domain"

// Config holds classification thresholds.
type Config struct {
	// AlphaMinInfluence is the minimum out-degree for ALPHA, combined
	// with an in-degree of zero.
	AlphaMinInfluence int
	// StrongMinInfluence is the minimum out-degree for STRONG.
	StrongMinInfluence int
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		AlphaMinInfluence:  3,
		StrongMinInfluence: 5,
	}
}

// Classifier labels assets by leadership quality.
type Classifier struct {
	cfg Config
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify maps graph structure to a quality label. Rules apply in
// priority order, first match wins:
//
//	influence >= AlphaMinInfluence AND independence == 0 -> ALPHA
//	influence >= StrongMinInfluence                      -> STRONG
//	otherwise                                            -> WEAK
func (c *Classifier) Classify(influence, independence int) domain.LeaderQuality {
	if influence >= c.cfg.AlphaMinInfluence && independence == 0 {
		return domain.QualityAlpha
	}
	if influence >= c.cfg.StrongMinInfluence {
		return domain.QualityStrong
	}
	return domain.QualityWeak
}
