package signal

import (
	"fmt"
	"time"

	"leadlag/internal/domain"
)

// Evaluator runs the rule list over snapshot rows.
type Evaluator struct {
	cfg   Config
	rules []Rule
	now   func() time.Time
}

// NewEvaluator creates an evaluator with the default rule list.
func NewEvaluator(cfg Config) *Evaluator {
	return &Evaluator{
		cfg:   cfg,
		rules: DefaultRules(),
		now:   time.Now,
	}
}

// Evaluate runs every rule against one row and returns all emitted
// records in rule order. Rules never suppress each other.
func (e *Evaluator) Evaluate(row *domain.LeaderSnapshot) []*domain.SignalRecord {
	generatedAt := e.now().UnixMilli()

	var out []*domain.SignalRecord
	for _, rule := range e.rules {
		for _, rec := range rule.eval(e.cfg, row) {
			rec.GeneratedAt = generatedAt
			out = append(out, rec)
		}
	}
	return out
}

// EvaluateAll runs the rule list over every row. When zero rules fire
// across the whole run, including an empty input, it returns exactly
// one NO_SIGNALS_DETECTED sentinel so the history sink always records
// that evaluation happened. dataTS stamps the sentinel when there are
// no rows to take a timestamp from.
func (e *Evaluator) EvaluateAll(rows []*domain.LeaderSnapshot, dataTS int64) []*domain.SignalRecord {
	var out []*domain.SignalRecord
	for _, row := range rows {
		out = append(out, e.Evaluate(row)...)
	}
	if len(out) > 0 {
		return out
	}

	return []*domain.SignalRecord{{
		Strategy:       domain.StrategyNoSignals,
		SignalStrength: domain.StrengthNone,
		Description:    fmt.Sprintf("no rule fired across %d snapshot rows", len(rows)),
		GeneratedAt:    e.now().UnixMilli(),
		DataTimestamp:  dataTS,
		LeaderQuality:  domain.QualityWeak,
	}}
}
