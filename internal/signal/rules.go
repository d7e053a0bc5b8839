// Package signal evaluates snapshot rows against a fixed, ordered rule
// list and produces trading signal records. Rules are independent: every
// rule whose condition holds emits, and rule order only determines output
// order, never suppression.
package signal

import (
	"fmt"

	"leadlag/internal/domain"
)

// Config holds rule thresholds. Zero value is not usable; start from
// DefaultConfig.
type Config struct {
	AlphaVolumeMomentum float64 // ALPHA_MOMENTUM: minimum volume momentum

	BreakoutVolatility  float64 // VOLATILITY_BREAKOUT: minimum volatility score
	BreakoutCorrelation float64 // VOLATILITY_BREAKOUT: minimum avg correlation

	MomentumLag             float64 // LEADER_MOMENTUM: minimum avg lag
	MomentumCorrelation     float64 // LEADER_MOMENTUM: minimum avg correlation
	MomentumHighCorrelation float64 // LEADER_MOMENTUM: escalate to HIGH above this

	LoadingVolumeMomentum float64 // VOLUME_LOADING: minimum volume momentum
	LoadingMaxAbsLag      float64 // VOLUME_LOADING: maximum |avg lag|

	CatchupLag         float64 // LAG_CATCHUP: maximum avg lag (negative)
	CatchupCorrelation float64 // LAG_CATCHUP: minimum avg correlation

	SyncMaxAbsLag   float64 // INSTANT_SYNC: maximum |avg lag|
	SyncCorrelation float64 // INSTANT_SYNC: minimum avg correlation

	InverseCorrelation float64 // INVERSE_PAIR: follower corr below this (negative)

	DriverMinFollowers int     // MARKET_DRIVER: minimum follower count
	DriverCorrelation  float64 // MARKET_DRIVER: minimum avg correlation
}

// DefaultConfig returns production thresholds.
func DefaultConfig() Config {
	return Config{
		AlphaVolumeMomentum:     1.1,
		BreakoutVolatility:      0.4,
		BreakoutCorrelation:     0.6,
		MomentumLag:             1.0,
		MomentumCorrelation:     0.75,
		MomentumHighCorrelation: 0.85,
		LoadingVolumeMomentum:   2.0,
		LoadingMaxAbsLag:        1.0,
		CatchupLag:              -2.0,
		CatchupCorrelation:      0.6,
		SyncMaxAbsLag:           1.0,
		SyncCorrelation:         0.95,
		InverseCorrelation:      -0.70,
		DriverMinFollowers:      5,
		DriverCorrelation:       0.8,
	}
}

// Rule is one predicate over a snapshot row. Most rules emit zero or
// one record; INVERSE_PAIR emits one per anti-correlated follower.
type Rule struct {
	Name string
	eval func(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord
}

// DefaultRules returns the full rule list in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "ALPHA_MOMENTUM", eval: alphaMomentum},
		{Name: "VOLATILITY_BREAKOUT", eval: volatilityBreakout},
		{Name: "LEADER_MOMENTUM", eval: leaderMomentum},
		{Name: "VOLUME_LOADING", eval: volumeLoading},
		{Name: "LAG_CATCHUP", eval: lagCatchup},
		{Name: "INSTANT_SYNC", eval: instantSync},
		{Name: "INVERSE_PAIR", eval: inversePair},
		{Name: "MARKET_DRIVER", eval: marketDriver},
	}
}

func newRecord(row *domain.LeaderSnapshot, strategy string, strength domain.SignalStrength) *domain.SignalRecord {
	return &domain.SignalRecord{
		Strategy:        strategy,
		SignalStrength:  strength,
		ActionAsset:     row.Leader,
		DataTimestamp:   row.Timestamp,
		LeaderSymbol:    row.Leader,
		LeaderQuality:   row.LeaderQuality,
		AvgCorrelation:  row.AvgCorrelation,
		AvgLag:          row.AvgLag,
		VolatilityScore: row.VolatilityScore,
		VolumeMomentum:  row.VolumeMomentum,
	}
}

func alphaMomentum(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	if row.LeaderQuality != domain.QualityAlpha || row.VolumeMomentum <= cfg.AlphaVolumeMomentum {
		return nil
	}
	rec := newRecord(row, "ALPHA_MOMENTUM", domain.StrengthCritical)
	rec.Description = fmt.Sprintf("ALPHA leader %s showing volume momentum %.2fx", row.Leader, row.VolumeMomentum)
	rec.TradeAsset = "followers"
	rec.Condition = fmt.Sprintf("%s moves on elevated volume", row.Leader)
	return []*domain.SignalRecord{rec}
}

func volatilityBreakout(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	if row.VolatilityScore <= cfg.BreakoutVolatility || row.AvgLag <= 0 || row.AvgCorrelation <= cfg.BreakoutCorrelation {
		return nil
	}
	rec := newRecord(row, "VOLATILITY_BREAKOUT", domain.StrengthHigh)
	rec.Description = fmt.Sprintf("%s volatile (%.2f%%) and leading by %.1f min", row.Leader, row.VolatilityScore, row.AvgLag)
	rec.TradeAsset = "followers"
	rec.Condition = fmt.Sprintf("%s breaks out of range", row.Leader)
	return []*domain.SignalRecord{rec}
}

func leaderMomentum(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	if row.AvgLag <= cfg.MomentumLag || row.AvgCorrelation <= cfg.MomentumCorrelation {
		return nil
	}
	strength := domain.StrengthMedium
	if row.AvgCorrelation > cfg.MomentumHighCorrelation {
		strength = domain.StrengthHigh
	}
	rec := newRecord(row, "LEADER_MOMENTUM", strength)
	rec.Description = fmt.Sprintf("%s leads followers by %.1f min at %.2f correlation", row.Leader, row.AvgLag, row.AvgCorrelation)
	rec.TradeAsset = "followers"
	rec.Condition = fmt.Sprintf("%s pumps >2%% in 5 min", row.Leader)
	return []*domain.SignalRecord{rec}
}

func volumeLoading(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	if row.VolumeMomentum <= cfg.LoadingVolumeMomentum || abs(row.AvgLag) > cfg.LoadingMaxAbsLag {
		return nil
	}
	rec := newRecord(row, "VOLUME_LOADING", domain.StrengthHigh)
	rec.Description = fmt.Sprintf("%s accumulating at %.2fx average volume with synchronous followers", row.Leader, row.VolumeMomentum)
	rec.TradeAsset = row.Leader
	rec.Condition = fmt.Sprintf("volume momentum on %s exceeds %.1fx", row.Leader, cfg.LoadingVolumeMomentum)
	return []*domain.SignalRecord{rec}
}

func lagCatchup(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	if row.AvgLag >= cfg.CatchupLag || row.AvgCorrelation <= cfg.CatchupCorrelation {
		return nil
	}
	rec := newRecord(row, "LAG_CATCHUP", domain.StrengthMedium)
	rec.Description = fmt.Sprintf("%s trails its group by %.1f min; catch-up move expected", row.Leader, -row.AvgLag)
	rec.TradeAsset = row.Leader
	rec.Condition = fmt.Sprintf("group moved, %s has not yet", row.Leader)
	return []*domain.SignalRecord{rec}
}

func instantSync(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	if abs(row.AvgLag) > cfg.SyncMaxAbsLag || row.AvgCorrelation <= cfg.SyncCorrelation {
		return nil
	}
	rec := newRecord(row, "INSTANT_SYNC", domain.StrengthHFT)
	rec.Description = fmt.Sprintf("%s and followers move in lockstep at %.2f correlation", row.Leader, row.AvgCorrelation)
	rec.TradeAsset = "pair spread"
	rec.Condition = fmt.Sprintf("spread between %s and followers widens", row.Leader)
	return []*domain.SignalRecord{rec}
}

func inversePair(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	var out []*domain.SignalRecord
	for _, f := range ParseFollowers(row.FollowersList) {
		if f.Correlation >= cfg.InverseCorrelation {
			continue
		}
		rec := newRecord(row, "INVERSE_PAIR", domain.StrengthMedium)
		rec.Description = fmt.Sprintf("%s and %s anti-correlated at %.2f", row.Leader, f.Symbol, f.Correlation)
		rec.TradeAsset = f.Symbol
		rec.Condition = fmt.Sprintf("%s rises, short %s", row.Leader, f.Symbol)
		out = append(out, rec)
	}
	return out
}

func marketDriver(cfg Config, row *domain.LeaderSnapshot) []*domain.SignalRecord {
	if row.FollowerCount < cfg.DriverMinFollowers || row.AvgCorrelation <= cfg.DriverCorrelation {
		return nil
	}
	rec := newRecord(row, "MARKET_DRIVER", domain.StrengthCritical)
	rec.Description = fmt.Sprintf("%s drives %d assets at %.2f correlation", row.Leader, row.FollowerCount, row.AvgCorrelation)
	rec.TradeAsset = "market basket"
	rec.Condition = fmt.Sprintf("%s sets the direction for its group", row.Leader)
	return []*domain.SignalRecord{rec}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
