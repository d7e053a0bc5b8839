package domain

// SignalStrength is an ordinal-like category attached to a signal.
type SignalStrength string

const (
	StrengthCritical SignalStrength = "CRITICAL"
	StrengthHigh     SignalStrength = "HIGH"
	StrengthMedium   SignalStrength = "MEDIUM"
	StrengthHFT      SignalStrength = "HFT"
	StrengthNone     SignalStrength = "NONE"
)

// StrategyNoSignals identifies the sentinel record emitted when no rule
// fires in an evaluation run. The history sink always receives proof that
// evaluation ran, independent of market activity.
const StrategyNoSignals = "NO_SIGNALS_DETECTED"

// SignalRecord is the result of one rule firing on one snapshot row.
// Rows are append-only history.
type SignalRecord struct {
	Strategy       string         // rule identifier
	SignalStrength SignalStrength // CRITICAL | HIGH | MEDIUM | HFT | NONE
	Description    string         // human-readable rationale
	ActionAsset    string         // asset to watch
	TradeAsset     string         // asset (or group) to trade
	Condition      string         // entry condition summary

	// Provenance: when the signal was generated, which data snapshot
	// triggered it, and a copy of the triggering row's derived fields.
	GeneratedAt     int64 // Unix ms
	DataTimestamp   int64 // triggering snapshot's data timestamp, Unix ms
	LeaderSymbol    string
	LeaderQuality   LeaderQuality
	AvgCorrelation  float64
	AvgLag          float64
	VolatilityScore float64
	VolumeMomentum  float64
}
