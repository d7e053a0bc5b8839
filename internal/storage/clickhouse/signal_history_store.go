package clickhouse

import (
	"context"
	"fmt"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

// SignalHistoryStore implements storage.SignalHistoryStore using
// ClickHouse, with the same seq-based storage order as the snapshot
// history.
type SignalHistoryStore struct {
	conn *Conn
}

// NewSignalHistoryStore creates a new SignalHistoryStore.
func NewSignalHistoryStore(conn *Conn) *SignalHistoryStore {
	return &SignalHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SignalHistoryStore = (*SignalHistoryStore)(nil)

// Append adds records at the end of the history.
func (s *SignalHistoryStore) Append(ctx context.Context, records []*domain.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if r == nil || r.Strategy == "" {
			return storage.ErrInvalidInput
		}
	}

	var maxSeq uint64
	if err := s.conn.QueryRow(ctx, `SELECT max(seq) FROM trading_signals`).Scan(&maxSeq); err != nil {
		return fmt.Errorf("query max seq: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO trading_signals (
			seq, strategy, signal_strength, description,
			action_asset, trade_asset, condition,
			generated_at, data_ts, leader_symbol, leader_quality,
			avg_correlation, avg_lag, volatility_score, volume_momentum
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, r := range records {
		err = batch.Append(
			maxSeq+1+uint64(i), r.Strategy, string(r.SignalStrength), r.Description,
			r.ActionAsset, r.TradeAsset, r.Condition,
			r.GeneratedAt, r.DataTimestamp, r.LeaderSymbol, string(r.LeaderQuality),
			r.AvgCorrelation, r.AvgLag, r.VolatilityScore, r.VolumeMomentum,
		)
		if err != nil {
			return fmt.Errorf("append signal row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send signal batch: %w", err)
	}
	return nil
}

// ReadAll returns every retained record in storage order.
func (s *SignalHistoryStore) ReadAll(ctx context.Context) ([]*domain.SignalRecord, error) {
	query := `
		SELECT strategy, signal_strength, description,
		       action_asset, trade_asset, condition,
		       generated_at, data_ts, leader_symbol, leader_quality,
		       avg_correlation, avg_lag, volatility_score, volume_momentum
		FROM trading_signals
		ORDER BY seq ASC
	`
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.SignalRecord, 0)
	for rows.Next() {
		var (
			r        domain.SignalRecord
			strength string
			quality  string
		)
		err := rows.Scan(
			&r.Strategy, &strength, &r.Description,
			&r.ActionAsset, &r.TradeAsset, &r.Condition,
			&r.GeneratedAt, &r.DataTimestamp, &r.LeaderSymbol, &quality,
			&r.AvgCorrelation, &r.AvgLag, &r.VolatilityScore, &r.VolumeMomentum,
		)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		r.SignalStrength = domain.SignalStrength(strength)
		r.LeaderQuality = domain.LeaderQuality(quality)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate signals: %w", err)
	}
	return result, nil
}

// Trim drops the oldest records in storage order until at most max remain.
func (s *SignalHistoryStore) Trim(ctx context.Context, max int) (int, error) {
	if max < 0 {
		return 0, storage.ErrInvalidInput
	}

	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM trading_signals`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count signals: %w", err)
	}
	drop := int(count) - max
	if drop <= 0 {
		return 0, nil
	}

	var cutoff uint64
	err := s.conn.QueryRow(ctx,
		`SELECT seq FROM trading_signals ORDER BY seq ASC LIMIT 1 OFFSET `+fmt.Sprint(drop-1),
	).Scan(&cutoff)
	if err != nil {
		return 0, fmt.Errorf("query trim cutoff: %w", err)
	}

	if err := s.conn.Exec(ctx, `DELETE FROM trading_signals WHERE seq <= ?`, cutoff); err != nil {
		return 0, fmt.Errorf("trim signals: %w", err)
	}
	return drop, nil
}
