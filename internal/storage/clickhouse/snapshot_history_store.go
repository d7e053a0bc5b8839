package clickhouse

import (
	"context"
	"fmt"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

// SnapshotHistoryStore implements storage.SnapshotHistoryStore using
// ClickHouse.
//
// Storage order is the monotonic seq column assigned at append time, so
// retention drops rows by insertion sequence, never by comparing data
// timestamps. Concurrent appenders can race on seq assignment; losing a
// few rows in that window is acceptable for an analytics log.
type SnapshotHistoryStore struct {
	conn *Conn
}

// NewSnapshotHistoryStore creates a new SnapshotHistoryStore.
func NewSnapshotHistoryStore(conn *Conn) *SnapshotHistoryStore {
	return &SnapshotHistoryStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotHistoryStore = (*SnapshotHistoryStore)(nil)

// Append adds rows at the end of the history.
func (s *SnapshotHistoryStore) Append(ctx context.Context, rows []*domain.LeaderSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	for _, r := range rows {
		if r == nil || r.Leader == "" {
			return storage.ErrInvalidInput
		}
	}

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO leader_snapshots (
			seq, leader, follower_count, avg_correlation, avg_lag,
			followers_list, leader_quality, volatility_score, volume_momentum,
			influence_score, independence_score, ts
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for i, r := range rows {
		err = batch.Append(
			seq+uint64(i), r.Leader, uint32(r.FollowerCount), r.AvgCorrelation, r.AvgLag,
			r.FollowersList, string(r.LeaderQuality), r.VolatilityScore, r.VolumeMomentum,
			uint32(r.InfluenceScore), uint32(r.IndependenceScore), r.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("append snapshot row: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send snapshot batch: %w", err)
	}
	return nil
}

// nextSeq returns the first free sequence number.
func (s *SnapshotHistoryStore) nextSeq(ctx context.Context) (uint64, error) {
	var maxSeq uint64
	row := s.conn.QueryRow(ctx, `SELECT max(seq) FROM leader_snapshots`)
	if err := row.Scan(&maxSeq); err != nil {
		return 0, fmt.Errorf("query max seq: %w", err)
	}
	return maxSeq + 1, nil
}

// Latest returns the rows sharing the newest data timestamp, in storage order.
func (s *SnapshotHistoryStore) Latest(ctx context.Context) ([]*domain.LeaderSnapshot, error) {
	query := `
		SELECT leader, follower_count, avg_correlation, avg_lag,
		       followers_list, leader_quality, volatility_score, volume_momentum,
		       influence_score, independence_score, ts
		FROM leader_snapshots
		WHERE ts = (SELECT max(ts) FROM leader_snapshots)
		ORDER BY seq ASC
	`
	return s.queryRows(ctx, query)
}

// ReadAll returns every retained row in storage order.
func (s *SnapshotHistoryStore) ReadAll(ctx context.Context) ([]*domain.LeaderSnapshot, error) {
	query := `
		SELECT leader, follower_count, avg_correlation, avg_lag,
		       followers_list, leader_quality, volatility_score, volume_momentum,
		       influence_score, independence_score, ts
		FROM leader_snapshots
		ORDER BY seq ASC
	`
	return s.queryRows(ctx, query)
}

func (s *SnapshotHistoryStore) queryRows(ctx context.Context, query string) ([]*domain.LeaderSnapshot, error) {
	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.LeaderSnapshot, 0)
	for rows.Next() {
		var (
			r             domain.LeaderSnapshot
			followerCount uint32
			quality       string
			influence     uint32
			independence  uint32
		)
		err := rows.Scan(
			&r.Leader, &followerCount, &r.AvgCorrelation, &r.AvgLag,
			&r.FollowersList, &quality, &r.VolatilityScore, &r.VolumeMomentum,
			&influence, &independence, &r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		r.FollowerCount = int(followerCount)
		r.LeaderQuality = domain.LeaderQuality(quality)
		r.InfluenceScore = int(influence)
		r.IndependenceScore = int(independence)
		domain.NormalizeSnapshot(&r)
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return result, nil
}

// Trim drops the oldest rows in storage order until at most max remain.
func (s *SnapshotHistoryStore) Trim(ctx context.Context, max int) (int, error) {
	if max < 0 {
		return 0, storage.ErrInvalidInput
	}

	var count uint64
	if err := s.conn.QueryRow(ctx, `SELECT count() FROM leader_snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	drop := int(count) - max
	if drop <= 0 {
		return 0, nil
	}

	// Cutoff is the seq of the newest row being dropped.
	var cutoff uint64
	err := s.conn.QueryRow(ctx,
		`SELECT seq FROM leader_snapshots ORDER BY seq ASC LIMIT 1 OFFSET `+fmt.Sprint(drop-1),
	).Scan(&cutoff)
	if err != nil {
		return 0, fmt.Errorf("query trim cutoff: %w", err)
	}

	if err := s.conn.Exec(ctx, `DELETE FROM leader_snapshots WHERE seq <= ?`, cutoff); err != nil {
		return 0, fmt.Errorf("trim snapshots: %w", err)
	}
	return drop, nil
}
