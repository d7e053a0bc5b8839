package postgres

import (
	"context"
	"fmt"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

// GraphStore implements storage.GraphStore using PostgreSQL.
//
// The single-edge-per-ordered-pair invariant is enforced by the database:
// leads_edges has a composite primary key (leader, follower), and upserts
// use ON CONFLICT DO UPDATE — a true upsert by key, not drop-then-add.
type GraphStore struct {
	pool *Pool
}

// NewGraphStore creates a new GraphStore.
func NewGraphStore(pool *Pool) *GraphStore {
	return &GraphStore{pool: pool}
}

// Compile-time interface check.
var _ storage.GraphStore = (*GraphStore)(nil)

// UpsertAsset creates or fully overwrites an asset vertex.
func (s *GraphStore) UpsertAsset(ctx context.Context, a *domain.Asset) error {
	if a == nil || a.Symbol == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO assets (symbol, volatility, volume_ratio, last_seen)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (symbol) DO UPDATE SET
			volatility = EXCLUDED.volatility,
			volume_ratio = EXCLUDED.volume_ratio,
			last_seen = EXCLUDED.last_seen
	`
	_, err := s.pool.Exec(ctx, query, a.Symbol, a.Volatility, a.VolumeRatio, a.LastSeen)
	if err != nil {
		return fmt.Errorf("upsert asset: %w", err)
	}
	return nil
}

// UpsertRelationship creates or replaces the single directed edge for the
// ordered (leader, follower) pair. Endpoints are created as bare vertices
// on first appearance without touching existing attributes.
func (s *GraphStore) UpsertRelationship(ctx context.Context, r *domain.LeadsRelationship) error {
	if r == nil || r.Leader == "" || r.Follower == "" {
		return storage.ErrInvalidInput
	}
	if r.Leader == r.Follower {
		return storage.ErrSelfLoop
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ensure := `
		INSERT INTO assets (symbol, last_seen) VALUES ($1, $2)
		ON CONFLICT (symbol) DO NOTHING
	`
	for _, symbol := range []string{r.Leader, r.Follower} {
		if _, err := tx.Exec(ctx, ensure, symbol, r.UpdatedAt); err != nil {
			return fmt.Errorf("ensure vertex %s: %w", symbol, err)
		}
	}

	upsert := `
		INSERT INTO leads_edges (leader, follower, correlation, lag, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (leader, follower) DO UPDATE SET
			correlation = EXCLUDED.correlation,
			lag = EXCLUDED.lag,
			updated_at = EXCLUDED.updated_at
	`
	_, err = tx.Exec(ctx, upsert, r.Leader, r.Follower, r.Correlation, r.Lag, r.UpdatedAt)
	if err != nil {
		if isCheckViolation(err) {
			return storage.ErrSelfLoop
		}
		return fmt.Errorf("upsert relationship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// OutgoingEdges returns the edges led by symbol, ordered by follower.
func (s *GraphStore) OutgoingEdges(ctx context.Context, symbol string) ([]*domain.LeadsRelationship, error) {
	query := `
		SELECT leader, follower, correlation, lag, updated_at
		FROM leads_edges
		WHERE leader = $1
		ORDER BY follower ASC
	`
	rows, err := s.pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("query outgoing edges: %w", err)
	}
	defer rows.Close()

	result := make([]*domain.LeadsRelationship, 0)
	for rows.Next() {
		var r domain.LeadsRelationship
		if err := rows.Scan(&r.Leader, &r.Follower, &r.Correlation, &r.Lag, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan edge: %w", err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edges: %w", err)
	}
	return result, nil
}

// IncomingDegree returns how many assets lead symbol.
func (s *GraphStore) IncomingDegree(ctx context.Context, symbol string) (int, error) {
	var degree int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads_edges WHERE follower = $1`, symbol,
	).Scan(&degree)
	if err != nil {
		return 0, fmt.Errorf("query incoming degree: %w", err)
	}
	return degree, nil
}

// AllLeaders returns symbols with out-degree >= 1, sorted ascending.
func (s *GraphStore) AllLeaders(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT leader FROM leads_edges ORDER BY leader ASC`)
	if err != nil {
		return nil, fmt.Errorf("query leaders: %w", err)
	}
	defer rows.Close()

	result := make([]string, 0)
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("scan leader: %w", err)
		}
		result = append(result, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaders: %w", err)
	}
	return result, nil
}

// GetAsset returns the vertex for symbol.
func (s *GraphStore) GetAsset(ctx context.Context, symbol string) (*domain.Asset, error) {
	var a domain.Asset
	err := s.pool.QueryRow(ctx,
		`SELECT symbol, volatility, volume_ratio, last_seen FROM assets WHERE symbol = $1`,
		symbol,
	).Scan(&a.Symbol, &a.Volatility, &a.VolumeRatio, &a.LastSeen)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("query asset: %w", err)
	}
	return &a, nil
}
