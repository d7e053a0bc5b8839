package storage

import (
	"context"

	"leadlag/internal/domain"
)

// GraphStore owns leadership-graph vertex and edge state.
//
// Upserts are idempotent: asset attributes are fully overwritten, and at
// most one edge exists per ordered (leader, follower) pair — a repeated
// upsert for the same pair replaces the prior edge's attributes instead of
// accumulating parallel duplicates. Self-loops are rejected with
// ErrSelfLoop. Both relationship endpoints are created as bare vertices on
// first appearance; vertices are never deleted.
type GraphStore interface {
	// UpsertAsset creates or fully overwrites an asset vertex.
	UpsertAsset(ctx context.Context, a *domain.Asset) error

	// UpsertRelationship creates or replaces the single directed edge for
	// the ordered (leader, follower) pair.
	UpsertRelationship(ctx context.Context, r *domain.LeadsRelationship) error

	// OutgoingEdges returns the edges led by symbol, ordered by follower.
	OutgoingEdges(ctx context.Context, symbol string) ([]*domain.LeadsRelationship, error)

	// IncomingDegree returns how many assets lead symbol.
	IncomingDegree(ctx context.Context, symbol string) (int, error)

	// AllLeaders returns symbols with out-degree >= 1, sorted ascending.
	AllLeaders(ctx context.Context) ([]string, error)

	// GetAsset returns the vertex for symbol. Returns ErrNotFound if the
	// symbol has never been seen.
	GetAsset(ctx context.Context, symbol string) (*domain.Asset, error)
}

// SnapshotHistoryStore is the append-only history of classifier snapshots.
//
// Retention is applied by Trim, which drops the oldest rows in storage
// order (insertion sequence, not timestamp comparison) until at most max
// rows remain.
type SnapshotHistoryStore interface {
	// Append adds rows at the end of the history.
	Append(ctx context.Context, rows []*domain.LeaderSnapshot) error

	// Latest returns the rows sharing the newest data timestamp, in
	// storage order. Empty history yields an empty slice, not an error.
	Latest(ctx context.Context) ([]*domain.LeaderSnapshot, error)

	// ReadAll returns every retained row in storage order.
	ReadAll(ctx context.Context) ([]*domain.LeaderSnapshot, error)

	// Trim enforces the retention cap, returning how many rows it dropped.
	Trim(ctx context.Context, max int) (int, error)
}

// SignalHistoryStore is the append-only history of rule-evaluation
// results, with the same retention semantics as SnapshotHistoryStore.
type SignalHistoryStore interface {
	Append(ctx context.Context, records []*domain.SignalRecord) error
	ReadAll(ctx context.Context) ([]*domain.SignalRecord, error)
	Trim(ctx context.Context, max int) (int, error)
}
