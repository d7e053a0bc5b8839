package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

// SnapshotBuilder materializes one snapshot row per leader from the
// leadership graph plus per-asset metadata.
type SnapshotBuilder struct {
	classifier *Classifier
}

// NewSnapshotBuilder creates a builder using the given classifier.
func NewSnapshotBuilder(classifier *Classifier) *SnapshotBuilder {
	return &SnapshotBuilder{classifier: classifier}
}

// Build reads every leader with at least one outgoing edge and returns
// its snapshot row. ts stamps all rows with the same observation time.
// Rows come back sorted by leader symbol, matching store ordering.
func (b *SnapshotBuilder) Build(ctx context.Context, graph storage.GraphStore, ts int64) ([]*domain.LeaderSnapshot, error) {
	leaders, err := graph.AllLeaders(ctx)
	if err != nil {
		return nil, fmt.Errorf("list leaders: %w", err)
	}

	rows := make([]*domain.LeaderSnapshot, 0, len(leaders))
	for _, leader := range leaders {
		row, err := b.buildRow(ctx, graph, leader, ts)
		if err != nil {
			return nil, err
		}
		if row != nil {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (b *SnapshotBuilder) buildRow(ctx context.Context, graph storage.GraphStore, leader string, ts int64) (*domain.LeaderSnapshot, error) {
	edges, err := graph.OutgoingEdges(ctx, leader)
	if err != nil {
		return nil, fmt.Errorf("outgoing edges for %s: %w", leader, err)
	}
	if len(edges) == 0 {
		return nil, nil
	}

	var corrSum, lagSum float64
	for _, edge := range edges {
		// Correlation magnitude: inverse followers must not cancel
		// positive ones. Lag keeps its sign so leading vs trailing
		// averages stay meaningful.
		corr := edge.Correlation
		if corr < 0 {
			corr = -corr
		}
		corrSum += corr
		lagSum += float64(edge.Lag)
	}

	influence := len(edges)
	independence, err := graph.IncomingDegree(ctx, leader)
	if err != nil {
		return nil, fmt.Errorf("incoming degree for %s: %w", leader, err)
	}

	row := &domain.LeaderSnapshot{
		Leader:            leader,
		FollowerCount:     len(edges),
		AvgCorrelation:    corrSum / float64(len(edges)),
		AvgLag:            lagSum / float64(len(edges)),
		FollowersList:     FollowersSummary(edges),
		LeaderQuality:     b.classifier.Classify(influence, independence),
		InfluenceScore:    influence,
		IndependenceScore: independence,
		Timestamp:         ts,
	}

	asset, err := graph.GetAsset(ctx, leader)
	switch {
	case err == nil:
		row.VolatilityScore = asset.Volatility
		row.VolumeMomentum = asset.VolumeRatio
	case errors.Is(err, storage.ErrNotFound):
		// Leader known only through edges; metadata defaults to zero.
	default:
		return nil, fmt.Errorf("asset metadata for %s: %w", leader, err)
	}

	domain.NormalizeSnapshot(row)
	return row, nil
}

// FollowersSummary renders edges as "ETH(0.91); SOL(-0.76)". Entries
// are deduplicated by follower symbol; when a symbol repeats, the
// later correlation value wins but the entry keeps its first position.
func FollowersSummary(edges []*domain.LeadsRelationship) string {
	order := make([]string, 0, len(edges))
	corr := make(map[string]float64, len(edges))
	for _, edge := range edges {
		if _, ok := corr[edge.Follower]; !ok {
			order = append(order, edge.Follower)
		}
		corr[edge.Follower] = edge.Correlation
	}

	parts := make([]string, 0, len(order))
	for _, symbol := range order {
		parts = append(parts, fmt.Sprintf("%s(%.2f)", symbol, corr[symbol]))
	}
	return strings.Join(parts, "; ")
}
