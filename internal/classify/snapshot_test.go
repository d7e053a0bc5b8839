package classify

import (
	"context"
	"math"
	"testing"

	"leadlag/internal/domain"
	"leadlag/internal/storage/memory"
)

func seedGraph(t *testing.T, edges []*domain.LeadsRelationship, assets []*domain.Asset) *memory.GraphStore {
	t.Helper()
	ctx := context.Background()
	graph := memory.NewGraphStore()
	for _, a := range assets {
		if err := graph.UpsertAsset(ctx, a); err != nil {
			t.Fatalf("UpsertAsset: %v", err)
		}
	}
	for _, e := range edges {
		if err := graph.UpsertRelationship(ctx, e); err != nil {
			t.Fatalf("UpsertRelationship: %v", err)
		}
	}
	return graph
}

func TestBuild_AggregatesEdges(t *testing.T) {
	graph := seedGraph(t,
		[]*domain.LeadsRelationship{
			{Leader: "BTC", Follower: "ETH", Correlation: 0.9, Lag: 4},
			{Leader: "BTC", Follower: "SOL", Correlation: -0.8, Lag: -2},
		},
		[]*domain.Asset{
			{Symbol: "BTC", Volatility: 1.5, VolumeRatio: 2.2, LastSeen: 1},
		},
	)

	builder := NewSnapshotBuilder(NewClassifier(DefaultConfig()))
	rows, err := builder.Build(context.Background(), graph, 1_700_000_000_000)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(rows) != 1 {
		t.Fatalf("rows: got %d, want 1", len(rows))
	}
	row := rows[0]

	if row.Leader != "BTC" || row.FollowerCount != 2 {
		t.Errorf("leader/count: got %s/%d", row.Leader, row.FollowerCount)
	}
	// Correlation magnitudes average; lag keeps its sign.
	if math.Abs(row.AvgCorrelation-0.85) > 1e-12 {
		t.Errorf("avg correlation: got %v, want 0.85", row.AvgCorrelation)
	}
	if math.Abs(row.AvgLag-1.0) > 1e-12 {
		t.Errorf("avg lag: got %v, want 1.0", row.AvgLag)
	}
	if row.FollowersList != "ETH(0.90); SOL(-0.80)" {
		t.Errorf("followers list: got %q", row.FollowersList)
	}
	if row.LeaderQuality != domain.QualityWeak {
		t.Errorf("quality: got %s, want WEAK (influence 2)", row.LeaderQuality)
	}
	if row.VolatilityScore != 1.5 || row.VolumeMomentum != 2.2 {
		t.Errorf("metadata: got vol=%v momentum=%v", row.VolatilityScore, row.VolumeMomentum)
	}
	if row.InfluenceScore != 2 || row.IndependenceScore != 0 {
		t.Errorf("scores: got %d/%d", row.InfluenceScore, row.IndependenceScore)
	}
	if row.Timestamp != 1_700_000_000_000 {
		t.Errorf("timestamp: got %d", row.Timestamp)
	}
}

func TestBuild_QualityFromGraphStructure(t *testing.T) {
	// BTC leads three and is led by none: ALPHA.
	graph := seedGraph(t,
		[]*domain.LeadsRelationship{
			{Leader: "BTC", Follower: "ETH", Correlation: 0.9, Lag: 1},
			{Leader: "BTC", Follower: "SOL", Correlation: 0.8, Lag: 1},
			{Leader: "BTC", Follower: "ADA", Correlation: 0.75, Lag: 2},
			{Leader: "ETH", Follower: "SOL", Correlation: 0.72, Lag: 1},
		},
		nil,
	)

	builder := NewSnapshotBuilder(NewClassifier(DefaultConfig()))
	rows, err := builder.Build(context.Background(), graph, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	byLeader := make(map[string]*domain.LeaderSnapshot)
	for _, row := range rows {
		byLeader[row.Leader] = row
	}

	if got := byLeader["BTC"].LeaderQuality; got != domain.QualityAlpha {
		t.Errorf("BTC quality: got %s, want ALPHA", got)
	}
	// ETH is led by BTC, so it cannot be ALPHA.
	if got := byLeader["ETH"].LeaderQuality; got != domain.QualityWeak {
		t.Errorf("ETH quality: got %s, want WEAK", got)
	}
}

func TestBuild_MissingMetadataDefaultsToZero(t *testing.T) {
	graph := seedGraph(t,
		[]*domain.LeadsRelationship{
			{Leader: "BTC", Follower: "ETH", Correlation: 0.9, Lag: 1},
		},
		nil,
	)

	builder := NewSnapshotBuilder(NewClassifier(DefaultConfig()))
	rows, err := builder.Build(context.Background(), graph, 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// The memory graph creates bare vertices for edge endpoints, so the
	// asset exists with zero metadata either way.
	if rows[0].VolatilityScore != 0 || rows[0].VolumeMomentum != 0 {
		t.Errorf("bare vertex metadata: got vol=%v momentum=%v, want zeros",
			rows[0].VolatilityScore, rows[0].VolumeMomentum)
	}
}

func TestBuild_EmptyGraph(t *testing.T) {
	builder := NewSnapshotBuilder(NewClassifier(DefaultConfig()))
	rows, err := builder.Build(context.Background(), memory.NewGraphStore(), 1)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows: got %d, want 0", len(rows))
	}
}

func TestFollowersSummary_DedupLaterWins(t *testing.T) {
	edges := []*domain.LeadsRelationship{
		{Follower: "ETH", Correlation: 0.91},
		{Follower: "SOL", Correlation: -0.76},
		{Follower: "ETH", Correlation: 0.5},
	}

	got := FollowersSummary(edges)
	want := "ETH(0.50); SOL(-0.76)"
	if got != want {
		t.Errorf("summary: got %q, want %q", got, want)
	}
}

func TestFollowersSummary_Empty(t *testing.T) {
	if got := FollowersSummary(nil); got != "" {
		t.Errorf("empty edges: got %q, want empty", got)
	}
}
