package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

func TestSnapshotHistory_AppendAndReadAll(t *testing.T) {
	store := NewSnapshotHistoryStore()
	ctx := context.Background()

	err := store.Append(ctx, []*domain.LeaderSnapshot{
		{Leader: "BTC", Timestamp: 100},
		{Leader: "ETH", Timestamp: 100},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := store.Append(ctx, []*domain.LeaderSnapshot{{Leader: "BTC", Timestamp: 200}}); err != nil {
		t.Fatalf("second Append failed: %v", err)
	}

	rows, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows: got %d, want 3", len(rows))
	}
	// Append order is storage order.
	if rows[0].Leader != "BTC" || rows[0].Timestamp != 100 || rows[2].Timestamp != 200 {
		t.Errorf("storage order broken: %+v", rows)
	}
}

func TestSnapshotHistory_AppendInvalidRow(t *testing.T) {
	store := NewSnapshotHistoryStore()

	err := store.Append(context.Background(), []*domain.LeaderSnapshot{{Timestamp: 100}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestSnapshotHistory_LatestPicksNewestTimestamp(t *testing.T) {
	store := NewSnapshotHistoryStore()
	ctx := context.Background()

	err := store.Append(ctx, []*domain.LeaderSnapshot{
		{Leader: "BTC", Timestamp: 100},
		{Leader: "BTC", Timestamp: 300},
		{Leader: "ETH", Timestamp: 300},
		{Leader: "SOL", Timestamp: 200},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rows, err := store.Latest(ctx)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("latest rows: got %d, want 2", len(rows))
	}
	if rows[0].Leader != "BTC" || rows[1].Leader != "ETH" {
		t.Errorf("latest batch: got %+v", rows)
	}
}

func TestSnapshotHistory_LatestOnEmpty(t *testing.T) {
	store := NewSnapshotHistoryStore()

	rows, err := store.Latest(context.Background())
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows: got %d, want 0", len(rows))
	}
}

func TestSnapshotHistory_TrimDropsOldest(t *testing.T) {
	store := NewSnapshotHistoryStore()
	ctx := context.Background()

	rows := make([]*domain.LeaderSnapshot, 0, 110)
	for i := 0; i < 110; i++ {
		rows = append(rows, &domain.LeaderSnapshot{
			Leader:    fmt.Sprintf("SYM%03d", i),
			Timestamp: int64(i),
		})
	}
	if err := store.Append(ctx, rows); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dropped, err := store.Trim(ctx, 100)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if dropped != 10 {
		t.Errorf("dropped: got %d, want 10", dropped)
	}

	kept, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(kept) != 100 {
		t.Fatalf("kept: got %d, want 100", len(kept))
	}
	// The oldest ten rows are gone; retention follows storage order.
	if kept[0].Leader != "SYM010" || kept[99].Leader != "SYM109" {
		t.Errorf("retention window: got first=%s last=%s", kept[0].Leader, kept[99].Leader)
	}
}

func TestSnapshotHistory_TrimUnderCapIsNoop(t *testing.T) {
	store := NewSnapshotHistoryStore()
	ctx := context.Background()

	if err := store.Append(ctx, []*domain.LeaderSnapshot{{Leader: "BTC", Timestamp: 1}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dropped, err := store.Trim(ctx, 100)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if dropped != 0 {
		t.Errorf("dropped: got %d, want 0", dropped)
	}
}

func TestSnapshotHistory_TrimNegativeMax(t *testing.T) {
	store := NewSnapshotHistoryStore()

	_, err := store.Trim(context.Background(), -1)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestSnapshotHistory_ReadsReturnCopies(t *testing.T) {
	store := NewSnapshotHistoryStore()
	ctx := context.Background()

	if err := store.Append(ctx, []*domain.LeaderSnapshot{{Leader: "BTC", Timestamp: 1, AvgLag: 2}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	rows, _ := store.ReadAll(ctx)
	rows[0].AvgLag = 999

	again, _ := store.ReadAll(ctx)
	if again[0].AvgLag != 2 {
		t.Errorf("mutation leaked into store: %v", again[0].AvgLag)
	}
}
