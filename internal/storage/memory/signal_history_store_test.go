package memory

import (
	"context"
	"errors"
	"testing"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
)

func TestSignalHistory_AppendAndReadAll(t *testing.T) {
	store := NewSignalHistoryStore()
	ctx := context.Background()

	err := store.Append(ctx, []*domain.SignalRecord{
		{Strategy: "ALPHA_MOMENTUM", LeaderSymbol: "BTC", GeneratedAt: 100},
		{Strategy: "INSTANT_SYNC", LeaderSymbol: "ETH", GeneratedAt: 100},
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}
	if records[0].Strategy != "ALPHA_MOMENTUM" || records[1].Strategy != "INSTANT_SYNC" {
		t.Errorf("storage order broken: %+v", records)
	}
}

func TestSignalHistory_AppendInvalidRecord(t *testing.T) {
	store := NewSignalHistoryStore()

	err := store.Append(context.Background(), []*domain.SignalRecord{{LeaderSymbol: "BTC"}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestSignalHistory_TrimDropsOldest(t *testing.T) {
	store := NewSignalHistoryStore()
	ctx := context.Background()

	records := make([]*domain.SignalRecord, 0, 7)
	for i := 0; i < 7; i++ {
		records = append(records, &domain.SignalRecord{Strategy: "INSTANT_SYNC", GeneratedAt: int64(i)})
	}
	if err := store.Append(ctx, records); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	dropped, err := store.Trim(ctx, 5)
	if err != nil {
		t.Fatalf("Trim failed: %v", err)
	}
	if dropped != 2 {
		t.Errorf("dropped: got %d, want 2", dropped)
	}

	kept, err := store.ReadAll(ctx)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(kept) != 5 || kept[0].GeneratedAt != 2 {
		t.Errorf("retention window: got %d records, first at %d", len(kept), kept[0].GeneratedAt)
	}
}

func TestSignalHistory_TrimNegativeMax(t *testing.T) {
	store := NewSignalHistoryStore()

	_, err := store.Trim(context.Background(), -1)
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
