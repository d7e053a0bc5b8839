package clickhouse_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadlag/internal/domain"
	"leadlag/internal/storage"
	"leadlag/internal/storage/clickhouse"
)

func TestSignalHistoryStore_RoundTrip(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSignalHistoryStore(conn)
	ctx := context.Background()

	record := &domain.SignalRecord{
		Strategy:       "LEADER_MOMENTUM",
		SignalStrength: domain.StrengthMedium,
		Description:    "BTC leads 2 assets by 1.5 minutes",
		ActionAsset:    "BTC",
		TradeAsset:     "ETH",
		Condition:      "avg_lag > 1 and avg_corr > 0.75",
		GeneratedAt:    1_700_000_000_000,
		DataTimestamp:  1_699_999_000_000,
		LeaderSymbol:   "BTC",
		LeaderQuality:  domain.QualityStrong,
		AvgCorrelation: 0.82,
		AvgLag:         1.5,
	}
	require.NoError(t, store.Append(ctx, []*domain.SignalRecord{record}))

	records, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, record.Strategy, got.Strategy)
	assert.Equal(t, record.SignalStrength, got.SignalStrength)
	assert.Equal(t, record.Description, got.Description)
	assert.Equal(t, record.ActionAsset, got.ActionAsset)
	assert.Equal(t, record.TradeAsset, got.TradeAsset)
	assert.Equal(t, record.Condition, got.Condition)
	assert.Equal(t, record.GeneratedAt, got.GeneratedAt)
	assert.Equal(t, record.DataTimestamp, got.DataTimestamp)
	assert.Equal(t, record.LeaderSymbol, got.LeaderSymbol)
	assert.Equal(t, record.LeaderQuality, got.LeaderQuality)
	assert.Equal(t, record.AvgCorrelation, got.AvgCorrelation)
	assert.Equal(t, record.AvgLag, got.AvgLag)
}

func TestSignalHistoryStore_TrimDropsOldest(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSignalHistoryStore(conn)
	ctx := context.Background()

	records := make([]*domain.SignalRecord, 0, 7)
	for i := 0; i < 7; i++ {
		records = append(records, &domain.SignalRecord{
			Strategy:       "INSTANT_SYNC",
			SignalStrength: domain.StrengthHFT,
			GeneratedAt:    int64(i),
		})
	}
	require.NoError(t, store.Append(ctx, records))

	dropped, err := store.Trim(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)

	kept, err := store.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, kept, 5)
	assert.Equal(t, int64(2), kept[0].GeneratedAt)
	assert.Equal(t, int64(6), kept[4].GeneratedAt)
}

func TestSignalHistoryStore_InvalidInput(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewSignalHistoryStore(conn)
	ctx := context.Background()

	err := store.Append(ctx, []*domain.SignalRecord{{LeaderSymbol: "BTC"}})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)

	_, err = store.Trim(ctx, -1)
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}
