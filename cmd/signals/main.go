// Package main runs the standalone signal stage: latest snapshot rows
// (cache first, history store as fallback) → rule evaluation → signal
// history. Useful for re-evaluating rules without a full market cycle.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"leadlag/internal/app"
	"leadlag/internal/config"
	"leadlag/internal/domain"
	"leadlag/internal/signal"
	"leadlag/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	stores, err := app.BuildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("store wiring failed")
		os.Exit(1)
	}
	defer stores.Close()

	rows, err := latestRows(ctx, stores)
	if err != nil {
		logger.Error().Err(err).Msg("load latest snapshots failed")
		os.Exit(1)
	}
	logger.Info().Int("rows", len(rows)).Msg("latest snapshots loaded")

	dataTS := time.Now().UnixMilli()
	if len(rows) > 0 {
		dataTS = rows[0].Timestamp
	}

	evaluator := signal.NewEvaluator(signal.DefaultConfig())
	signals := evaluator.EvaluateAll(rows, dataTS)

	if err := stores.SignalStore.Append(ctx, signals); err != nil {
		logger.Error().Err(err).Msg("append signal history failed")
		os.Exit(1)
	}
	if _, err := stores.SignalStore.Trim(ctx, cfg.Clickhouse.MaxSignals); err != nil {
		logger.Error().Err(err).Msg("trim signal history failed")
		os.Exit(1)
	}

	for _, sig := range signals {
		fmt.Printf("[%s] %s %s: %s\n", sig.SignalStrength, sig.Strategy, sig.LeaderSymbol, sig.Description)
	}
}

// latestRows prefers the redis cache and falls back to the history
// store when the cache is disabled, empty, or expired.
func latestRows(ctx context.Context, stores *app.Stores) ([]*domain.LeaderSnapshot, error) {
	if stores.Cache != nil {
		rows, err := stores.Cache.Get(ctx)
		if err == nil {
			return rows, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("snapshot cache: %w", err)
		}
	}
	rows, err := stores.SnapshotStore.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot history: %w", err)
	}
	return rows, nil
}
