// Package main runs one full analysis cycle.
// Executes: market data → lag correlation → graph → snapshots → signals.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"leadlag/internal/app"
	"leadlag/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Warn().Str("signal", sig.String()).Msg("cancelling cycle")
		cancel()
	}()

	stores, err := app.BuildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("store wiring failed")
		os.Exit(1)
	}
	defer stores.Close()

	orch := app.BuildOrchestrator(cfg, stores, logger)

	result, err := orch.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("cycle failed")
		os.Exit(1)
	}

	fmt.Printf("Cycle completed:\n")
	fmt.Printf("  Symbols:       %d\n", result.SymbolsFetched)
	fmt.Printf("  Relationships: %d\n", result.RelationshipsFound)
	fmt.Printf("  Leaders:       %d\n", result.LeadersSnapshotted)
	fmt.Printf("  Signals:       %d\n", result.SignalsEmitted)
	fmt.Printf("  Graph stored:  %v\n", result.GraphPersisted)
	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %s\n", e)
		}
	}
}
