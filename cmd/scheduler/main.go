// Package main runs the long-lived service: cron-driven analysis
// cycles fed by a live kline stream, with a Prometheus endpoint.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadlag/internal/app"
	"leadlag/internal/classify"
	"leadlag/internal/config"
	"leadlag/internal/correlation"
	"leadlag/internal/marketdata"
	"leadlag/internal/metadata"
	"leadlag/internal/observability"
	"leadlag/internal/orchestrator"
	"leadlag/internal/pricetable"
	"leadlag/internal/scheduler"
	rules "leadlag/internal/signal"
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

	stores, err := app.BuildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("store wiring failed")
		os.Exit(1)
	}
	defer stores.Close()

	rest := marketdata.NewHTTPClient(
		marketdata.WithBaseURL(cfg.Market.BaseURL),
		marketdata.WithTimeout(cfg.Market.FetchTimeout),
	)

	// The stream needs the symbol set up front; pin it at startup.
	symbols, err := rest.TopSymbols(ctx, cfg.Market.QuoteAsset, cfg.Market.TopSymbols)
	if err != nil {
		logger.Error().Err(err).Msg("resolve top symbols failed")
		os.Exit(1)
	}
	logger.Info().Int("symbols", len(symbols)).Msg("symbol set pinned")

	rolling := pricetable.NewRolling(cfg.Market.KlineLimit)
	streamCfg := marketdata.DefaultStreamConfig()
	streamCfg.URL = cfg.Market.StreamURL
	streamCfg.OnReconnect = observability.DefaultMetrics.StreamReconnects.Inc
	stream, err := marketdata.NewKlineStream(ctx, symbols, &streamCfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("kline stream failed")
		os.Exit(1)
	}
	defer stream.Close()

	go func() {
		for update := range stream.Updates() {
			observability.DefaultMetrics.StreamUpdates.Inc()
			if update.Closed {
				rolling.Append(update.Symbol, update.Candle)
			}
		}
	}()

	engineCfg := correlation.DefaultConfig()
	engineCfg.MaxLag = cfg.Engine.MaxLag
	engineCfg.Threshold = cfg.Engine.Threshold
	engineCfg.IncludeZeroLag = cfg.Engine.IncludeZeroLag
	if cfg.Engine.Workers > 0 {
		engineCfg.Workers = cfg.Engine.Workers
	}

	orch := orchestrator.New(orchestrator.Options{
		Client:        marketdata.NewStreamingClient(rest, rolling, 0),
		Engine:        correlation.NewEngine(engineCfg),
		Extractor:     metadata.NewExtractor(metadata.DefaultConfig()),
		Builder:       classify.NewSnapshotBuilder(classify.NewClassifier(classify.DefaultConfig())),
		Evaluator:     rules.NewEvaluator(rules.DefaultConfig()),
		Graph:         stores.Graph,
		SnapshotStore: stores.SnapshotStore,
		SignalStore:   stores.SignalStore,
		Cache:         stores.Cache,
		Publisher:     stores.Publisher,
		QuoteAsset:    cfg.Market.QuoteAsset,
		TopSymbols:    cfg.Market.TopSymbols,
		KlineLimit:    cfg.Market.KlineLimit,
		MaxSnapshots:  cfg.Clickhouse.MaxSnapshots,
		MaxSignals:    cfg.Clickhouse.MaxSignals,
		Logger:        logger,
	})

	metricsSrv := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux(),
	}
	go func() {
		logger.Info().Str("addr", metricsSrv.Addr).Msg("metrics endpoint up")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	sched := scheduler.New(orch, logger, app.CycleTimeout)
	if err := sched.Schedule(cfg.Scheduler.CronSpec); err != nil {
		logger.Error().Err(err).Msg("invalid cron spec")
		os.Exit(1)
	}
	sched.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Warn().Str("signal", sig.String()).Msg("shutting down")

	sched.Stop()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
