// Package app wires configured backends into the stores and clients
// the binaries share. Disabled backends fall back to in-memory stores
// so a bare laptop run needs no infrastructure.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"leadlag/internal/classify"
	"leadlag/internal/config"
	"leadlag/internal/correlation"
	"leadlag/internal/marketdata"
	"leadlag/internal/metadata"
	"leadlag/internal/orchestrator"
	"leadlag/internal/publish"
	"leadlag/internal/signal"
	"leadlag/internal/storage"
	"leadlag/internal/storage/clickhouse"
	"leadlag/internal/storage/memory"
	"leadlag/internal/storage/migrations"
	"leadlag/internal/storage/postgres"
	"leadlag/internal/storage/redis"
)

// NewLogger builds the process-wide zerolog logger from config.
func NewLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
	if cfg.Env == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return logger
}

// Stores bundles every wired backend plus its teardown.
type Stores struct {
	Graph         storage.GraphStore
	SnapshotStore storage.SnapshotHistoryStore
	SignalStore   storage.SignalHistoryStore
	Cache         *redis.SnapshotCache
	Publisher     publish.SignalPublisher

	closers []func() error
}

// Close releases all backend connections in reverse wiring order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

// BuildStores connects to every enabled backend, runs migrations, and
// returns the assembled store set.
func BuildStores(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Stores, error) {
	s := &Stores{}

	if cfg.Postgres.Enabled {
		pool, err := postgres.NewPool(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.closers = append(s.closers, func() error { pool.Close(); return nil })

		if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
			s.Close()
			return nil, fmt.Errorf("postgres migrations: %w", err)
		}
		s.Graph = postgres.NewGraphStore(pool)
		logger.Info().Msg("leadership graph: postgres")
	} else {
		s.Graph = memory.NewGraphStore()
		logger.Info().Msg("leadership graph: in-memory")
	}

	if cfg.Clickhouse.Enabled {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.Clickhouse.DSN)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("clickhouse migrations: %w", err)
		}
		s.closers = append(s.closers, conn.Close)
		s.SnapshotStore = clickhouse.NewSnapshotHistoryStore(conn)
		s.SignalStore = clickhouse.NewSignalHistoryStore(conn)
		logger.Info().Msg("history sinks: clickhouse")
	} else {
		s.SnapshotStore = memory.NewSnapshotHistoryStore()
		s.SignalStore = memory.NewSignalHistoryStore()
		logger.Info().Msg("history sinks: in-memory")
	}

	if cfg.Redis.Enabled {
		cache, err := redis.NewSnapshotCache(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		s.closers = append(s.closers, cache.Close)
		s.Cache = cache
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("snapshot cache: redis")
	}

	if cfg.Kafka.Enabled {
		publisher, err := publish.NewKafkaPublisher(publish.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		s.closers = append(s.closers, publisher.Close)
		s.Publisher = publisher
		logger.Info().Str("topic", cfg.Kafka.Topic).Msg("signal fan-out: kafka")
	}

	return s, nil
}

// BuildOrchestrator assembles the pipeline on top of wired stores.
func BuildOrchestrator(cfg *config.Config, stores *Stores, logger zerolog.Logger) *orchestrator.Orchestrator {
	engineCfg := correlation.DefaultConfig()
	engineCfg.MaxLag = cfg.Engine.MaxLag
	engineCfg.Threshold = cfg.Engine.Threshold
	engineCfg.IncludeZeroLag = cfg.Engine.IncludeZeroLag
	if cfg.Engine.Workers > 0 {
		engineCfg.Workers = cfg.Engine.Workers
	}

	client := marketdata.NewHTTPClient(
		marketdata.WithBaseURL(cfg.Market.BaseURL),
		marketdata.WithTimeout(cfg.Market.FetchTimeout),
	)

	return orchestrator.New(orchestrator.Options{
		Client:        client,
		Engine:        correlation.NewEngine(engineCfg),
		Extractor:     metadata.NewExtractor(metadata.DefaultConfig()),
		Builder:       classify.NewSnapshotBuilder(classify.NewClassifier(classify.DefaultConfig())),
		Evaluator:     signal.NewEvaluator(signal.DefaultConfig()),
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
}

// CycleTimeout bounds a scheduled cycle: generous enough for a cold
// kline backfill, short enough to never overlap two 15-minute ticks.
const CycleTimeout = 10 * time.Minute
