// Package orchestrator provides E2E pipeline orchestration.
// It coordinates: market data → lag correlation → leadership graph →
// snapshots → signal evaluation → history sinks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"leadlag/internal/classify"
	"leadlag/internal/correlation"
	"leadlag/internal/domain"
	"leadlag/internal/marketdata"
	"leadlag/internal/metadata"
	"leadlag/internal/observability"
	"leadlag/internal/pricetable"
	"leadlag/internal/publish"
	"leadlag/internal/signal"
	"leadlag/internal/storage"
	"leadlag/internal/storage/memory"
	"leadlag/internal/storage/redis"
)

// ErrHistoryUnavailable marks a cycle that computed results but could
// not append them to a history sink. Callers distinguish it from
// compute failures: the graph may still hold the cycle's edges.
var ErrHistoryUnavailable = errors.New("history sink unavailable")

// Orchestrator coordinates one full pipeline cycle. At most one cycle
// runs at a time; Run returns ErrAlreadyRunning when called
// concurrently.
type Orchestrator struct {
	client    marketdata.Client
	engine    *correlation.Engine
	extractor *metadata.Extractor
	builder   *classify.SnapshotBuilder
	evaluator *signal.Evaluator

	graph         storage.GraphStore
	snapshotStore storage.SnapshotHistoryStore
	signalStore   storage.SignalHistoryStore
	cache         *redis.SnapshotCache
	publisher     publish.SignalPublisher

	quoteAsset   string
	topSymbols   int
	klineLimit   int
	maxSnapshots int
	maxSignals   int

	logger  zerolog.Logger
	metrics *observability.Metrics

	runMu sync.Mutex
	now   func() time.Time
}

// ErrAlreadyRunning is returned when a cycle is requested while another
// is still in flight.
var ErrAlreadyRunning = errors.New("pipeline cycle already running")

// Options for creating Orchestrator.
type Options struct {
	// Required
	Client        marketdata.Client
	Engine        *correlation.Engine
	Extractor     *metadata.Extractor
	Builder       *classify.SnapshotBuilder
	Evaluator     *signal.Evaluator
	Graph         storage.GraphStore
	SnapshotStore storage.SnapshotHistoryStore
	SignalStore   storage.SignalHistoryStore

	// Optional
	Cache     *redis.SnapshotCache    // latest-snapshot cache, may be nil
	Publisher publish.SignalPublisher // downstream signal fan-out, may be nil
	Metrics   *observability.Metrics  // defaults to observability.DefaultMetrics

	QuoteAsset   string // defaults to USDT
	TopSymbols   int    // defaults to 50
	KlineLimit   int    // defaults to 500
	MaxSnapshots int    // history retention cap, defaults to 5000
	MaxSignals   int    // history retention cap, defaults to 5000

	Logger zerolog.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.QuoteAsset == "" {
		opts.QuoteAsset = "USDT"
	}
	if opts.TopSymbols <= 0 {
		opts.TopSymbols = 50
	}
	if opts.KlineLimit <= 0 {
		opts.KlineLimit = 500
	}
	if opts.MaxSnapshots <= 0 {
		opts.MaxSnapshots = 5000
	}
	if opts.MaxSignals <= 0 {
		opts.MaxSignals = 5000
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.DefaultMetrics
	}

	return &Orchestrator{
		client:        opts.Client,
		engine:        opts.Engine,
		extractor:     opts.Extractor,
		builder:       opts.Builder,
		evaluator:     opts.Evaluator,
		graph:         opts.Graph,
		snapshotStore: opts.SnapshotStore,
		signalStore:   opts.SignalStore,
		cache:         opts.Cache,
		publisher:     opts.Publisher,
		quoteAsset:    opts.QuoteAsset,
		topSymbols:    opts.TopSymbols,
		klineLimit:    opts.KlineLimit,
		maxSnapshots:  opts.MaxSnapshots,
		maxSignals:    opts.MaxSignals,
		logger:        opts.Logger.With().Str("component", "orchestrator").Logger(),
		metrics:       opts.Metrics,
		now:           time.Now,
	}
}

// RunResult contains results from one pipeline cycle.
type RunResult struct {
	SymbolsFetched     int
	RelationshipsFound int
	LeadersSnapshotted int
	SignalsEmitted     int
	// GraphPersisted is false when the durable graph store failed and
	// the cycle fell back to an in-memory graph.
	GraphPersisted bool
	Errors         []string
}

// Run executes one full pipeline cycle.
// Phases:
//  1. Fetch top symbols and their 1m klines
//  2. Build the aligned price table
//  3. Discover lag correlations
//  4. Extract per-asset metadata
//  5. Mirror assets and edges into the leadership graph
//  6. Build snapshots, append to history, refresh the cache
//  7. Evaluate signal rules, append to history, publish downstream
func (o *Orchestrator) Run(ctx context.Context) (*RunResult, error) {
	if !o.runMu.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer o.runMu.Unlock()

	started := o.now()
	result := &RunResult{GraphPersisted: true}

	// Phase 1: market data
	series, err := o.fetchSeries(ctx)
	if err != nil {
		o.metrics.RecordPipelineRun("fetch", "error", time.Since(started).Seconds())
		return nil, fmt.Errorf("fetch market data: %w", err)
	}
	result.SymbolsFetched = len(series)
	o.metrics.SymbolsFetched.Set(float64(len(series)))
	o.logger.Info().Int("symbols", len(series)).Msg("market data fetched")

	if len(series) == 0 {
		o.logger.Warn().Msg("no symbols fetched, skipping cycle")
		return result, nil
	}

	// Phase 2: price table
	table := pricetable.Build(series)
	if table.Len() == 0 {
		o.logger.Warn().Msg("empty price table, skipping cycle")
		return result, nil
	}

	// Phase 3: lag correlation sweep
	sweepStart := o.now()
	candidates := o.engine.Discover(ctx, table)
	n := len(table.Symbols)
	o.metrics.PairsScanned.Add(float64(n * (n - 1)))
	o.metrics.DiscoveryLatency.Observe(time.Since(sweepStart).Seconds())
	o.metrics.RelationshipsFound.Set(float64(len(candidates)))
	result.RelationshipsFound = len(candidates)
	o.logger.Info().
		Int("relationships", len(candidates)).
		Dur("took", time.Since(sweepStart)).
		Msg("lag correlation sweep done")

	// Phase 4: per-asset metadata
	nowMs := o.now().UnixMilli()
	assets := make(map[string]*domain.Asset, len(series))
	for symbol, candles := range series {
		assets[symbol] = o.extractor.Extract(symbol, candles, nowMs)
	}

	// Phase 5: graph mirror. A durable-store failure degrades to a
	// cycle-local memory graph so snapshots and signals still happen.
	graph := o.graph
	if err := o.mirrorGraph(ctx, graph, assets, candidates, nowMs); err != nil {
		o.logger.Error().Err(err).Msg("durable graph unavailable, using in-memory fallback")
		result.Errors = append(result.Errors, fmt.Sprintf("graph mirror: %v", err))
		result.GraphPersisted = false

		graph = memory.NewGraphStore()
		if err := o.mirrorGraph(ctx, graph, assets, candidates, nowMs); err != nil {
			return nil, fmt.Errorf("memory graph mirror: %w", err)
		}
	}
	o.metrics.GraphPersisted.Set(boolGauge(result.GraphPersisted))

	// Phase 6: snapshots
	rows, err := o.builder.Build(ctx, graph, nowMs)
	if err != nil {
		return nil, fmt.Errorf("build snapshots: %w", err)
	}
	result.LeadersSnapshotted = len(rows)
	o.metrics.LeadersSnapshotted.Set(float64(len(rows)))

	var historyErr error
	if err := o.appendSnapshots(ctx, rows); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("snapshot history: %v", err))
		historyErr = fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	if o.cache != nil && len(rows) > 0 {
		if err := o.cache.Put(ctx, rows); err != nil {
			// Cache is advisory; history is the source of truth.
			o.logger.Warn().Err(err).Msg("snapshot cache refresh failed")
			result.Errors = append(result.Errors, fmt.Sprintf("snapshot cache: %v", err))
		}
	}

	// Phase 7: signals
	signals := o.evaluator.EvaluateAll(rows, nowMs)
	result.SignalsEmitted = len(signals)
	for _, sig := range signals {
		o.metrics.RecordSignal(sig.Strategy)
	}
	o.logger.Info().Int("signals", len(signals)).Msg("rules evaluated")

	if err := o.appendSignals(ctx, signals); err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("signal history: %v", err))
		if historyErr == nil {
			historyErr = fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
		}
	}

	if o.publisher != nil {
		if err := o.publisher.Publish(ctx, signals); err != nil {
			// Best-effort fan-out; the history sink already has the rows.
			o.logger.Warn().Err(err).Msg("signal publish failed")
			result.Errors = append(result.Errors, fmt.Sprintf("signal publish: %v", err))
		}
	}

	status := "ok"
	if historyErr != nil {
		status = "degraded"
	} else {
		o.metrics.LastSuccessfulRun.Set(float64(o.now().Unix()))
	}
	o.metrics.RecordPipelineRun("cycle", status, time.Since(started).Seconds())

	o.logger.Info().
		Int("symbols", result.SymbolsFetched).
		Int("relationships", result.RelationshipsFound).
		Int("leaders", result.LeadersSnapshotted).
		Int("signals", result.SignalsEmitted).
		Bool("graph_persisted", result.GraphPersisted).
		Dur("took", time.Since(started)).
		Msg("cycle completed")

	return result, historyErr
}

// fetchSeries loads the top symbols and their candle history. A symbol
// whose kline fetch fails is dropped from the cycle, not fatal.
//
// The exchange speaks full pair symbols ("BTCUSDT"); everything
// downstream of this point carries base symbols ("BTC"), so the quote
// asset is stripped when keying the series map.
func (o *Orchestrator) fetchSeries(ctx context.Context) (map[string][]domain.Candle, error) {
	symbols, err := o.client.TopSymbols(ctx, o.quoteAsset, o.topSymbols)
	if err != nil {
		o.metrics.RecordFetchError("ticker")
		return nil, fmt.Errorf("top symbols: %w", err)
	}

	series := make(map[string][]domain.Candle, len(symbols))
	for _, symbol := range symbols {
		candles, err := o.client.Klines(ctx, symbol, o.klineLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.metrics.RecordFetchError("klines")
			o.logger.Warn().Str("symbol", symbol).Err(err).Msg("kline fetch failed, dropping symbol")
			continue
		}
		if len(candles) == 0 {
			continue
		}
		series[baseSymbol(symbol, o.quoteAsset)] = candles
		o.metrics.CandlesFetched.Add(float64(len(candles)))
	}
	return series, nil
}

// baseSymbol strips the quote currency from a pair symbol, turning
// "BTCUSDT" into "BTC". A symbol that is nothing but the quote asset is
// returned unchanged.
func baseSymbol(symbol, quote string) string {
	base := strings.TrimSuffix(symbol, quote)
	if base == "" {
		return symbol
	}
	return base
}

// mirrorGraph upserts all assets first, then the discovered edges.
func (o *Orchestrator) mirrorGraph(ctx context.Context, graph storage.GraphStore, assets map[string]*domain.Asset, candidates []correlation.Candidate, nowMs int64) error {
	for _, asset := range assets {
		if err := graph.UpsertAsset(ctx, asset); err != nil {
			return fmt.Errorf("upsert asset %s: %w", asset.Symbol, err)
		}
	}
	for _, cand := range candidates {
		rel := &domain.LeadsRelationship{
			Leader:      cand.Leader,
			Follower:    cand.Follower,
			Correlation: cand.Correlation,
			Lag:         cand.Lag,
			UpdatedAt:   nowMs,
		}
		if err := graph.UpsertRelationship(ctx, rel); err != nil {
			return fmt.Errorf("upsert edge %s->%s: %w", cand.Leader, cand.Follower, err)
		}
	}
	return nil
}

func (o *Orchestrator) appendSnapshots(ctx context.Context, rows []*domain.LeaderSnapshot) error {
	if len(rows) == 0 {
		return nil
	}
	if err := o.snapshotStore.Append(ctx, rows); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	dropped, err := o.snapshotStore.Trim(ctx, o.maxSnapshots)
	if err != nil {
		return fmt.Errorf("trim: %w", err)
	}
	if dropped > 0 {
		o.logger.Debug().Int("dropped", dropped).Msg("snapshot history trimmed")
	}
	return nil
}

func (o *Orchestrator) appendSignals(ctx context.Context, records []*domain.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}
	if err := o.signalStore.Append(ctx, records); err != nil {
		return fmt.Errorf("append: %w", err)
	}
	dropped, err := o.signalStore.Trim(ctx, o.maxSignals)
	if err != nil {
		return fmt.Errorf("trim: %w", err)
	}
	if dropped > 0 {
		o.logger.Debug().Int("dropped", dropped).Msg("signal history trimmed")
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
