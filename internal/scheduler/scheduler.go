// Package scheduler drives recurring pipeline cycles on a cron
// schedule. Overlapping triggers are skipped, never queued: a cycle
// still in flight when the next tick fires wins.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"leadlag/internal/orchestrator"
)

// Runner is the unit of scheduled work, satisfied by
// orchestrator.Orchestrator.
type Runner interface {
	Run(ctx context.Context) (*orchestrator.RunResult, error)
}

// Scheduler wraps a cron instance around one pipeline runner.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	logger  zerolog.Logger
	timeout time.Duration
}

// New creates a scheduler. timeout bounds each cycle; zero means no
// per-cycle deadline.
func New(runner Runner, logger zerolog.Logger, timeout time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		runner:  runner,
		logger:  logger.With().Str("component", "scheduler").Logger(),
		timeout: timeout,
	}
}

// Schedule registers the pipeline on a standard 5-field cron spec.
func (s *Scheduler) Schedule(spec string) error {
	_, err := s.cron.AddFunc(spec, s.runCycle)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.logger.Info().Str("spec", spec).Msg("pipeline scheduled")
	return nil
}

// Start begins firing scheduled cycles.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running cycle to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runCycle() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	result, err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, orchestrator.ErrAlreadyRunning):
		s.logger.Warn().Msg("previous cycle still running, tick skipped")
	case errors.Is(err, orchestrator.ErrHistoryUnavailable):
		s.logger.Error().Err(err).Dur("took", time.Since(started)).
			Msg("cycle completed with degraded history")
	case err != nil:
		s.logger.Error().Err(err).Dur("took", time.Since(started)).Msg("cycle failed")
	default:
		s.logger.Info().
			Int("symbols", result.SymbolsFetched).
			Int("relationships", result.RelationshipsFound).
			Int("signals", result.SignalsEmitted).
			Dur("took", time.Since(started)).
			Msg("cycle finished")
	}
}
