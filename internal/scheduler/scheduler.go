// Package scheduler drives the engine on a fixed interval in serve mode.
package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/atirdror123/sniperbot/internal/scan"
)

// CycleRunner is the unit of scheduled work; satisfied by app.Engine.
type CycleRunner interface {
	RunCycle(ctx context.Context, asOf time.Time) (scan.CycleResult, error)
}

// Scheduler runs evaluation cycles at a fixed cadence until its context is
// cancelled. Cycle failures are logged and the cadence continues: a broken
// feed must not kill the daemon.
type Scheduler struct {
	runner   CycleRunner
	interval time.Duration
	log      zerolog.Logger
}

// New creates a scheduler with the given cadence.
func New(runner CycleRunner, interval time.Duration, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		interval: interval,
		log:      logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run executes one cycle immediately, then ticks until ctx is done.
// Returns ctx.Err() on cancellation.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.runner.RunCycle(ctx, time.Now().UTC()); err != nil {
		s.log.Error().Err(err).Msg("scheduled cycle failed")
	}
}
