// Package app wires the evaluation pipeline to the paper-trading books and
// the optional persistence, cache, and metrics collaborators.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/atirdror123/sniperbot/internal/feed"
	"github.com/atirdror123/sniperbot/internal/metrics"
	"github.com/atirdror123/sniperbot/internal/persistence"
	"github.com/atirdror123/sniperbot/internal/portfolio"
	"github.com/atirdror123/sniperbot/internal/scan"
	"github.com/atirdror123/sniperbot/internal/store"
)

// Engine runs the full cycle: fetch, evaluate, trade the transitions on
// paper, mark to market, then fan results out to storage and telemetry.
// The scheduler and the HTTP trigger both call RunCycle; runMu serializes
// them so each cycle sees settled books.
type Engine struct {
	runMu      sync.Mutex
	source     feed.Source
	pipeline   *scan.Pipeline
	sizer      *portfolio.Sizer
	accountant *portfolio.Accountant

	signals   persistence.SignalStore    // optional
	history   persistence.PortfolioStore // optional
	liveCache *store.LiveCache           // optional
	collector *metrics.Collector         // optional

	log zerolog.Logger
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithSignalStore persists gated signals and lifecycle transitions.
func WithSignalStore(s persistence.SignalStore) Option {
	return func(e *Engine) { e.signals = s }
}

// WithPortfolioStore persists equity snapshots and closed trades.
func WithPortfolioStore(s persistence.PortfolioStore) Option {
	return func(e *Engine) { e.history = s }
}

// WithLiveCache publishes the active set after every cycle.
func WithLiveCache(c *store.LiveCache) Option {
	return func(e *Engine) { e.liveCache = c }
}

// WithMetrics records cycle and portfolio telemetry.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// NewEngine assembles the engine around its required collaborators.
func NewEngine(source feed.Source, pipeline *scan.Pipeline, sizer *portfolio.Sizer, accountant *portfolio.Accountant, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:     source,
		pipeline:   pipeline,
		sizer:      sizer,
		accountant: accountant,
		log:        logger.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Pipeline exposes the evaluation pipeline for read views.
func (e *Engine) Pipeline() *scan.Pipeline {
	return e.pipeline
}

// Accountant exposes the books for read views.
func (e *Engine) Accountant() *portfolio.Accountant {
	return e.accountant
}

// RunCycle executes one full evaluation and accounting cycle at asOf.
// Recoverable per-instrument failures are logged and skipped; a broken
// accounting identity or a sizing contract violation aborts with an error.
func (e *Engine) RunCycle(ctx context.Context, asOf time.Time) (scan.CycleResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	raws, err := e.source.Fetch(ctx)
	if err != nil {
		return scan.CycleResult{}, fmt.Errorf("fetch features: %w", err)
	}

	result, err := e.pipeline.EvaluateCycle(ctx, raws, asOf)
	if err != nil {
		return scan.CycleResult{}, fmt.Errorf("evaluate cycle: %w", err)
	}

	// Expired signals first so their freed cash is available for new entries.
	for _, sig := range result.Update.Expired {
		e.closeExpired(ctx, sig, asOf)
	}
	for _, sig := range result.Update.Activated {
		if err := e.openActivated(ctx, sig, asOf); err != nil {
			return scan.CycleResult{}, err
		}
	}

	snap := e.accountant.MarkToMarket(lastPrices(result.Signals), asOf)
	if err := e.accountant.Reconcile(); err != nil {
		return scan.CycleResult{}, fmt.Errorf("books failed reconciliation: %w", err)
	}

	e.publish(ctx, result, snap)
	return result, nil
}

// openActivated sizes a newly active signal and opens the paper position.
// Insufficient cash or an already-open position skips the entry; a sizing
// RangeError propagates because only gated scores may reach the sizer.
func (e *Engine) openActivated(ctx context.Context, sig scan.Signal, asOf time.Time) error {
	decision, err := e.sizer.Size(sig.Instrument, sig.Score.Score, e.accountant.Equity())
	if err != nil {
		return fmt.Errorf("size %s: %w", sig.Instrument, err)
	}

	pos, err := e.accountant.OpenPosition(decision, sig.EntryPrice, asOf)
	if err != nil {
		if errors.Is(err, portfolio.ErrInsufficientFunds) || errors.Is(err, portfolio.ErrPositionExists) {
			e.log.Warn().Err(err).
				Str("instrument", sig.Instrument).
				Float64("dollars", decision.Dollars).
				Msg("skipping entry")
			return nil
		}
		return fmt.Errorf("open %s: %w", sig.Instrument, err)
	}

	e.log.Info().
		Str("instrument", sig.Instrument).
		Float64("score", sig.Score.Score).
		Float64("pct", decision.Pct).
		Float64("dollars", decision.Dollars).
		Float64("units", pos.Units).
		Float64("entry_price", pos.EntryPrice).
		Str("rationale", sig.Rationale).
		Msg("position opened")

	if e.signals != nil {
		if err := e.signals.SaveSignal(ctx, sig); err != nil {
			e.log.Error().Err(err).Str("instrument", sig.Instrument).Msg("failed to persist signal")
		}
	}
	return nil
}

// closeExpired exits the position for an expired signal at its last
// reconfirmed price. No position is fine: the entry may have been skipped.
func (e *Engine) closeExpired(ctx context.Context, sig scan.Signal, asOf time.Time) {
	trade, err := e.accountant.ClosePosition(sig.Instrument, sig.EntryPrice, asOf)
	if err != nil {
		if errors.Is(err, portfolio.ErrPositionNotFound) {
			e.log.Debug().Str("instrument", sig.Instrument).Msg("expired signal had no open position")
		} else {
			e.log.Error().Err(err).Str("instrument", sig.Instrument).Msg("failed to close position")
		}
	} else {
		e.log.Info().
			Str("instrument", sig.Instrument).
			Float64("exit_price", trade.ExitPrice).
			Float64("pnl", trade.PnL).
			Msg("position closed on signal expiry")
		if e.history != nil {
			if err := e.history.SaveTrade(ctx, trade); err != nil {
				e.log.Error().Err(err).Str("instrument", sig.Instrument).Msg("failed to persist trade")
			}
		}
	}

	if e.signals != nil {
		if err := e.signals.MarkExpired(ctx, sig); err != nil {
			e.log.Error().Err(err).Str("instrument", sig.Instrument).Msg("failed to expire persisted signal")
		}
	}
}

// publish fans the cycle result out to the optional collaborators.
// Failures degrade to logs: telemetry never breaks the engine.
func (e *Engine) publish(ctx context.Context, result scan.CycleResult, snap portfolio.EquitySnapshot) {
	if e.history != nil {
		if err := e.history.SaveSnapshot(ctx, snap); err != nil {
			e.log.Error().Err(err).Msg("failed to persist equity snapshot")
		}
	}
	if e.liveCache != nil {
		if err := e.liveCache.Publish(ctx, result.Update.Active); err != nil {
			e.log.Error().Err(err).Msg("failed to publish live signals")
		}
	}
	if e.collector != nil {
		e.collector.ObserveCycle(result)
		e.collector.SetEquity(snap.Equity)
	}
}

// lastPrices builds the mark-to-market price map from this cycle's
// evaluations. Every evaluated signal carries the instrument's last price,
// whatever its gate outcome.
func lastPrices(signals []scan.Signal) map[string]float64 {
	prices := make(map[string]float64, len(signals))
	for _, sig := range signals {
		prices[sig.Instrument] = sig.EntryPrice
	}
	return prices
}
