package scan

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PipelineConfig tunes cycle execution.
type PipelineConfig struct {
	Workers      int `yaml:"workers"`       // scoring fan-out; scoring is pure per-instrument work
	ExpiryCycles int `yaml:"expiry_cycles"` // reconfirmation window for live signals
}

// DefaultPipelineConfig returns the production pipeline settings.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{Workers: 8, ExpiryCycles: 1}
}

// CycleResult summarizes one evaluation cycle.
type CycleResult struct {
	AsOf           time.Time     `json:"as_of"`
	Scanned        int           `json:"scanned"`         // raw bundles received
	Skipped        int           `json:"skipped"`         // failed validation
	RejectedFilter int           `json:"rejected_filter"` // failed a hard filter
	RejectedScore  int           `json:"rejected_score"`  // below the confidence threshold
	Signals        []Signal      `json:"signals"`         // every evaluated signal, all statuses
	Update         LedgerUpdate  `json:"update"`          // lifecycle transitions this cycle
	Elapsed        time.Duration `json:"elapsed"`
}

// Pipeline runs the full evaluation for a batch of raw feature bundles:
// normalize, score, gate, then advance the signal ledger. Per-instrument
// failures are isolated; one bad bundle never aborts the batch.
type Pipeline struct {
	normalizer *Normalizer
	scorer     *Scorer
	gate       *Gate
	ledger     *Ledger
	workers    int
	log        zerolog.Logger
}

// NewPipeline wires the evaluation stages together.
func NewPipeline(cfg PipelineConfig, scorer *Scorer, gate *Gate, logger zerolog.Logger) *Pipeline {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		normalizer: NewNormalizer(),
		scorer:     scorer,
		gate:       gate,
		ledger:     NewLedger(cfg.ExpiryCycles),
		workers:    workers,
		log:        logger.With().Str("component", "pipeline").Logger(),
	}
}

// Ledger exposes the live-signal ledger for read views.
func (p *Pipeline) Ledger() *Ledger {
	return p.ledger
}

// EvaluateCycle processes one batch. Invalid bundles are skipped, counted,
// and logged; scoring fans out across the worker pool; candidates then pass
// through the ledger, which activates new signals and expires stale ones.
func (p *Pipeline) EvaluateCycle(ctx context.Context, raws []RawFeatures, asOf time.Time) (CycleResult, error) {
	start := time.Now()
	result := CycleResult{AsOf: asOf, Scanned: len(raws)}

	records := make([]FeatureRecord, 0, len(raws))
	for _, raw := range raws {
		rec, err := p.normalizer.Normalize(raw)
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return CycleResult{}, err
			}
			result.Skipped++
			p.log.Warn().
				Str("instrument", verr.Instrument).
				Str("field", verr.Field).
				Str("reason", verr.Reason).
				Msg("skipping instrument: invalid features")
			continue
		}
		records = append(records, rec)
	}

	signals := make([]Signal, len(records))
	sem := make(chan struct{}, p.workers)
	var wg sync.WaitGroup
	for i := range records {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			rec := records[i]
			signals[i] = p.gate.Evaluate(rec, p.scorer.Score(rec))
		}(i)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return CycleResult{}, err
	}

	candidates := make([]Signal, 0, len(signals))
	for _, sig := range signals {
		switch sig.Status {
		case StatusRejectedFilter:
			result.RejectedFilter++
			p.log.Debug().
				Str("instrument", sig.Instrument).
				Float64("score", sig.Score.Score).
				Strs("failed_filters", sig.FailedFilters()).
				Msg("rejected by hard filter")
		case StatusRejectedScore:
			result.RejectedScore++
		case StatusCandidate:
			candidates = append(candidates, sig)
		}
	}
	result.Signals = signals
	result.Update = p.ledger.Advance(candidates, asOf)
	result.Elapsed = time.Since(start)

	p.log.Info().
		Int("scanned", result.Scanned).
		Int("skipped", result.Skipped).
		Int("rejected_filter", result.RejectedFilter).
		Int("rejected_score", result.RejectedScore).
		Int("activated", len(result.Update.Activated)).
		Int("expired", len(result.Update.Expired)).
		Int("active", len(result.Update.Active)).
		Dur("elapsed", result.Elapsed).
		Msg("evaluation cycle complete")

	return result, nil
}
