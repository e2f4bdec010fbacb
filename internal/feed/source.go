// Package feed defines the upstream feature-source boundary. Data
// aggregation itself lives outside this engine; sources here either load
// recorded fixtures for offline runs or wrap an external collaborator with
// resilience controls.
package feed

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/atirdror123/sniperbot/internal/scan"
)

// Source produces one batch of raw feature bundles per evaluation cycle.
type Source interface {
	Fetch(ctx context.Context) ([]scan.RawFeatures, error)
}

// FixtureSource replays a recorded universe from a YAML file. Used by the
// one-shot scan command and in tests; the file is re-read on every fetch so
// a long-running process picks up edits.
type FixtureSource struct {
	path string
}

// NewFixtureSource creates a source backed by the YAML file at path.
func NewFixtureSource(path string) *FixtureSource {
	return &FixtureSource{path: path}
}

type fixtureFile struct {
	Instruments []scan.RawFeatures `yaml:"instruments"`
}

// Fetch loads and decodes the fixture file.
func (s *FixtureSource) Fetch(ctx context.Context) ([]scan.RawFeatures, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", s.path, err)
	}
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", s.path, err)
	}
	return f.Instruments, nil
}

// ResilientSource wraps an upstream Source with a token-bucket rate limit
// and a circuit breaker, so a misbehaving collaborator slows the engine
// down instead of taking it down.
type ResilientSource struct {
	upstream Source
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	log      zerolog.Logger
}

// NewResilientSource wraps upstream with the given protections.
func NewResilientSource(upstream Source, settings gobreaker.Settings, ratePerSecond float64, burst int, logger zerolog.Logger) *ResilientSource {
	rs := &ResilientSource{
		upstream: upstream,
		limiter:  rate.NewLimiter(rate.Limit(ratePerSecond), burst),
		log:      logger.With().Str("component", "feed").Logger(),
	}
	if settings.OnStateChange == nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			rs.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("feed breaker state change")
		}
	}
	rs.breaker = gobreaker.NewCircuitBreaker(settings)
	return rs
}

// Fetch waits for a rate token, then calls the upstream through the breaker.
func (s *ResilientSource) Fetch(ctx context.Context) ([]scan.RawFeatures, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("feed rate limit: %w", err)
	}
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.upstream.Fetch(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("feed fetch: %w", err)
	}
	return result.([]scan.RawFeatures), nil
}
