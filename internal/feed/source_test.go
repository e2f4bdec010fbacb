package feed

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atirdror123/sniperbot/internal/scan"
)

func TestFixtureSource_LoadsBundles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixtures.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instruments:
  - instrument: NVAX
    price: 10.0
    market_cap: 500000000
    dollar_volume: 10000000
    trend_strength: 0.9
    breakout_proximity: 0.9
    social_volume_z: 0.8
    sentiment: 0.6
    insider_cluster: 0.7
    as_of: 2026-08-28T14:30:00Z
`), 0o644))

	raws, err := NewFixtureSource(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 1)
	assert.Equal(t, "NVAX", raws[0].Instrument)
	require.NotNil(t, raws[0].Price)
	assert.Equal(t, 10.0, *raws[0].Price)
	require.NotNil(t, raws[0].Sentiment)
	assert.Equal(t, 0.6, *raws[0].Sentiment)
}

func TestFixtureSource_MissingFile(t *testing.T) {
	_, err := NewFixtureSource(filepath.Join(t.TempDir(), "nope.yaml")).Fetch(context.Background())
	assert.Error(t, err)
}

type stubSource struct {
	raws  []scan.RawFeatures
	err   error
	calls int
}

func (s *stubSource) Fetch(ctx context.Context) ([]scan.RawFeatures, error) {
	s.calls++
	return s.raws, s.err
}

func testBreakerSettings(maxFail uint32) gobreaker.Settings {
	return gobreaker.Settings{
		Name:    "test-feed",
		Timeout: time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFail
		},
	}
}

func TestResilientSource_PassesThrough(t *testing.T) {
	upstream := &stubSource{raws: []scan.RawFeatures{{Instrument: "NVAX"}}}
	source := NewResilientSource(upstream, testBreakerSettings(3), 100, 10, zerolog.Nop())

	raws, err := source.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, raws, 1)
	assert.Equal(t, 1, upstream.calls)
}

func TestResilientSource_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	upstream := &stubSource{err: errors.New("upstream down")}
	source := NewResilientSource(upstream, testBreakerSettings(3), 1000, 1000, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := source.Fetch(context.Background())
		require.Error(t, err)
	}

	callsBefore := upstream.calls
	_, err := source.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, callsBefore, upstream.calls, "open breaker short-circuits the upstream")
}

func TestResilientSource_RateLimitHonorsContext(t *testing.T) {
	upstream := &stubSource{}
	source := NewResilientSource(upstream, testBreakerSettings(3), 0.001, 1, zerolog.Nop())

	// First call consumes the only burst token.
	_, err := source.Fetch(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = source.Fetch(ctx)
	assert.Error(t, err)
	assert.Equal(t, 1, upstream.calls)
}
