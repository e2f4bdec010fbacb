package scan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGate(t *testing.T) *Gate {
	t.Helper()
	gate, err := NewGate(DefaultGateConfig())
	require.NoError(t, err)
	return gate
}

func scoreOf(v float64) ConfidenceScore {
	return ConfidenceScore{
		Instrument:  "NVAX",
		Score:       v,
		GeneratedAt: time.Date(2026, 8, 28, 14, 30, 0, 0, time.UTC),
	}
}

func TestGate_PassingRecordBecomesCandidate(t *testing.T) {
	sig := mustGate(t).Evaluate(strongRecord(), scoreOf(90.9))

	assert.Equal(t, StatusCandidate, sig.Status)
	assert.NotEmpty(t, sig.ID)
	assert.Equal(t, 10.0, sig.EntryPrice)
	assert.Empty(t, sig.FailedFilters())
}

func TestGate_HardFilterRejectsRegardlessOfScore(t *testing.T) {
	rec := strongRecord()
	rec.Price = 1.50

	sig := mustGate(t).Evaluate(rec, scoreOf(99.0))

	assert.Equal(t, StatusRejectedFilter, sig.Status)
	assert.Equal(t, []string{"price"}, sig.FailedFilters())
	assert.Equal(t, 99.0, sig.Score.Score, "score is still computed and retained")
}

func TestGate_FilterBoundariesAreStrict(t *testing.T) {
	gate := mustGate(t)

	tests := []struct {
		name   string
		mutate func(*FeatureRecord)
		failed string
	}{
		{"price at threshold", func(r *FeatureRecord) { r.Price = 2.00 }, "price"},
		{"market cap at threshold", func(r *FeatureRecord) { r.MarketCap = 1e8 }, "market_cap"},
		{"dollar volume at threshold", func(r *FeatureRecord) { r.DollarVolume = 5e6 }, "dollar_volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := strongRecord()
			tt.mutate(&rec)

			sig := gate.Evaluate(rec, scoreOf(95.0))
			assert.Equal(t, StatusRejectedFilter, sig.Status)
			assert.Contains(t, sig.FailedFilters(), tt.failed)
		})
	}
}

func TestGate_ScoreThresholdIsStrict(t *testing.T) {
	gate := mustGate(t)

	exactly := gate.Evaluate(strongRecord(), scoreOf(85.0))
	assert.Equal(t, StatusRejectedScore, exactly.Status, "85.00 exactly must be rejected")

	justAbove := gate.Evaluate(strongRecord(), scoreOf(85.000001))
	assert.Equal(t, StatusCandidate, justAbove.Status)

	below := gate.Evaluate(strongRecord(), scoreOf(84.9))
	assert.Equal(t, StatusRejectedScore, below.Status)
}

func TestGate_RecordsEveryFilterCheck(t *testing.T) {
	sig := mustGate(t).Evaluate(strongRecord(), scoreOf(90.0))

	require.Len(t, sig.Filters, 3)
	names := []string{sig.Filters[0].Name, sig.Filters[1].Name, sig.Filters[2].Name}
	assert.Equal(t, []string{"price", "market_cap", "dollar_volume"}, names)
	for _, f := range sig.Filters {
		assert.True(t, f.Passed)
	}
}

func TestGateConfig_Validation(t *testing.T) {
	cfg := DefaultGateConfig()
	cfg.ScoreThreshold = 120
	_, err := NewGate(cfg)
	assert.Error(t, err)

	cfg = DefaultGateConfig()
	cfg.MinPrice = -1
	_, err = NewGate(cfg)
	assert.Error(t, err)
}
