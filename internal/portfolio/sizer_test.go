package portfolio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustSizer(t *testing.T) *Sizer {
	t.Helper()
	sizer, err := NewSizer(DefaultSizerConfig())
	require.NoError(t, err)
	return sizer
}

func TestSizer_BandBoundaries(t *testing.T) {
	sizer := mustSizer(t)

	tests := []struct {
		name    string
		score   float64
		wantPct float64
	}{
		{"just above threshold", 85.000001, 0.02},
		{"mid low band", 87, 0.02},
		{"upper edge of low band", 89.999999, 0.02},
		{"exactly 90", 90, 0.05},
		{"mid band", 92, 0.05},
		{"exactly 95", 95, 0.08},
		{"perfect score", 100, 0.08},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := sizer.Size("NVAX", tt.score, 100000)
			require.NoError(t, err)
			assert.Equal(t, tt.wantPct, decision.Pct)
			assert.InDelta(t, 100000*tt.wantPct, decision.Dollars, 1e-9)
		})
	}
}

func TestSizer_RejectsUngatedScores(t *testing.T) {
	sizer := mustSizer(t)

	for _, score := range []float64{85.0, 84.9, 0, -3, 100.5} {
		_, err := sizer.Size("NVAX", score, 100000)
		var rerr *RangeError
		require.ErrorAs(t, err, &rerr, "score %.2f must be a contract violation", score)
	}
}

func TestSizer_DollarsTrackEquityAtDecisionTime(t *testing.T) {
	sizer := mustSizer(t)

	decision, err := sizer.Size("NVAX", 92, 100000)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, decision.Dollars)

	decision, err = sizer.Size("NVAX", 92, 50000)
	require.NoError(t, err)
	assert.Equal(t, 2500.0, decision.Dollars)
}

func TestSizer_RejectsNonPositiveEquity(t *testing.T) {
	sizer := mustSizer(t)

	_, err := sizer.Size("NVAX", 92, 0)
	var rerr *RangeError
	assert.ErrorAs(t, err, &rerr)
}

func TestSizerConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  SizerConfig
		wantErr bool
	}{
		{"default", DefaultSizerConfig(), false},
		{"empty", SizerConfig{}, true},
		{"inverted band", SizerConfig{Bands: []Band{{Low: 90, High: 85, Pct: 0.02}}}, true},
		{"gap between bands", SizerConfig{Bands: []Band{
			{Low: 85, High: 90, Pct: 0.02},
			{Low: 91, High: 95, Pct: 0.05},
		}}, true},
		{"pct over one", SizerConfig{Bands: []Band{{Low: 85, High: 100, Pct: 1.5}}}, true},
		{"zero pct", SizerConfig{Bands: []Band{{Low: 85, High: 100, Pct: 0}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
