package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sniper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
gate:
  score_threshold: 80
sizer:
  bands:
    - { low: 80, high: 90, pct: 0.03 }
    - { low: 90, high: 100, pct: 0.06 }
scheduler:
  interval: 1m
portfolio:
  starting_equity: 250000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 80.0, cfg.Gate.ScoreThreshold)
	assert.Equal(t, 250000.0, cfg.Portfolio.StartingEquity)
	assert.Equal(t, time.Minute, cfg.Scheduler.Interval.Std())
	assert.Equal(t, 2.00, cfg.Gate.MinPrice, "untouched fields keep defaults")
	assert.Equal(t, 0.40, cfg.Scorer.Weights.Technical)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "file", cerr.Field)
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "gate: ["))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "yaml", cerr.Field)
}

func TestValidate_WeightSumViolation(t *testing.T) {
	_, err := Load(writeConfig(t, `
scorer:
  weights:
    technical: 0.50
    social: 0.30
    insider: 0.15
    sentiment: 0.15
`))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "scorer.weights", cerr.Field)
}

func TestValidate_BandTableMustStartAtThreshold(t *testing.T) {
	cfg := Default()
	cfg.Gate.ScoreThreshold = 80

	err := cfg.Validate()
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "sizer.bands", cerr.Field)
}

func TestValidate_SectionChecks(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"negative equity", func(c *Config) { c.Portfolio.StartingEquity = -1 }, "portfolio.starting_equity"},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline.workers"},
		{"zero expiry", func(c *Config) { c.Pipeline.ExpiryCycles = 0 }, "pipeline.expiry_cycles"},
		{"zero interval", func(c *Config) { c.Scheduler.Interval = 0 }, "scheduler.interval"},
		{"empty listen addr", func(c *Config) { c.HTTP.ListenAddr = "" }, "http.listen_addr"},
		{"postgres without dsn", func(c *Config) { c.Postgres.Enabled = true }, "postgres.dsn"},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true; c.Redis.Addr = "" }, "redis.addr"},
		{"zero feed rate", func(c *Config) { c.Feed.RatePerSecond = 0 }, "feed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}
