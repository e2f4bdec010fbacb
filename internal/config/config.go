package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/atirdror123/sniperbot/internal/portfolio"
	"github.com/atirdror123/sniperbot/internal/scan"
)

// ConfigError marks invalid or unloadable configuration. Always fatal:
// the process must not start with a broken config.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// PortfolioConfig holds the paper-trading bankroll settings.
type PortfolioConfig struct {
	StartingEquity float64 `yaml:"starting_equity"`
}

// SchedulerConfig drives the serve-mode cycle cadence.
type SchedulerConfig struct {
	Interval Duration `yaml:"interval"`
}

// HTTPConfig holds the API server settings.
type HTTPConfig struct {
	ListenAddr   string   `yaml:"listen_addr"`
	ReadTimeout  Duration `yaml:"read_timeout"`
	WriteTimeout Duration `yaml:"write_timeout"`
}

// PostgresConfig holds the signal/equity persistence settings. Disabled by
// default so offline runs need no database.
type PostgresConfig struct {
	Enabled      bool     `yaml:"enabled"`
	DSN          string   `yaml:"dsn"`
	QueryTimeout Duration `yaml:"query_timeout"`
}

// RedisConfig holds the live-signal cache settings. Disabled by default.
type RedisConfig struct {
	Enabled bool     `yaml:"enabled"`
	Addr    string   `yaml:"addr"`
	DB      int      `yaml:"db"`
	TTL     Duration `yaml:"ttl"`
}

// FeedConfig wraps the upstream feature source: a YAML fixture file for
// offline runs, plus rate-limit and circuit-breaker settings applied to
// whichever source is wired in.
type FeedConfig struct {
	FixturePath    string   `yaml:"fixture_path"`
	RatePerSecond  float64  `yaml:"rate_per_second"`
	Burst          int      `yaml:"burst"`
	BreakerMaxFail uint32   `yaml:"breaker_max_failures"`
	BreakerTimeout Duration `yaml:"breaker_timeout"`
}

// LogConfig controls zerolog output.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Config is the full engine configuration, loaded once at startup.
type Config struct {
	Scorer    scan.ScorerConfig     `yaml:"scorer"`
	Gate      scan.GateConfig       `yaml:"gate"`
	Pipeline  scan.PipelineConfig   `yaml:"pipeline"`
	Sizer     portfolio.SizerConfig `yaml:"sizer"`
	Portfolio PortfolioConfig       `yaml:"portfolio"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
	HTTP      HTTPConfig            `yaml:"http"`
	Postgres  PostgresConfig        `yaml:"postgres"`
	Redis     RedisConfig           `yaml:"redis"`
	Feed      FeedConfig            `yaml:"feed"`
	Log       LogConfig             `yaml:"log"`
}

// Default returns the full production default configuration.
func Default() Config {
	return Config{
		Scorer:    scan.DefaultScorerConfig(),
		Gate:      scan.DefaultGateConfig(),
		Pipeline:  scan.DefaultPipelineConfig(),
		Sizer:     portfolio.DefaultSizerConfig(),
		Portfolio: PortfolioConfig{StartingEquity: portfolio.DefaultStartingEquity},
		Scheduler: SchedulerConfig{Interval: Duration(5 * time.Minute)},
		HTTP: HTTPConfig{
			ListenAddr:   ":8080",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(30 * time.Second),
		},
		Postgres: PostgresConfig{QueryTimeout: Duration(5 * time.Second)},
		Redis:    RedisConfig{Addr: "localhost:6379", TTL: Duration(5 * time.Minute)},
		Feed: FeedConfig{
			FixturePath:    "config/fixtures.yaml",
			RatePerSecond:  4,
			Burst:          8,
			BreakerMaxFail: 5,
			BreakerTimeout: Duration(30 * time.Second),
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. Any failure is a *ConfigError.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, &ConfigError{Field: "file", Err: err}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, &ConfigError{Field: "yaml", Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section; the first violation is returned as a
// *ConfigError.
func (c Config) Validate() error {
	if err := c.Scorer.Weights.Validate(); err != nil {
		return &ConfigError{Field: "scorer.weights", Err: err}
	}
	if c.Scorer.SocialSaturationZ <= 0 {
		return &ConfigError{Field: "scorer.social_saturation_z", Err: fmt.Errorf("must be positive")}
	}
	if c.Scorer.InsiderCap <= 0 {
		return &ConfigError{Field: "scorer.insider_cap", Err: fmt.Errorf("must be positive")}
	}
	if err := c.Gate.Validate(); err != nil {
		return &ConfigError{Field: "gate", Err: err}
	}
	if err := c.Sizer.Validate(); err != nil {
		return &ConfigError{Field: "sizer.bands", Err: err}
	}
	if c.Sizer.Bands[0].Low != c.Gate.ScoreThreshold {
		return &ConfigError{
			Field: "sizer.bands",
			Err:   fmt.Errorf("first band low %.2f must equal gate threshold %.2f", c.Sizer.Bands[0].Low, c.Gate.ScoreThreshold),
		}
	}
	if c.Portfolio.StartingEquity <= 0 {
		return &ConfigError{Field: "portfolio.starting_equity", Err: fmt.Errorf("must be positive")}
	}
	if c.Pipeline.Workers < 1 {
		return &ConfigError{Field: "pipeline.workers", Err: fmt.Errorf("must be at least 1")}
	}
	if c.Pipeline.ExpiryCycles < 1 {
		return &ConfigError{Field: "pipeline.expiry_cycles", Err: fmt.Errorf("must be at least 1")}
	}
	if c.Scheduler.Interval <= 0 {
		return &ConfigError{Field: "scheduler.interval", Err: fmt.Errorf("must be positive")}
	}
	if c.HTTP.ListenAddr == "" {
		return &ConfigError{Field: "http.listen_addr", Err: fmt.Errorf("missing")}
	}
	if c.Postgres.Enabled && c.Postgres.DSN == "" {
		return &ConfigError{Field: "postgres.dsn", Err: fmt.Errorf("required when postgres is enabled")}
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return &ConfigError{Field: "redis.addr", Err: fmt.Errorf("required when redis is enabled")}
	}
	if c.Feed.RatePerSecond <= 0 || c.Feed.Burst < 1 {
		return &ConfigError{Field: "feed", Err: fmt.Errorf("rate_per_second must be positive and burst at least 1")}
	}
	return nil
}
