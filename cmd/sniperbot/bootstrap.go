package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/atirdror123/sniperbot/internal/app"
	"github.com/atirdror123/sniperbot/internal/config"
	"github.com/atirdror123/sniperbot/internal/feed"
	"github.com/atirdror123/sniperbot/internal/metrics"
	"github.com/atirdror123/sniperbot/internal/persistence/postgres"
	"github.com/atirdror123/sniperbot/internal/portfolio"
	"github.com/atirdror123/sniperbot/internal/scan"
	"github.com/atirdror123/sniperbot/internal/store"
)

// buildEngine assembles the engine and its optional collaborators from
// configuration. The returned cleanup closes whatever was opened.
func buildEngine(ctx context.Context, cfg config.Config, collector *metrics.Collector, logger zerolog.Logger) (*app.Engine, func(), error) {
	scorer, err := scan.NewScorer(cfg.Scorer)
	if err != nil {
		return nil, nil, err
	}
	gate, err := scan.NewGate(cfg.Gate)
	if err != nil {
		return nil, nil, err
	}
	sizer, err := portfolio.NewSizer(cfg.Sizer)
	if err != nil {
		return nil, nil, err
	}
	accountant, err := portfolio.NewAccountant(cfg.Portfolio.StartingEquity)
	if err != nil {
		return nil, nil, err
	}
	pipeline := scan.NewPipeline(cfg.Pipeline, scorer, gate, logger)

	var source feed.Source = feed.NewFixtureSource(cfg.Feed.FixturePath)
	source = feed.NewResilientSource(source, gobreaker.Settings{
		Name:        "feature-feed",
		MaxRequests: 1,
		Timeout:     cfg.Feed.BreakerTimeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Feed.BreakerMaxFail
		},
	}, cfg.Feed.RatePerSecond, cfg.Feed.Burst, logger)

	opts := []app.Option{app.WithMetrics(collector)}
	var cleanups []func()

	if cfg.Postgres.Enabled {
		db, err := postgres.Connect(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { db.Close() })
		opts = append(opts,
			app.WithSignalStore(postgres.NewSignalsRepo(db, cfg.Postgres.QueryTimeout.Std())),
			app.WithPortfolioStore(postgres.NewPortfolioRepo(db, cfg.Postgres.QueryTimeout.Std())),
		)
	}

	if cfg.Redis.Enabled {
		cache, err := store.NewLiveCache(ctx, cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.TTL.Std(), logger)
		if err != nil {
			runCleanups(cleanups)
			return nil, nil, err
		}
		cleanups = append(cleanups, func() { cache.Close() })
		opts = append(opts, app.WithLiveCache(cache))
	}

	engine := app.NewEngine(source, pipeline, sizer, accountant, logger, opts...)
	return engine, func() { runCleanups(cleanups) }, nil
}

func runCleanups(cleanups []func()) {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
}

// shutdownTimeout bounds graceful HTTP drain in serve mode.
const shutdownTimeout = 10 * time.Second
