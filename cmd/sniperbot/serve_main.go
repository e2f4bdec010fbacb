package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	httpapi "github.com/atirdror123/sniperbot/internal/interfaces/http"
	"github.com/atirdror123/sniperbot/internal/metrics"
	"github.com/atirdror123/sniperbot/internal/scheduler"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the engine as a daemon with the HTTP API and scheduler",
		Long:  "Starts the interval scheduler and the HTTP API (health, live signals, portfolio, metrics, on-demand scan). Runs until interrupted.",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	collector := metrics.NewCollector()
	engine, cleanup, err := buildEngine(ctx, cfg, collector, log.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := httpapi.NewServer(httpapi.ServerConfig{
		ListenAddr:   cfg.HTTP.ListenAddr,
		ReadTimeout:  cfg.HTTP.ReadTimeout.Std(),
		WriteTimeout: cfg.HTTP.WriteTimeout.Std(),
	}, engine, collector, log.Logger)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sched := scheduler.New(engine, cfg.Scheduler.Interval.Std(), log.Logger)
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = sched.Run(ctx)
	}()

	select {
	case err := <-serverErr:
		stop()
		<-schedDone
		return err
	case <-ctx.Done():
	}

	<-schedDone
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
