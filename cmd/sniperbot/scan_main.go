package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atirdror123/sniperbot/internal/metrics"
)

func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Run one evaluation cycle and print the results",
		Long:  "Fetches the configured feature source once, runs the full normalize/score/gate cycle, trades the transitions on paper, and prints a summary.",
		RunE:  runScan,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	engine, cleanup, err := buildEngine(ctx, cfg, metrics.NewCollector(), log.Logger)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := engine.RunCycle(ctx, time.Now().UTC())
	if err != nil {
		return err
	}

	fmt.Printf("scanned %d, skipped %d, rejected %d (filters) + %d (score)\n",
		result.Scanned, result.Skipped, result.RejectedFilter, result.RejectedScore)
	for _, sig := range result.Update.Active {
		fmt.Printf("  %-8s %6.2f  %s\n", sig.Instrument, sig.Score.Score, sig.Rationale)
	}

	state := engine.Accountant().Snapshot()
	fmt.Printf("equity %.2f (cash %.2f, realized %.2f, unrealized %.2f), positions %d\n",
		state.Equity, state.Cash, state.Realized, state.Unrealized, len(state.Positions))
	return nil
}
