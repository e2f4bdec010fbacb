package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/atirdror123/sniperbot/internal/config"
)

const (
	appName = "sniperbot"
	version = "v1.2.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Signal aggregation, confidence scoring, and paper-trading engine",
		Version: version,
		Long: `sniperbot fuses technical, social, insider, and sentiment features into a
0-100 confidence score per instrument, gates the results through hard
tradability filters, and trades the surviving signals in a simulated
portfolio.`,
	}
	rootCmd.PersistentFlags().String("config", "config/sniper.yaml", "Path to configuration file")

	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads --config and sets up the global logger from it.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Log.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	return cfg, nil
}
