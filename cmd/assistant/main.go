// Package main is the trading assistant binary: the API server with its
// WebSocket feed and scheduler, one-shot analysis, migrations and reports.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"solana-trading-assistant/internal/config"
)

const appName = "assistant"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	useMemory  bool
	addr       string
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339

	flags := &rootFlags{}
	rootCmd := &cobra.Command{
		Use:           appName,
		Short:         "Solana retail trading assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&flags.configPath, "config", "config.yaml", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&flags.useMemory, "use-memory", false, "Use in-memory storage instead of PostgreSQL and ClickHouse")
	rootCmd.PersistentFlags().StringVar(&flags.addr, "addr", "", "HTTP listen address (overrides server.addr)")

	rootCmd.AddCommand(
		newServeCmd(flags),
		newAnalyzeCmd(flags),
		newMigrateCmd(flags),
		newReportCmd(flags),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(flags *rootFlags) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(flags.configPath, func(c *config.Config) {
		if flags.useMemory {
			c.Storage.UseMemory = true
		}
		if flags.addr != "" {
			c.Server.Addr = flags.addr
		}
	})
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger, err := newLogger(cfg.Log)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, logger, nil
}

func newLogger(lc config.LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}
	var logger zerolog.Logger
	if lc.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(level).With().Timestamp().Str("app", appName).Logger(), nil
}
