package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"solana-trading-assistant/internal/reporting"
	"solana-trading-assistant/internal/solana"
)

func newAnalyzeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze TOKEN...",
		Short: "Generate trading signals for token addresses and print them as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, token := range args {
				if err := solana.ValidateAddress(token); err != nil {
					return fmt.Errorf("token %q: %w", token, err)
				}
			}

			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			st, cleanup, err := createStores(ctx, cfg.Storage, false)
			if err != nil {
				return err
			}
			defer cleanup()

			an, err := newAnalysis(ctx, cfg, st.signals, nil, logger)
			if err != nil {
				return err
			}
			defer an.close()

			signals, err := an.assembler.Generate(ctx, args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(signals)
		},
	}
}

func newMigrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL and ClickHouse schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.Storage.UseMemory {
				return fmt.Errorf("migrate requires database storage")
			}
			_, cleanup, err := createStores(cmd.Context(), cfg.Storage, true)
			if err != nil {
				return err
			}
			cleanup()
			logger.Info().Msg("migrations applied")
			return nil
		},
	}
}

func newReportCmd(flags *rootFlags) *cobra.Command {
	var (
		since  time.Duration
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write the trade journal report as Markdown and CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			if cfg.Storage.UseMemory {
				logger.Warn().Msg("in-memory storage holds no journal, the report will be empty")
			}
			ctx := cmd.Context()

			st, cleanup, err := createStores(ctx, cfg.Storage, false)
			if err != nil {
				return err
			}
			defer cleanup()

			var from time.Time
			if since > 0 {
				from = time.Now().UTC().Add(-since)
			}
			report, err := reporting.NewGenerator(st.trades, nil).Generate(ctx, from)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}
			mdPath := filepath.Join(outDir, "TRADE_REPORT.md")
			if err := os.WriteFile(mdPath, []byte(reporting.RenderMarkdown(report)), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", mdPath, err)
			}
			csvPath := filepath.Join(outDir, "trades.csv")
			if err := os.WriteFile(csvPath, []byte(reporting.RenderCSV(report.Trades)), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", csvPath, err)
			}

			logger.Info().
				Int("records", report.Summary.TotalRecords).
				Str("markdown", mdPath).
				Str("csv", csvPath).
				Msg("report written")
			return nil
		},
	}
	cmd.Flags().DurationVar(&since, "since", 0, "Only include records newer than this (e.g. 168h); zero covers the whole journal")
	cmd.Flags().StringVar(&outDir, "out", "reports", "Output directory")
	return cmd
}
