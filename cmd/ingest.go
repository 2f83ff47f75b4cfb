package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingest and print the batch report",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ingester, err := newIngester(cfg, store, logger)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithTimeout(ctx, cfg.IngestTimeout)
		defer cancel()

		report := ingester.Ingest(ctx)
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
		if !report.OK() {
			return fmt.Errorf("ingest failed: %w", report.Err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
