package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryan-buckman/bulletin/internal/news"
	"github.com/bryan-buckman/bulletin/internal/server"
)

var noSchedule bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the ingest scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := appCfg
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("database ready", zap.String("type", store.DatabaseType()))

		ingester, err := newIngester(cfg, store, logger)
		if err != nil {
			return err
		}

		if !noSchedule {
			sched := news.NewScheduler(ingester, cfg.IngestTimeout, logger)
			if err := sched.Start(cfg.CronSchedule, cfg.IngestOnStart); err != nil {
				return err
			}
			defer sched.Stop()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(store, ingester, logger, server.Options{
			IngestOnView:  cfg.IngestOnView,
			PageSize:      cfg.PageSize,
			IngestTimeout: cfg.IngestTimeout,
			SiteURL:       cfg.SiteURL,
		})
		return srv.Run(ctx, cfg.HTTPAddr)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "disable the cron ingest schedule")
	rootCmd.AddCommand(serveCmd)
}
