package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func (c *cli) workerCmd() *cobra.Command {
	var noBeat bool
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Process jobs and fire scheduled jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if noBeat {
				c.cfg.Worker.Beat = false
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer func() { _ = a.close() }()

			if err := c.startWorker(ctx, a); err != nil {
				_ = a.eng.Stop(context.WithoutCancel(ctx))
				return err
			}
			c.logger.Info("worker running",
				slog.Any("queues", c.cfg.Worker.Queues),
				slog.Int("concurrency", c.cfg.Worker.Concurrency),
				slog.Bool("beat", c.cfg.Worker.Beat),
			)

			<-ctx.Done()
			c.logger.Info("worker shutting down")
			return a.eng.Stop(context.WithoutCancel(ctx))
		},
	}
	cmd.Flags().BoolVar(&noBeat, "no-beat", false, "do not run the cron scheduler")
	return cmd
}
