package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/xraph/offload/config"
)

type cli struct {
	configPath string
	cfg        *config.Config
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:          "offload",
		Short:        "Background jobs, scheduled jobs and response caching over Redis",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.cfg = cfg
			c.logger, err = newLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel, cfg.Server.LogFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(c.logger)
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a config file (default ./offload.yaml if present)")

	root.AddCommand(
		c.serveCmd(),
		c.workerCmd(),
		c.seedCmd(),
		c.submitCmd(),
		c.statusCmd(),
	)
	return root
}
