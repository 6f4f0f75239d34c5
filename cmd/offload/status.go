package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/xraph/offload/client"
	"github.com/xraph/offload/job"
)

func (c *cli) statusCmd() *cobra.Command {
	var (
		server   string
		wait     bool
		interval time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show a job's status through the HTTP API",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = "http://" + listenHost(c.cfg.Server.Addr)
			}
			cl, err := client.New(server)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			var st *job.Status
			if wait {
				if timeout > 0 {
					var cancel context.CancelFunc
					ctx, cancel = context.WithTimeout(ctx, timeout)
					defer cancel()
				}
				st, err = cl.Wait(ctx, args[0], interval)
			} else {
				st, err = cl.Status(ctx, args[0])
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "base URL of the offload server (default from server.addr)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "poll until the job is ready")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "poll interval with --wait")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up waiting after this long")
	return cmd
}

// listenHost turns a listen address such as ":8000" into a dialable one.
func listenHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
