package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/xraph/offload/job"
	"github.com/xraph/offload/tasks"
)

func (c *cli) submitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Enqueue a job without waiting for it",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "dataset [size]",
			Short: "Enqueue process_large_dataset",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				size, err := intArg(args, 0, 100)
				if err != nil {
					return err
				}
				return c.submit(cmd, func(ctx context.Context, a *app) (*job.Job, error) {
					return tasks.SubmitDataset(ctx, a.eng, size)
				})
			},
		},
		&cobra.Command{
			Use:   "report [type] [user-id]",
			Short: "Enqueue generate_report",
			Args:  cobra.MaximumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				reportType := "sales"
				if len(args) > 0 {
					reportType = args[0]
				}
				userID, err := intArg(args, 1, 1)
				if err != nil {
					return err
				}
				return c.submit(cmd, func(ctx context.Context, a *app) (*job.Job, error) {
					return tasks.SubmitReport(ctx, a.eng, reportType, userID)
				})
			},
		},
		&cobra.Command{
			Use:   "add <x> <y>",
			Short: "Enqueue add_numbers",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				x, err := intArg(args, 0, 0)
				if err != nil {
					return err
				}
				y, err := intArg(args, 1, 0)
				if err != nil {
					return err
				}
				return c.submit(cmd, func(ctx context.Context, a *app) (*job.Job, error) {
					return tasks.SubmitAdd(ctx, a.eng, x, y)
				})
			},
		},
	)
	return cmd
}

func intArg(args []string, i, def int) (int, error) {
	if i >= len(args) {
		return def, nil
	}
	n, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, args[i])
	}
	return n, nil
}

// submit enqueues through a producer-only engine and prints the job.
func (c *cli) submit(cmd *cobra.Command, enqueue func(context.Context, *app) (*job.Job, error)) error {
	ctx := cmd.Context()
	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = a.eng.Stop(context.WithoutCancel(ctx))
		_ = a.close()
	}()

	j, err := enqueue(ctx, a)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]string{
		"task_id":          j.ID.String(),
		"name":             j.Name,
		"queue":            j.Queue,
		"status":           string(j.State),
		"check_status_url": "/task-status/" + j.ID.String() + "/",
	})
}
