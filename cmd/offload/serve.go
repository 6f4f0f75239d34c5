package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/offload/api"
)

func (c *cli) serveCmd() *cobra.Command {
	var embedded bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("worker") {
				c.cfg.Worker.Embedded = embedded
			}
			return c.serve(cmd.Context())
		},
	}
	cmd.Flags().BoolVar(&embedded, "worker", false, "also process jobs in this process")
	return cmd
}

func (c *cli) serve(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, c.cfg, c.logger)
	if err != nil {
		return err
	}
	defer func() { _ = a.close() }()

	if c.cfg.Worker.Embedded {
		if err := c.startWorker(ctx, a); err != nil {
			_ = a.eng.Stop(context.WithoutCancel(ctx))
			return err
		}
	}

	handler := api.New(a.eng, a.cache, a.products,
		api.WithLogger(c.logger),
		api.WithPageTTL(c.cfg.Cache.PageTTL),
		api.WithPageCodec(codecFor(c.cfg.Cache.Codec)),
	).Handler()
	srv := &http.Server{
		Addr:         c.cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  c.cfg.Server.ReadTimeout,
		WriteTimeout: c.cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c.logger.Info("http server listening",
			slog.String("addr", srv.Addr),
			slog.Bool("embedded_worker", c.cfg.Worker.Embedded),
		)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), c.cfg.Server.ShutdownTimeout)
		defer cancel()
		c.logger.Info("http server shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	serveErr := g.Wait()
	if err := a.eng.Stop(context.WithoutCancel(ctx)); err != nil {
		c.logger.Error("engine stop error", slog.String("error", err.Error()))
	}
	return serveErr
}

// startWorker registers the periodic jobs when beat is on and starts the
// pool.
func (c *cli) startWorker(ctx context.Context, a *app) error {
	if c.cfg.Worker.Beat {
		if err := a.registerSchedules(ctx, c.cfg.Schedule); err != nil {
			return err
		}
	}
	return a.eng.Start(ctx)
}
