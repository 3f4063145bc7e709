package app

import (
	"context"
	"fmt"

	"github.com/oklog/run"
	"github.com/spf13/cobra"

	"github.com/sirosfoundation/go-as4-gateway/internal/server"
)

func NewCmdServe(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			e.logger.Info("starting gateway", "version", Version)
			return doServe(cmd.Context(), e)
		},
	}
}

func doServe(ctx context.Context, e *env) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, logger := e.config, e.logger

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := c.store.Close(context.Background()); err != nil {
			logger.Error("closing storage", "error", err)
		}
	}()

	var g run.Group
	{
		srv := server.New(cfg, c.serverDeps(), logger.With("component", "server"))
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		g.Add(func() error {
			return srv.Start(addr)
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("server shutdown", "error", err)
			}
		})
	}
	if c.consumer != nil {
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return c.consumer.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	if c.scheduler != nil {
		ctx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			return c.scheduler.Run(ctx)
		}, func(error) {
			cancel()
		})
	}
	{
		cancel := make(chan struct{})
		g.Add(func() error {
			err := interrupt(cancel, c, logger)
			logger.Warn("shutting down...")
			return err
		}, func(error) {
			close(cancel)
		})
	}

	return g.Run()
}
