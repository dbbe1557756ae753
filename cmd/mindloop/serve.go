package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	srv "github.com/mohammad-safakhou/mindloop/internal/server"
	"github.com/mohammad-safakhou/mindloop/internal/seed"
)

func serveCMD() *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the scheduler and the metrics endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			logger := a.Logger
			defer func() { _ = logger.Sync() }()

			if addr == "" {
				addr = a.Config.Server.Address
			}
			fetcher := seed.NewFetcher(15 * time.Second)
			s, err := srv.New(a.Config.Server, srv.Deps{
				Orch:    a.Orch,
				Bus:     a.Bus,
				Logger:  logger.Named("http"),
				Metrics: a.Metrics.Handler(),
				Seed: func(ctx context.Context, link string) (string, error) {
					page, err := fetcher.Fetch(ctx, link)
					if err != nil {
						return "", err
					}
					return page.Topic(), nil
				},
			})
			if err != nil {
				return err
			}
			sched := &srv.Scheduler{Orch: a.Orch, Schedules: a.Config.Schedules, Logger: logger.Named("scheduler")}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return s.Start(addr) })
			g.Go(func() error {
				sched.Run(gctx)
				return nil
			})
			if a.Config.Telemetry.Enabled {
				g.Go(func() error { return a.Metrics.Serve(gctx, a.Config.Telemetry.MetricsPort, logger) })
			}
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				logger.Info("shutting down")
				return s.Shutdown(shutdownCtx)
			})
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("serve", zap.Error(err))
				return err
			}
			return nil
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
