package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/mindloop/internal/events"
	"github.com/mohammad-safakhou/mindloop/internal/store"
)

func eventsCMD() *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail the redis event stream of a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if cfg.Events.RedisStream == "" {
				return errors.New("events.redis_stream is not configured")
			}
			r := cfg.Storage.Redis
			rdb, err := store.Conn(ctx, r.Addr(), r.Password, r.DB, r.Timeout)
			if err != nil {
				return err
			}
			defer rdb.Close()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "tailing %s from %s\n", cfg.Events.RedisStream, from)
			err = events.Tail(ctx, rdb, cfg.Events.RedisStream, from, func(ev events.Event) error {
				printEvent(out, ev)
				return nil
			})
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&from, "from", "$", "stream id to start after ($ for new events only, 0 for all)")
	return cmd
}
