package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/mindloop/internal/store"
)

func migrateCMD() *cobra.Command {
	var (
		dir       string
		direction string
		steps     int
	)
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the postgres storage schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			pg := cfg.Storage.Postgres
			if err := pg.Validate(); err != nil {
				return fmt.Errorf("postgres not configured: %w", err)
			}
			return store.Migrate(dir, pg.DSN(), direction, steps, logger)
		},
	}
	migrate.Flags().StringVar(&dir, "dir", "", "migrations source such as file://migrations (default embedded)")
	migrate.Flags().StringVar(&direction, "direction", "up", "up or down")
	migrate.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return migrate
}
