package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/mindloop/config"
	"github.com/mohammad-safakhou/mindloop/internal/app"
	"github.com/mohammad-safakhou/mindloop/internal/logging"
)

var cfgPath string

func main() {
	root := &cobra.Command{
		Use:           "mindloop",
		Short:         "Multi-agent thinking cycles over OpenRouter models",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config.yaml)")

	root.AddCommand(serveCMD(), runCMD(), migrateCMD(), historyCMD(), agentsCMD(), modelsCMD(), presetsCMD(), eventsCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.General.LogLevel, cfg.General.Debug)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openApp loads config and wires the orchestrator with its persisted state.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}
