/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"pagelens/pkg/bus"
	"pagelens/pkg/config"
	"pagelens/pkg/logger"
	"pagelens/pkg/transport/httpbus"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pagelens",
	Short: "Summarize page content with a pluggable AI backend",
	Long:  "PageLens runs a background daemon that talks to AI generation backends, and client commands that reach it over a message bus.",
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and installs the process logger.
func setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize logger: %w", err)
	}
	slog.SetDefault(appLogger)

	return cfg, appLogger, nil
}

// newClientBus builds the UI-side bus endpoint pointed at the running
// background daemon.
func newClientBus(cfg *config.Config, log *slog.Logger) *bus.Bus {
	timeout := time.Duration(cfg.Bus.DefaultTimeoutMs) * time.Millisecond
	client := httpbus.NewClient(cfg.ServerURL(), timeout)

	return bus.New("client", client, log)
}

func requestTimeout(cfg *config.Config) time.Duration {
	if cfg.Bus.DefaultTimeoutMs <= 0 {
		return bus.DefaultRequestTimeout
	}

	return time.Duration(cfg.Bus.DefaultTimeoutMs) * time.Millisecond
}
