/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"pagelens/pkg/background"
	"pagelens/pkg/bus"
	"pagelens/pkg/config"
	"pagelens/pkg/prompts"
	"pagelens/pkg/provider"
	"pagelens/pkg/provider/gemini"
	provideropenai "pagelens/pkg/provider/openai"
	"pagelens/pkg/settings"
	"pagelens/pkg/store"
	"pagelens/pkg/transport/httpbus"

	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the background daemon",
	Long:  "Runs the privileged background context: provider registry, credential store, and the bus endpoint clients connect to.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, appLogger, err := setup()
		if err != nil {
			fmt.Printf("failed to start: %v\n", err)
			return
		}
		log := appLogger.With("component", "cmd.serve")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		kv, err := store.NewSQLiteStore(runCtx, cfg.Store.Path)
		if err != nil {
			log.Error("Failed to open settings store", "path", cfg.Store.Path, "error", err)
			return
		}
		defer kv.Close()

		registry, err := buildRegistry(cfg, kv, appLogger)
		if err != nil {
			log.Error("Failed to build provider registry", "error", err)
			return
		}

		library, err := prompts.NewLibrary(kv)
		if err != nil {
			log.Error("Failed to load prompt templates", "error", err)
			return
		}

		svc, err := background.NewService(
			registry,
			settings.NewCredentials(kv, appLogger),
			settings.NewSettings(kv),
			library,
			appLogger,
		)
		if err != nil {
			log.Error("Failed to initialize background service", "error", err)
			return
		}

		endpoint := bus.New("background", nil, appLogger)
		defer endpoint.Close()
		svc.Attach(endpoint)

		address := cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port)
		server := httpbus.NewServer(endpoint, address, appLogger)

		log.Info("Background daemon started",
			"address", address,
			"models", registry.Names(),
			"default_model", registry.Default(),
			"store", cfg.Store.Path,
		)

		if err := server.Run(runCtx); err != nil {
			log.Error("Bus server stopped", "error", err)
		}
	},
}

// buildRegistry registers every configured backend; registration is static
// for the life of the process.
func buildRegistry(cfg *config.Config, kv store.Store, log *slog.Logger) (*provider.Registry, error) {
	creds := settings.NewCredentials(kv, log)
	bounds := settings.NewSettings(kv)

	geminiOpts := gemini.Options{
		BaseURL:        cfg.Providers.Gemini.BaseURL,
		RequestTimeout: time.Duration(cfg.Providers.Gemini.RequestTimeoutSeconds) * time.Second,
	}

	registry := provider.NewRegistry(log)
	if err := registry.Register(gemini.NewFlash(creds, bounds, geminiOpts)); err != nil {
		return nil, err
	}
	if err := registry.Register(gemini.NewPro(creds, bounds, geminiOpts)); err != nil {
		return nil, err
	}

	if cfg.Providers.OpenAI.Enabled {
		openaiClient := provideropenai.New(
			provider.NewModelIdentifier(cfg.Providers.OpenAI.Model, "v1"),
			settings.EnvCredential(cfg.Providers.OpenAI.APIKeyEnv),
			bounds,
			provideropenai.Options{
				BaseURL:        cfg.Providers.OpenAI.BaseURL,
				RequestTimeout: time.Duration(cfg.Providers.OpenAI.RequestTimeoutSeconds) * time.Second,
			},
		)
		if err := registry.Register(openaiClient); err != nil {
			return nil, err
		}
	}

	return registry, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
