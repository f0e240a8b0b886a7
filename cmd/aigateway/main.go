// AI Gateway - resilient front door to the AI engine.
package main

import (
	"log/slog"
	"os"

	"github.com/ashureev/ai-gateway/internal/config"
	"github.com/ashureev/ai-gateway/internal/logging"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "aigateway",
		Short:         "AI gateway with deterministic fallbacks",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCMD(), mockEngineCMD(), probeCMD())

	if err := root.Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads .env, parses configuration and installs the logger.
func loadConfig() (*config.Config, *slog.Logger, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.Setup(cfg.Log, os.Stdout)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
