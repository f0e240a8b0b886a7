package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ashureev/ai-gateway/internal/upstream"
	"github.com/spf13/cobra"
)

func probeCMD() *cobra.Command {
	var engineURL string
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check AI engine health once and exit non-zero when unavailable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if engineURL == "" {
				engineURL = cfg.Engine.URL
			}

			client, err := upstream.NewHTTPClient(upstream.Config{
				BaseURL:       engineURL,
				Timeout:       cfg.Engine.RequestTimeout,
				HealthTimeout: cfg.Engine.HealthTimeout,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			status, err := client.Health(context.Background())
			if err != nil {
				return fmt.Errorf("ai engine at %s is unavailable: %w", engineURL, err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(status); err != nil {
				return err
			}
			if !status.Healthy() {
				return fmt.Errorf("ai engine at %s reports status %q", engineURL, status.Status)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&engineURL, "url", "", "engine base URL (overrides AI_ENGINE_URL)")
	return cmd
}
