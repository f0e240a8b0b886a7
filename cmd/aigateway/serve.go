package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ashureev/ai-gateway/internal/server"
	"github.com/spf13/cobra"
)

func serveCMD() *cobra.Command {
	var port string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}

			logger.Info("Starting server",
				"port", cfg.Port,
				"dev", cfg.IsDevelopment(),
				"engine_url", cfg.Engine.URL,
				"store", cfg.Store.Driver,
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			st, err := server.OpenStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer func() {
				if closeErr := st.Close(); closeErr != nil {
					logger.Error("Failed to close store", "error", closeErr)
				}
			}()

			if err := st.Ping(ctx); err != nil {
				return err
			}
			logger.Info("Store connected", "driver", cfg.Store.Driver)

			srv, err := server.New(ctx, cfg, st, logger)
			if err != nil {
				return err
			}
			if !srv.Tracker().IsAvailable() {
				logger.Warn("AI engine unreachable at startup, serving fallbacks until it recovers")
			}

			return srv.Run(ctx)
		},
	}
	serve.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return serve
}
