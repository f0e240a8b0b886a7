package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/ai-gateway/internal/mockengine"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

func mockEngineCMD() *cobra.Command {
	var (
		port  string
		fail  bool
		delay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mock-engine",
		Short: "Run a canned AI engine for local development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if port == "" {
				port = cfg.MockEnginePort
			}

			engine := mockengine.NewServer(logger)
			engine.SetFail(fail)
			engine.SetDelay(delay)

			r := chi.NewRouter()
			r.Use(chiMiddleware.RequestID)
			r.Use(chiMiddleware.Logger)
			r.Use(chiMiddleware.Recoverer)
			r.Mount("/", engine.Handler())

			srv := &http.Server{
				Addr:              ":" + port,
				Handler:           r,
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Mock engine listening", "addr", srv.Addr, "fail", fail, "delay", delay)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides MOCK_ENGINE_PORT)")
	cmd.Flags().BoolVar(&fail, "fail", false, "answer every request with a failure")
	cmd.Flags().DurationVar(&delay, "delay", 0, "delay added before every response")
	return cmd
}
