// Package server assembles the gateway's HTTP server from configuration.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/ai-gateway/internal/api"
	"github.com/ashureev/ai-gateway/internal/config"
	"github.com/ashureev/ai-gateway/internal/fallback"
	"github.com/ashureev/ai-gateway/internal/gateway"
	"github.com/ashureev/ai-gateway/internal/health"
	"github.com/ashureev/ai-gateway/internal/identity"
	"github.com/ashureev/ai-gateway/internal/metrics"
	"github.com/ashureev/ai-gateway/internal/middleware"
	"github.com/ashureev/ai-gateway/internal/statusfeed"
	"github.com/ashureev/ai-gateway/internal/store"
	"github.com/ashureev/ai-gateway/internal/upstream"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const shutdownTimeout = 10 * time.Second

// Server is a fully wired gateway.
type Server struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   store.MessageStore
	tracker *health.Tracker
	hub     *statusfeed.Hub
	metrics *metrics.Metrics
	router  chi.Router
}

// OpenStore opens the configured chat history backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.MessageStore, error) {
	switch cfg.Driver {
	case config.StoreRedis:
		st, err := store.NewRedis(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.StoreSQLite, "":
		st, err := store.NewSQLite(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// New wires the gateway around st. The caller keeps ownership of st.
// The initial engine health probe runs before New returns.
func New(ctx context.Context, cfg *config.Config, st store.MessageStore, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := upstream.NewHTTPClient(upstream.Config{
		BaseURL:       cfg.Engine.URL,
		Timeout:       cfg.Engine.RequestTimeout,
		HealthTimeout: cfg.Engine.HealthTimeout,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create ai engine client: %w", err)
	}

	m := metrics.New()
	tracker := health.NewTracker(ctx, client,
		health.WithLogger(logger),
		health.WithOnChange(func(s health.State) { m.SetEngineAvailable(s.Available) }),
	)

	gw, err := gateway.New(gateway.Deps{
		Client:    client,
		Fallbacks: fallback.Default(),
		Health:    tracker,
		Store:     st,
		Metrics:   m,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		tracker: tracker,
		hub:     statusfeed.NewHub(),
		metrics: m,
	}
	s.router = s.routes(gw)
	return s, nil
}

func (s *Server) routes(gw *gateway.Gateway) chi.Router {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(s.cfg.AllowedOrigins()))

	baseHandler := api.NewHandler(gw, s.tracker, s.logger)
	api.NewHealthHandler(s.store, s.tracker).RegisterHealth(r)
	api.NewAIHandler(baseHandler).RegisterRoutes(r)

	feed := statusfeed.NewHandler(s.tracker, s.hub, s.cfg.AllowedOrigins(), s.cfg.IsDevelopment())
	r.With(identity.Middleware).Get("/ws/ai-status", feed.ServeHTTP)

	r.Handle("/metrics", s.metrics.Handler())
	return r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Tracker returns the engine health tracker.
func (s *Server) Tracker() *health.Tracker {
	return s.tracker
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    ":" + s.cfg.Port,
		Handler: s.router,
		// Uploads and WebSocket feeds are long-lived, so no WriteTimeout.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.tracker.Run(ctx, s.cfg.Engine.HealthInterval)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down gracefully...")
	s.hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server stopped successfully")
	return nil
}
