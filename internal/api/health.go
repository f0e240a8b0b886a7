package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

const readyTimeout = 2 * time.Second

// Pinger reports backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves readiness checks.
type HealthHandler struct {
	store  Pinger
	status StatusSource
}

// NewHealthHandler creates a readiness handler.
func NewHealthHandler(store Pinger, status StatusSource) *HealthHandler {
	return &HealthHandler{store: store, status: status}
}

// RegisterHealth registers /ready. Liveness stays on chi's Heartbeat.
func (h *HealthHandler) RegisterHealth(r chi.Router) {
	r.Get("/ready", h.Ready)
}

// Ready reports 200 when the history store is reachable. The engine state is
// informational only, since every operation degrades without it.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	resp := map[string]any{"store": "ok"}
	if h.status != nil {
		resp["engine"] = toStatusResponse(h.status.State())
	}

	if err := h.store.Ping(ctx); err != nil {
		resp["store"] = "unreachable"
		JSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	JSON(w, http.StatusOK, resp)
}
