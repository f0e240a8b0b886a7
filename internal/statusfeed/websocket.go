package statusfeed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/ashureev/ai-gateway/internal/health"
	"github.com/ashureev/ai-gateway/internal/identity"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Source provides the current engine state and its changes.
type Source interface {
	State() health.State
	Subscribe() (<-chan health.State, func())
}

// Handler serves the status feed.
type Handler struct {
	source         Source
	hub            *Hub
	allowedOrigins []string
	isDev          bool
}

// NewHandler creates a new status feed handler.
func NewHandler(source Source, hub *Hub, allowedOrigins []string, isDev bool) *Handler {
	return &Handler{
		source:         source,
		hub:            hub,
		allowedOrigins: allowedOrigins,
		isDev:          isDev,
	}
}

// Message is the frame sent to clients.
type Message struct {
	Type          string     `json:"type"`
	Available     bool       `json:"available"`
	Checked       bool       `json:"checked"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
}

func statusMessage(s health.State) Message {
	m := Message{Type: "status", Available: s.Available, Checked: s.Checked}
	if !s.LastCheckedAt.IsZero() {
		at := s.LastCheckedAt
		m.LastCheckedAt = &at
	}
	return m
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "feed ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.hub.Register(userID, sessionID, ws)
	defer h.hub.Unregister(userID, sessionID, ws)

	updates, cancelSub := h.source.Subscribe()
	defer cancelSub()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go h.readLoop(ctx, cancel, ws, userID)

	if err := writeJSON(ctx, ws, statusMessage(h.source.State())); err != nil {
		slog.Debug("Failed to send initial status", "error", err, "user_id", userID)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if err := writeJSON(ctx, ws, statusMessage(s)); err != nil {
				slog.Debug("Failed to send status update", "error", err, "user_id", userID)
				return
			}
		}
	}
}

type clientMessage struct {
	Type string `json:"type"`
}

// readLoop answers pings and cancels the feed when the client goes away.
func (h *Handler) readLoop(ctx context.Context, cancel context.CancelFunc, ws *websocket.Conn, userID string) {
	defer cancel()
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "user_id", userID)
			}
			return
		}
		var msg clientMessage
		if json.Unmarshal(data, &msg) != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				return
			}
		}
	}
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || slices.Contains(h.allowedOrigins, "*") || slices.Contains(h.allowedOrigins, origin) {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigins)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}
