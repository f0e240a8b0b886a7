// Package api provides the caller-facing HTTP handlers for the AI gateway.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/ashureev/ai-gateway/internal/gateway"
	"github.com/ashureev/ai-gateway/internal/health"
	"github.com/ashureev/ai-gateway/internal/store"
)

// maxJSONBody bounds JSON request bodies. Audio uploads are not bounded.
const maxJSONBody = 1 << 20

// unavailableMessage is returned for operations that have no fallback.
const unavailableMessage = "AI service is temporarily unavailable"

// AIService is the gateway surface the handlers depend on.
type AIService interface {
	Chat(ctx context.Context, req gateway.ChatRequest) (domain.Result[domain.ChatReply], error)
	History(ctx context.Context, userID string, filter store.Filter) ([]domain.ChatMessage, error)
	CreateTaskFromDescription(ctx context.Context, description, projectID string) (domain.Result[domain.Task], error)
	AnalyzeTask(ctx context.Context, task domain.Task, projectContext any) (domain.Result[domain.TaskAnalysis], error)
	AnalyzeProject(ctx context.Context, project domain.Project, tasks []domain.Task) (domain.Result[domain.ProjectHealth], error)
	TranscribeAudio(ctx context.Context, upload gateway.AudioUpload) (domain.Result[domain.Transcription], error)
	IndexDocument(ctx context.Context, content string, metadata map[string]any) (domain.Result[domain.IndexResult], error)
	SearchDocuments(ctx context.Context, query string, limit int, filter map[string]any) (domain.Result[domain.SearchResults], error)
	SuggestTaskBreakdown(ctx context.Context, task domain.Task) (domain.Result[domain.Breakdown], error)
	EstimateEffort(ctx context.Context, tasks []domain.Task) (domain.Result[domain.EffortEstimate], error)
}

// StatusSource reports AI engine health.
type StatusSource interface {
	State() health.State
	Probe(ctx context.Context) bool
}

// Handler provides common handler utilities.
type Handler struct {
	ai     AIService
	status StatusSource
	logger *slog.Logger
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(ai AIService, status StatusSource, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{ai: ai, status: status, logger: logger}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeError maps gateway errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		Error(w, http.StatusBadRequest, verr.Error())
	case domain.IsUnavailable(err):
		Error(w, http.StatusServiceUnavailable, unavailableMessage)
	default:
		h.logger.Error("Request failed", "path", r.URL.Path, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON reads a bounded JSON body into v. It writes the error response
// and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			Error(w, http.StatusBadRequest, "request body is required")
		default:
			Error(w, http.StatusBadRequest, "invalid JSON body")
		}
		return false
	}
	return true
}
