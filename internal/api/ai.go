package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/ashureev/ai-gateway/internal/gateway"
	"github.com/ashureev/ai-gateway/internal/health"
	"github.com/ashureev/ai-gateway/internal/identity"
	"github.com/ashureev/ai-gateway/internal/store"
	"github.com/go-chi/chi/v5"
)

// uploadMemory is the in-memory part of a parsed audio upload; the rest
// spills to temporary files.
const uploadMemory = 32 << 20

// AIHandler handles the /api/ai endpoints.
type AIHandler struct {
	*Handler
}

// NewAIHandler creates a new AI handler.
func NewAIHandler(base *Handler) *AIHandler {
	return &AIHandler{Handler: base}
}

// RegisterRoutes registers AI routes. Everything except status requires a
// user identity.
func (h *AIHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ai", func(r chi.Router) {
		r.Get("/status", h.Status)

		r.Group(func(r chi.Router) {
			r.Use(identity.Middleware)
			r.Post("/chat", h.Chat)
			r.Get("/chat/history", h.History)
			r.Post("/tasks/from-description", h.CreateTask)
			r.Post("/tasks/analyze", h.AnalyzeTask)
			r.Post("/tasks/breakdown", h.SuggestBreakdown)
			r.Post("/tasks/estimate", h.EstimateEffort)
			r.Post("/projects/analyze", h.AnalyzeProject)
			r.Post("/transcribe", h.Transcribe)
			r.Post("/documents", h.IndexDocument)
			r.Get("/documents/search", h.SearchDocuments)
		})
	})
}

// Chat relays a chat message and returns the reply.
func (h *AIHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string                `json:"message"`
		Context domain.RequestContext `json:"context"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.ai.Chat(r.Context(), gateway.ChatRequest{
		UserID:  identity.UserIDFromContext(r.Context()),
		Message: req.Message,
		Context: req.Context,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// History returns the caller's chat history.
func (h *AIHandler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.Filter{ProjectID: q.Get("projectId"), TaskID: q.Get("taskId")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	msgs, err := h.ai.History(r.Context(), identity.UserIDFromContext(r.Context()), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

// CreateTask turns a free-text description into a task.
func (h *AIHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		ProjectID   string `json:"projectId"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.ai.CreateTaskFromDescription(r.Context(), req.Description, req.ProjectID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// AnalyzeTask assesses a single task.
func (h *AIHandler) AnalyzeTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task           *domain.Task    `json:"task"`
		ProjectContext json.RawMessage `json:"projectContext"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Task == nil {
		Error(w, http.StatusBadRequest, "task is required")
		return
	}

	var projectContext any
	if len(req.ProjectContext) > 0 {
		projectContext = req.ProjectContext
	}
	res, err := h.ai.AnalyzeTask(r.Context(), *req.Task, projectContext)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// SuggestBreakdown splits a task into subtasks.
func (h *AIHandler) SuggestBreakdown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task *domain.Task `json:"task"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Task == nil {
		Error(w, http.StatusBadRequest, "task is required")
		return
	}
	res, err := h.ai.SuggestTaskBreakdown(r.Context(), *req.Task)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// EstimateEffort estimates hours for a list of tasks.
func (h *AIHandler) EstimateEffort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks []domain.Task `json:"tasks"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.ai.EstimateEffort(r.Context(), req.Tasks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// AnalyzeProject scores a project's health.
func (h *AIHandler) AnalyzeProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectData domain.Project `json:"projectData"`
		Tasks       []domain.Task  `json:"tasks"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.ai.AnalyzeProject(r.Context(), req.ProjectData, req.Tasks)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// Transcribe forwards an audio upload for transcription.
func (h *AIHandler) Transcribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		Error(w, http.StatusBadRequest, "multipart form with an audio file is required")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("audio")
	if err != nil {
		Error(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	var participants []string
	if raw := r.FormValue("participants"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &participants); err != nil {
			Error(w, http.StatusBadRequest, "participants must be a JSON array of strings")
			return
		}
	}

	res, err := h.ai.TranscribeAudio(r.Context(), gateway.AudioUpload{
		Audio:        file,
		FileName:     header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Title:        r.FormValue("title"),
		Participants: participants,
		Date:         r.FormValue("date"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// IndexDocument submits a document for semantic search.
func (h *AIHandler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.ai.IndexDocument(r.Context(), req.Content, req.Metadata)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

// SearchDocuments runs a semantic search.
func (h *AIHandler) SearchDocuments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	var filter map[string]any
	if v := q.Get("filter"); v != "" {
		if err := json.Unmarshal([]byte(v), &filter); err != nil {
			Error(w, http.StatusBadRequest, "filter must be a JSON object")
			return
		}
	}

	res, err := h.ai.SearchDocuments(r.Context(), q.Get("query"), limit, filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	JSON(w, http.StatusOK, res)
}

type statusResponse struct {
	Available     bool       `json:"available"`
	Checked       bool       `json:"checked"`
	LastCheckedAt *time.Time `json:"lastCheckedAt,omitempty"`
}

// Status reports the last known AI engine health. refresh=1 forces a probe.
func (h *AIHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		JSON(w, http.StatusOK, statusResponse{})
		return
	}
	if v := r.URL.Query().Get("refresh"); v == "1" || v == "true" {
		h.status.Probe(r.Context())
	}
	JSON(w, http.StatusOK, toStatusResponse(h.status.State()))
}

func toStatusResponse(s health.State) statusResponse {
	resp := statusResponse{Available: s.Available, Checked: s.Checked}
	if !s.LastCheckedAt.IsZero() {
		at := s.LastCheckedAt
		resp.LastCheckedAt = &at
	}
	return resp
}
