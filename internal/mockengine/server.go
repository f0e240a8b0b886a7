package mockengine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// maxAudioMemory bounds the in-memory part of a parsed multipart upload.
const maxAudioMemory = 8 << 20

// Server serves the AI engine HTTP contract.
type Server struct {
	orchestrator Orchestrator
	logger       *slog.Logger
	started      time.Time

	delay atomic.Int64
	fail  atomic.Bool

	mu   sync.RWMutex
	docs []document
}

type document struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// NewServer creates a mock engine server.
func NewServer(logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{logger: logger, started: time.Now()}
}

// SetDelay makes every response wait d before being written.
func (s *Server) SetDelay(d time.Duration) { s.delay.Store(int64(d)) }

// SetFail makes every endpoint, including /health, report failure.
func (s *Server) SetFail(fail bool) { s.fail.Store(fail) }

// Handler returns the engine routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.simulate)

	r.Get("/health", s.handleHealth)
	r.Route("/api/v1/ai", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/create-task", s.handleCreateTask)
		r.Post("/analyze-task", s.handleAnalyzeTask)
		r.Post("/analyze-project", s.handleAnalyzeProject)
		r.Post("/transcribe", s.handleTranscribe)
		r.Post("/index-document", s.handleIndexDocument)
		r.Get("/search-documents", s.handleSearchDocuments)
		r.Post("/suggest-breakdown", s.handleSuggestBreakdown)
		r.Post("/estimate-effort", s.handleEstimateEffort)
	})
	return r
}

func (s *Server) simulate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := sleepCtx(r.Context(), time.Duration(s.delay.Load())); err != nil {
			return
		}
		if s.fail.Load() {
			if r.URL.Path == "/health" {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status":  "unhealthy",
					"service": "mock-ai-engine",
				})
				return
			}
			failure(w, http.StatusServiceUnavailable, "mock engine is configured to fail")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"service":   "mock-ai-engine",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Seconds(),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string                `json:"message"`
		Context domain.RequestContext `json:"context"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Message == "" {
		failure(w, http.StatusBadRequest, "message is required")
		return
	}
	success(w, s.orchestrator.ProcessRequest(req.Message, req.Context))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		ProjectID   string `json:"projectId"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Description == "" {
		failure(w, http.StatusBadRequest, "description is required")
		return
	}
	success(w, s.orchestrator.ProcessRequest(req.Description, domain.RequestContext{
		Type:      domain.ContextTaskCreation,
		ProjectID: req.ProjectID,
	}))
}

func (s *Server) handleAnalyzeTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task domain.Task `json:"task"`
	}
	if !decode(w, r, &req) {
		return
	}
	success(w, s.orchestrator.ProcessRequest(req.Task.Title, domain.RequestContext{
		Type:   domain.ContextTaskAnalysis,
		TaskID: req.Task.ID,
	}))
}

func (s *Server) handleAnalyzeProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectData domain.Project `json:"projectData"`
		Tasks       []domain.Task  `json:"tasks"`
	}
	if !decode(w, r, &req) {
		return
	}
	success(w, s.orchestrator.ProcessRequest(req.ProjectData.Name, domain.RequestContext{
		Type:      domain.ContextProjectAnalysis,
		ProjectID: req.ProjectData.ID,
	}))
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAudioMemory); err != nil {
		failure(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	if r.MultipartForm != nil {
		defer func() { _ = r.MultipartForm.RemoveAll() }()
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		failure(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	size, err := io.Copy(io.Discard, file)
	if err != nil {
		failure(w, http.StatusBadRequest, "read audio")
		return
	}

	var participants []string
	if raw := r.FormValue("participants"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &participants); err != nil {
			failure(w, http.StatusBadRequest, "participants must be a JSON array")
			return
		}
	}

	title := r.FormValue("title")
	items := make([]string, 0, len(participants))
	for _, p := range participants {
		items = append(items, "Follow up with "+p)
	}
	success(w, map[string]any{
		"transcript":  fmt.Sprintf("Mock transcript of %q (%d bytes)", title, size),
		"summary":     fmt.Sprintf("Meeting %q on %s with %d participants", title, r.FormValue("date"), len(participants)),
		"actionItems": items,
		"duration":    float64(size) / 16000,
	})
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Content == "" {
		failure(w, http.StatusBadRequest, "content is required")
		return
	}

	doc := document{ID: uuid.NewString(), Content: req.Content, Metadata: req.Metadata}
	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.mu.Unlock()

	success(w, map[string]any{
		"success":    true,
		"message":    "indexed",
		"documentId": doc.ID,
	})
}

func (s *Server) handleSearchDocuments(w http.ResponseWriter, r *http.Request) {
	query := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("query")))
	if query == "" {
		failure(w, http.StatusBadRequest, "query is required")
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			failure(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	var filter map[string]any
	if v := r.URL.Query().Get("filter"); v != "" {
		if err := json.Unmarshal([]byte(v), &filter); err != nil {
			failure(w, http.StatusBadRequest, "filter must be a JSON object")
			return
		}
	}

	s.mu.RLock()
	results := make([]map[string]any, 0)
	for _, doc := range s.docs {
		if !matchesFilter(doc.Metadata, filter) {
			continue
		}
		score := termScore(strings.ToLower(doc.Content), query)
		if score == 0 {
			continue
		}
		results = append(results, map[string]any{
			"id":       doc.ID,
			"content":  doc.Content,
			"score":    score,
			"metadata": doc.Metadata,
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i]["score"].(float64) > results[j]["score"].(float64)
	})
	if len(results) > limit {
		results = results[:limit]
	}
	success(w, map[string]any{"results": results})
}

func (s *Server) handleSuggestBreakdown(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Task struct {
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"task"`
	}
	if !decode(w, r, &req) {
		return
	}
	if req.Task.Title == "" {
		failure(w, http.StatusBadRequest, "task title is required")
		return
	}
	title := req.Task.Title
	success(w, map[string]any{
		"subtasks": []map[string]any{
			{"title": "Design " + title, "description": "Outline the approach", "estimatedHours": 2, "priority": domain.PriorityHigh},
			{"title": "Build " + title, "description": "Implement the change", "estimatedHours": 5, "priority": domain.PriorityHigh},
			{"title": "Verify " + title, "description": "Test and review", "estimatedHours": 2, "priority": domain.PriorityMedium},
		},
	})
}

func (s *Server) handleEstimateEffort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tasks []domain.Task `json:"tasks"`
	}
	if !decode(w, r, &req) {
		return
	}

	estimates := make([]map[string]any, 0, len(req.Tasks))
	total := 0.0
	for _, t := range req.Tasks {
		hours := hoursFor(t.Priority)
		total += hours
		estimates = append(estimates, map[string]any{
			"title":          t.Title,
			"estimatedHours": hours,
			"confidence":     "medium",
		})
	}
	success(w, map[string]any{"totalHours": total, "estimates": estimates})
}

func hoursFor(priority string) float64 {
	switch priority {
	case domain.PriorityHigh:
		return 8
	case domain.PriorityLow:
		return 3
	default:
		return 5
	}
}

// termScore is the fraction of query terms present in content.
func termScore(content, query string) float64 {
	terms := strings.Fields(query)
	hits := 0
	for _, term := range terms {
		if strings.Contains(content, term) {
			hits++
		}
	}
	return float64(hits) / float64(len(terms))
}

func matchesFilter(metadata, filter map[string]any) bool {
	for k, want := range filter {
		if fmt.Sprint(metadata[k]) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		failure(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func success(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func failure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
