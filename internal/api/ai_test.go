//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/ashureev/ai-gateway/internal/gateway"
	"github.com/ashureev/ai-gateway/internal/health"
	"github.com/ashureev/ai-gateway/internal/identity"
	"github.com/ashureev/ai-gateway/internal/store"
	"github.com/go-chi/chi/v5"
)

type fakeService struct {
	mu         sync.Mutex
	chatReq    gateway.ChatRequest
	history    store.Filter
	upload     gateway.AudioUpload
	audioBytes []byte
	search     struct {
		query  string
		limit  int
		filter map[string]any
	}
	analyzeCtx any
	err        error
}

func (f *fakeService) Chat(_ context.Context, req gateway.ChatRequest) (domain.Result[domain.ChatReply], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatReq = req
	if f.err != nil {
		return domain.Result[domain.ChatReply]{}, f.err
	}
	if req.Message == "" {
		return domain.Result[domain.ChatReply]{}, domain.NewValidationError("message", "message is required")
	}
	return domain.Result[domain.ChatReply]{
		Data:     domain.ChatReply{Response: "hi"},
		Metadata: domain.Metadata{ResponseTime: 3, Fallback: true, Error: true},
	}, nil
}

func (f *fakeService) History(_ context.Context, userID string, filter store.Filter) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.history = filter
	return []domain.ChatMessage{{ID: "m1", UserID: userID, Role: domain.RoleUser, Content: "q"}}, nil
}

func (f *fakeService) CreateTaskFromDescription(_ context.Context, description, projectID string) (domain.Result[domain.Task], error) {
	return domain.Result[domain.Task]{Data: domain.Task{Title: description, ProjectID: projectID}}, nil
}

func (f *fakeService) AnalyzeTask(_ context.Context, task domain.Task, projectContext any) (domain.Result[domain.TaskAnalysis], error) {
	f.mu.Lock()
	f.analyzeCtx = projectContext
	f.mu.Unlock()
	return domain.Result[domain.TaskAnalysis]{Data: domain.TaskAnalysis{ComplexityScore: 4}}, nil
}

func (f *fakeService) AnalyzeProject(_ context.Context, _ domain.Project, tasks []domain.Task) (domain.Result[domain.ProjectHealth], error) {
	return domain.Result[domain.ProjectHealth]{Data: domain.ProjectHealth{HealthScore: len(tasks)}}, nil
}

func (f *fakeService) TranscribeAudio(_ context.Context, upload gateway.AudioUpload) (domain.Result[domain.Transcription], error) {
	data, _ := io.ReadAll(upload.Audio)
	f.mu.Lock()
	f.upload = upload
	f.audioBytes = data
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return domain.Result[domain.Transcription]{}, err
	}
	return domain.Result[domain.Transcription]{Data: domain.Transcription{Transcript: "t"}}, nil
}

func (f *fakeService) IndexDocument(_ context.Context, content string, _ map[string]any) (domain.Result[domain.IndexResult], error) {
	return domain.Result[domain.IndexResult]{Data: domain.IndexResult{Success: true, DocumentID: content}}, nil
}

func (f *fakeService) SearchDocuments(_ context.Context, query string, limit int, filter map[string]any) (domain.Result[domain.SearchResults], error) {
	f.mu.Lock()
	f.search.query, f.search.limit, f.search.filter = query, limit, filter
	f.mu.Unlock()
	return domain.Result[domain.SearchResults]{Data: domain.SearchResults{Results: []domain.SearchHit{}}}, nil
}

func (f *fakeService) SuggestTaskBreakdown(_ context.Context, task domain.Task) (domain.Result[domain.Breakdown], error) {
	return domain.Result[domain.Breakdown]{Data: domain.Breakdown{Subtasks: []domain.Subtask{{Title: task.Title}}}}, nil
}

func (f *fakeService) EstimateEffort(_ context.Context, tasks []domain.Task) (domain.Result[domain.EffortEstimate], error) {
	return domain.Result[domain.EffortEstimate]{Data: domain.EffortEstimate{TotalHours: float64(len(tasks))}}, nil
}

type fakeStatus struct {
	state  health.State
	probes int
}

func (f *fakeStatus) State() health.State { return f.state }

func (f *fakeStatus) Probe(context.Context) bool {
	f.probes++
	f.state = health.State{Available: true, Checked: true, LastCheckedAt: time.Unix(1700000000, 0)}
	return true
}

func newTestRouter(svc *fakeService, status StatusSource) http.Handler {
	r := chi.NewRouter()
	NewAIHandler(NewHandler(svc, status, nil)).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, target, contentType string, body io.Reader, user string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if user != "" {
		req.Header.Set(identity.UserHeaderName, user)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestChatRequiresIdentity(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil)
	rec := do(t, h, http.MethodPost, "/api/ai/chat", "application/json", strings.NewReader(`{"message":"hi"}`), "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestChatReturnsResultWithMetadata(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, nil)

	rec := do(t, h, http.MethodPost, "/api/ai/chat", "application/json",
		strings.NewReader(`{"message":"hello","context":{"type":"chat","projectId":"p1"}}`), "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var got struct {
		Data     domain.ChatReply `json:"data"`
		Metadata domain.Metadata  `json:"metadata"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Data.Response != "hi" || !got.Metadata.Fallback || !got.Metadata.Error {
		t.Fatalf("unexpected body: %+v", got)
	}
	if svc.chatReq.UserID != "u1" || svc.chatReq.Context.ProjectID != "p1" {
		t.Fatalf("unexpected gateway request: %+v", svc.chatReq)
	}
}

func TestChatValidationIs400(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil)
	rec := do(t, h, http.MethodPost, "/api/ai/chat", "application/json", strings.NewReader(`{"message":""}`), "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/ai/chat", "application/json", strings.NewReader(`not json`), "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
}

func TestHistoryParsesFilter(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, nil)

	rec := do(t, h, http.MethodGet, "/api/ai/chat/history?projectId=p1&taskId=t1&limit=5", "", nil, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.history != (store.Filter{ProjectID: "p1", TaskID: "t1", Limit: 5}) {
		t.Fatalf("unexpected filter: %+v", svc.history)
	}

	rec = do(t, h, http.MethodGet, "/api/ai/chat/history?limit=abc", "", nil, "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestAnalyzeTaskRequiresTask(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, nil)

	rec := do(t, h, http.MethodPost, "/api/ai/tasks/analyze", "application/json", strings.NewReader(`{}`), "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}

	rec = do(t, h, http.MethodPost, "/api/ai/tasks/analyze", "application/json",
		strings.NewReader(`{"task":{"title":"x"},"projectContext":{"name":"P"}}`), "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	raw, ok := svc.analyzeCtx.(json.RawMessage)
	if !ok || !bytes.Contains(raw, []byte(`"P"`)) {
		t.Fatalf("expected project context forwarded, got %#v", svc.analyzeCtx)
	}
}

func TestTaskAndProjectRoutes(t *testing.T) {
	h := newTestRouter(&fakeService{}, nil)
	tests := []struct {
		path string
		body string
	}{
		{"/api/ai/tasks/from-description", `{"description":"do it","projectId":"p"}`},
		{"/api/ai/tasks/breakdown", `{"task":{"title":"x"}}`},
		{"/api/ai/tasks/estimate", `{"tasks":[{"title":"a"},{"title":"b"}]}`},
		{"/api/ai/projects/analyze", `{"projectData":{"name":"P"},"tasks":[]}`},
		{"/api/ai/documents", `{"content":"doc","metadata":{"k":"v"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, tt.path, "application/json", strings.NewReader(tt.body), "u1")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
			}
		})
	}
}

func TestSearchDocumentsParsesQuery(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, nil)

	rec := do(t, h, http.MethodGet, `/api/ai/documents/search?query=plan&limit=3&filter=%7B%22project%22%3A%22p%22%7D`, "", nil, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.search.query != "plan" || svc.search.limit != 3 || svc.search.filter["project"] != "p" {
		t.Fatalf("unexpected search args: %+v", svc.search)
	}

	rec = do(t, h, http.MethodGet, `/api/ai/documents/search?query=plan&filter=oops`, "", nil, "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad filter, got %d", rec.Code)
	}
}

func multipartBody(t *testing.T, withAudio bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if withAudio {
		fw, err := mw.CreateFormFile("audio", "call.wav")
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		_, _ = fw.Write([]byte("RIFFdata"))
	}
	_ = mw.WriteField("title", "Sync")
	_ = mw.WriteField("participants", `["ana"]`)
	_ = mw.WriteField("date", "2024-05-01")
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestTranscribeForwardsUpload(t *testing.T) {
	svc := &fakeService{}
	h := newTestRouter(svc, nil)

	body, ct := multipartBody(t, true)
	rec := do(t, h, http.MethodPost, "/api/ai/transcribe", ct, body, "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	if string(svc.audioBytes) != "RIFFdata" || svc.upload.FileName != "call.wav" {
		t.Fatalf("unexpected upload: %q %q", svc.audioBytes, svc.upload.FileName)
	}
	if svc.upload.Title != "Sync" || len(svc.upload.Participants) != 1 || svc.upload.Date != "2024-05-01" {
		t.Fatalf("unexpected fields: %+v", svc.upload)
	}

	body, ct = multipartBody(t, false)
	rec = do(t, h, http.MethodPost, "/api/ai/transcribe", ct, body, "u1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without audio, got %d", rec.Code)
	}
}

func TestTranscribeUnavailableIs503(t *testing.T) {
	svc := &fakeService{err: &domain.UnavailableError{Operation: "transcribe"}}
	h := newTestRouter(svc, nil)

	body, ct := multipartBody(t, true)
	rec := do(t, h, http.MethodPost, "/api/ai/transcribe", ct, body, "u1")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var got map[string]string
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got["error"] != "AI service is temporarily unavailable" {
		t.Fatalf("unexpected error body: %v", got)
	}
}

func TestStatusDoesNotRequireIdentity(t *testing.T) {
	status := &fakeStatus{}
	h := newTestRouter(&fakeService{}, status)

	rec := do(t, h, http.MethodGet, "/api/ai/status", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got statusResponse
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if got.Checked || got.Available || status.probes != 0 {
		t.Fatalf("expected unknown state without probing, got %+v (probes=%d)", got, status.probes)
	}

	rec = do(t, h, http.MethodGet, "/api/ai/status?refresh=1", "", nil, "")
	_ = json.NewDecoder(rec.Body).Decode(&got)
	if !got.Available || got.LastCheckedAt == nil || status.probes != 1 {
		t.Fatalf("expected refreshed state, got %+v (probes=%d)", got, status.probes)
	}
}
