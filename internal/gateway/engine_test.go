package gateway

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/ashureev/ai-gateway/internal/fallback"
	"github.com/ashureev/ai-gateway/internal/health"
	"github.com/ashureev/ai-gateway/internal/mockengine"
	"github.com/ashureev/ai-gateway/internal/upstream"
)

func newEngineGateway(t *testing.T, timeout time.Duration) (*Gateway, *mockengine.Server, *fakeStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := mockengine.NewServer(logger)
	ts := httptest.NewServer(engine.Handler())
	t.Cleanup(ts.Close)

	client, err := upstream.NewHTTPClient(upstream.Config{
		BaseURL:       ts.URL,
		Timeout:       timeout,
		HealthTimeout: timeout,
		Logger:        logger,
	})
	if err != nil {
		t.Fatalf("NewHTTPClient: %v", err)
	}
	st := &fakeStore{}
	tracker := health.NewTracker(context.Background(), client, health.WithLogger(logger))
	g, err := New(Deps{Client: client, Store: st, Health: tracker, Logger: logger})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return g, engine, st
}

func TestEngineRoundTrip(t *testing.T) {
	g, _, st := newEngineGateway(t, 2*time.Second)
	ctx := context.Background()

	if !g.Available() {
		t.Fatal("expected engine to be available")
	}

	chat, err := g.Chat(ctx, ChatRequest{UserID: "u1", Message: "status?"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if chat.Metadata.Fallback || !strings.Contains(chat.Data.Response, "status?") {
		t.Fatalf("unexpected chat result: %+v", chat)
	}
	if chat.Metadata.Model != mockengine.Model {
		t.Fatalf("expected model %q, got %q", mockengine.Model, chat.Metadata.Model)
	}
	if len(st.persisted()) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(st.persisted()))
	}

	task, _ := g.CreateTaskFromDescription(ctx, "Ship the beta", "p9")
	if task.Metadata.Fallback || task.Data.ProjectID != "p9" {
		t.Fatalf("unexpected task: %+v", task)
	}

	analysis, _ := g.AnalyzeTask(ctx, domain.Task{Title: "Ship"}, nil)
	if analysis.Metadata.Fallback || analysis.Data.ComplexityScore == 0 {
		t.Fatalf("unexpected analysis: %+v", analysis)
	}

	project, _ := g.AnalyzeProject(ctx, domain.Project{Name: "Beta"}, nil)
	if project.Metadata.Fallback || project.Data.HealthScore == 0 {
		t.Fatalf("unexpected project health: %+v", project)
	}

	breakdown, _ := g.SuggestTaskBreakdown(ctx, domain.Task{Title: "Ship"})
	if breakdown.Metadata.Fallback || len(breakdown.Data.Subtasks) != 3 {
		t.Fatalf("unexpected breakdown: %+v", breakdown)
	}

	estimate, _ := g.EstimateEffort(ctx, []domain.Task{{Title: "a", Priority: domain.PriorityHigh}})
	if estimate.Metadata.Fallback || estimate.Data.TotalHours != 8 {
		t.Fatalf("unexpected estimate: %+v", estimate)
	}

	idx, _ := g.IndexDocument(ctx, "release checklist for the beta", map[string]any{"project": "p9"})
	if !idx.Data.Success || idx.Data.DocumentID == "" {
		t.Fatalf("unexpected index result: %+v", idx)
	}
	search, _ := g.SearchDocuments(ctx, "checklist", 5, map[string]any{"project": "p9"})
	if search.Metadata.Fallback || len(search.Data.Results) != 1 || search.Data.Results[0].ID != idx.Data.DocumentID {
		t.Fatalf("unexpected search result: %+v", search)
	}

	tr, err := g.TranscribeAudio(ctx, AudioUpload{
		Audio:        strings.NewReader(strings.Repeat("a", 16000)),
		FileName:     "standup.wav",
		ContentType:  "audio/wav",
		Title:        "Standup",
		Participants: []string{"ana", "bo"},
		Date:         "2024-05-01",
	})
	if err != nil {
		t.Fatalf("TranscribeAudio: %v", err)
	}
	if tr.Data.Duration != 1 || len(tr.Data.ActionItems) != 2 {
		t.Fatalf("unexpected transcription: %+v", tr.Data)
	}
}

func TestEngineChatAnswersEveryContextType(t *testing.T) {
	g, _, st := newEngineGateway(t, 2*time.Second)

	types := []domain.ContextType{
		"",
		domain.ContextChat,
		domain.ContextTaskAnalysis,
		domain.ContextTaskCreation,
		domain.ContextProjectAnalysis,
	}
	for _, ct := range types {
		res, err := g.Chat(context.Background(), ChatRequest{
			UserID:  "u1",
			Message: "hi",
			Context: domain.RequestContext{Type: ct, ProjectID: "p1"},
		})
		if err != nil {
			t.Fatalf("Chat(%q): %v", ct, err)
		}
		if res.Metadata.Fallback || res.Metadata.Error {
			t.Errorf("Chat(%q): engine reply marked as fallback: %+v", ct, res)
		}
		if res.Data.Response == "" || res.Data.Response == fallback.DefaultChatReply {
			t.Errorf("Chat(%q): unexpected response %q", ct, res.Data.Response)
		}
		if res.Metadata.Model != mockengine.Model {
			t.Errorf("Chat(%q): expected model %q, got %q", ct, mockengine.Model, res.Metadata.Model)
		}
	}

	for _, m := range st.persisted() {
		if m.IsFallback() {
			t.Fatalf("healthy engine reply persisted as fallback: %+v", m)
		}
	}
	if got, want := len(st.persisted()), 2*len(types); got != want {
		t.Fatalf("expected %d persisted messages, got %d", want, got)
	}
}

func TestEngineOutageFallsBack(t *testing.T) {
	g, engine, st := newEngineGateway(t, 2*time.Second)
	engine.SetFail(true)
	ctx := context.Background()

	chat, err := g.Chat(ctx, ChatRequest{UserID: "u1", Message: "hello"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if !chat.Metadata.Fallback || !chat.Metadata.Error {
		t.Fatalf("expected fallback chat, got %+v", chat)
	}
	if len(st.persisted()) != 2 {
		t.Fatalf("expected 2 persisted messages, got %d", len(st.persisted()))
	}

	if _, err := g.TranscribeAudio(ctx, AudioUpload{Audio: strings.NewReader("x")}); !domain.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestEngineTimeoutFallsBack(t *testing.T) {
	g, engine, _ := newEngineGateway(t, 100*time.Millisecond)
	engine.SetDelay(time.Second)

	start := time.Now()
	res, err := g.AnalyzeTask(context.Background(), domain.Task{Title: "slow"}, nil)
	if err != nil {
		t.Fatalf("AnalyzeTask: %v", err)
	}
	if !res.Metadata.Fallback {
		t.Fatalf("expected fallback on timeout, got %+v", res)
	}
	if elapsed := time.Since(start); elapsed > 900*time.Millisecond {
		t.Fatalf("expected call to be cut at the timeout, took %v", elapsed)
	}
}
