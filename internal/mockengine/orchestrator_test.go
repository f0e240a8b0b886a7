package mockengine

import (
	"strings"
	"testing"

	"github.com/ashureev/ai-gateway/internal/domain"
)

func TestProcessRequestDispatchesOnContextType(t *testing.T) {
	o := Orchestrator{}
	tests := []struct {
		name string
		ctx  domain.RequestContext
		key  string
	}{
		{"chat default", domain.RequestContext{}, "response"},
		{"explicit chat", domain.RequestContext{Type: domain.ContextChat}, "response"},
		{"task analysis", domain.RequestContext{Type: domain.ContextTaskAnalysis}, "analysis"},
		{"task creation", domain.RequestContext{Type: domain.ContextTaskCreation}, "task"},
		{"project analysis", domain.RequestContext{Type: domain.ContextProjectAnalysis}, "health"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := o.ProcessRequest("hello", tt.ctx)
			if _, ok := out[tt.key]; !ok {
				t.Fatalf("expected key %q in %v", tt.key, out)
			}
			if resp, _ := out["response"].(string); resp == "" {
				t.Fatalf("expected a chat response in %v", out)
			}
			if out["model"] != Model {
				t.Fatalf("expected model %q, got %v", Model, out["model"])
			}
		})
	}
}

func TestProcessRequestChatEchoesMessage(t *testing.T) {
	out := Orchestrator{}.ProcessRequest("ping", domain.RequestContext{})
	resp, _ := out["response"].(string)
	if !strings.Contains(resp, "ping") {
		t.Fatalf("expected echo of message, got %q", resp)
	}
	if out["model"] != Model {
		t.Fatalf("expected model %q, got %v", Model, out["model"])
	}
}

func TestProcessRequestTaskCreationKeepsProject(t *testing.T) {
	out := Orchestrator{}.ProcessRequest("Write docs\nwith examples", domain.RequestContext{
		Type:      domain.ContextTaskCreation,
		ProjectID: "p1",
	})
	task := out["task"].(map[string]any)
	if task["title"] != "Write docs" {
		t.Fatalf("expected first line as title, got %v", task["title"])
	}
	if task["projectId"] != "p1" {
		t.Fatalf("expected projectId p1, got %v", task["projectId"])
	}
}
