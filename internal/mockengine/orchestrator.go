// Package mockengine is a stand-in for the AI engine. It answers every
// upstream endpoint with deterministic canned data so the gateway can run and
// be tested without a model behind it.
package mockengine

import (
	"fmt"
	"strings"

	"github.com/ashureev/ai-gateway/internal/domain"
)

// Model is reported in chat replies.
const Model = "mock-orchestrator"

// Orchestrator builds canned payloads keyed on the request context type.
type Orchestrator struct{}

// ProcessRequest returns the data payload for message under rc. Every payload
// carries a chat-ready response and the model name; typed context types add
// their structured result alongside.
func (Orchestrator) ProcessRequest(message string, rc domain.RequestContext) map[string]any {
	out := payloadFor(message, rc)
	out["model"] = Model
	return out
}

func payloadFor(message string, rc domain.RequestContext) map[string]any {
	switch rc.Type {
	case domain.ContextTaskAnalysis:
		return map[string]any{
			"response": "Task analysis: complexity 6/10, about 12 hours of work.",
			"analysis": map[string]any{
				"complexityScore": 6,
				"estimatedHours":  12,
				"skillsRequired":  []string{"Go", "HTTP"},
				"dependencies":    []string{},
				"risks":           []string{"Scope may grow during implementation"},
				"recommendations": []string{"Split the work into reviewable steps"},
				"blockers":        []string{},
			},
		}
	case domain.ContextTaskCreation:
		title := titleFrom(message)
		return map[string]any{
			"response": fmt.Sprintf("Created task %q.", title),
			"task": map[string]any{
				"title":         title,
				"description":   message,
				"priority":      domain.PriorityMedium,
				"estimatedTime": 6,
				"tags":          []string{"ai-generated"},
				"status":        domain.StatusTodo,
				"projectId":     rc.ProjectID,
			},
		}
	case domain.ContextProjectAnalysis:
		return map[string]any{
			"response": "Project health score 80 (on-track).",
			"health": map[string]any{
				"healthScore":     80,
				"status":          "on-track",
				"insights":        []string{fmt.Sprintf("Project %q is progressing steadily", message)},
				"recommendations": []string{"Keep the current pace"},
			},
		}
	default:
		return map[string]any{
			"response":    "Mock reply: " + message,
			"suggestions": []string{"Break the task into smaller steps", "Set a deadline"},
		}
	}
}

func titleFrom(message string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	runes := []rune(line)
	if len(runes) > 60 {
		return string(runes[:60])
	}
	return line
}
