// Package fallback synthesizes deterministic substitute results for gateway
// operations when the AI engine cannot be reached.
//
// Every function is pure: the same input always yields the same output, and
// each output has exactly the shape of the matching successful response.
// Operations whose output could pass for authoritative content (audio
// transcription, document indexing, document search) never fabricate data.
package fallback

import (
	"math"

	"github.com/ashureev/ai-gateway/internal/domain"
)

const (
	// DefaultChatReply is returned by Chat when the engine is unreachable.
	DefaultChatReply = "I'm sorry, I'm having trouble connecting to the AI service right now. Please try again in a moment."

	// PendingAnalysisTag marks tasks created without AI analysis.
	PendingAnalysisTag = "pending-ai-analysis"

	// IndexUnavailableMessage is reported by IndexDocument.
	IndexUnavailableMessage = "unavailable"

	// ProjectStatusUnknown is the status of a locally computed project health.
	ProjectStatusUnknown = "unknown"

	// ConfidenceLow marks locally produced effort estimates.
	ConfidenceLow = "low"

	maxTitleRunes      = 100
	defaultTaskHours   = 4
	hoursPerTask       = 8
	analysisComplexity = 5
	analysisHours      = 8
)

// Table holds the fallback policy for every gateway operation.
type Table struct {
	// ChatReply overrides DefaultChatReply when set.
	ChatReply string
}

// Default returns the standard policy table.
func Default() Table {
	return Table{ChatReply: DefaultChatReply}
}

// Chat returns the fixed apology reply.
func (t Table) Chat() domain.ChatReply {
	reply := t.ChatReply
	if reply == "" {
		reply = DefaultChatReply
	}
	return domain.ChatReply{Response: reply}
}

// TaskFromDescription builds a task stub awaiting AI analysis. The title is
// the first 100 characters of the description.
func (Table) TaskFromDescription(description, projectID string) domain.Task {
	return domain.Task{
		Title:         truncateRunes(description, maxTitleRunes),
		Description:   description,
		Priority:      domain.PriorityMedium,
		EstimatedTime: defaultTaskHours,
		Tags:          []string{PendingAnalysisTag},
		Status:        domain.StatusTodo,
		ProjectID:     projectID,
	}
}

// TaskAnalysis returns a placeholder analysis recommending manual review.
func (Table) TaskAnalysis() domain.TaskAnalysis {
	return domain.TaskAnalysis{
		ComplexityScore: analysisComplexity,
		EstimatedHours:  analysisHours,
		SkillsRequired:  []string{"General"},
		Dependencies:    []string{},
		Risks:           []string{"Unable to perform AI analysis"},
		Recommendations: []string{"Manual review recommended"},
		Blockers:        []string{},
	}
}

// ProjectHealth computes a completion-ratio health score from local data.
func (Table) ProjectHealth(tasks []domain.Task) domain.ProjectHealth {
	completed := 0
	for _, task := range tasks {
		if task.IsCompleted() {
			completed++
		}
	}
	return domain.ProjectHealth{
		HealthScore:     HealthScore(completed, len(tasks)),
		Status:          ProjectStatusUnknown,
		Insights:        []string{"AI analysis unavailable"},
		Recommendations: []string{"Manual project review recommended"},
	}
}

// HealthScore is round(100 * completed / total), or 0 when total is 0.
func HealthScore(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// TaskBreakdown splits a task into an implementation and a testing phase.
func (Table) TaskBreakdown(task domain.Task) domain.Breakdown {
	return domain.Breakdown{
		Subtasks: []domain.Subtask{
			{
				Title:          task.Title + " - Phase 1",
				Description:    "Implementation phase",
				EstimatedHours: 4,
				Priority:       domain.PriorityHigh,
			},
			{
				Title:          task.Title + " - Phase 2",
				Description:    "Testing phase",
				EstimatedHours: 3,
				Priority:       domain.PriorityMedium,
			},
		},
	}
}

// EffortEstimate assigns eight low-confidence hours to every task.
func (Table) EffortEstimate(tasks []domain.Task) domain.EffortEstimate {
	estimates := make([]domain.TaskEstimate, 0, len(tasks))
	for _, task := range tasks {
		estimates = append(estimates, domain.TaskEstimate{
			Title:          task.Title,
			EstimatedHours: hoursPerTask,
			Confidence:     ConfidenceLow,
		})
	}
	return domain.EffortEstimate{
		TotalHours: float64(hoursPerTask * len(tasks)),
		Estimates:  estimates,
	}
}

// IndexDocument reports that nothing was indexed.
func (Table) IndexDocument() domain.IndexResult {
	return domain.IndexResult{Success: false, Message: IndexUnavailableMessage}
}

// SearchDocuments returns an empty result set.
func (Table) SearchDocuments() domain.SearchResults {
	return domain.SearchResults{Results: []domain.SearchHit{}}
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
