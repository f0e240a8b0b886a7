package domain

import "strings"

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Task statuses.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in-progress"
	StatusReview     = "review"
	StatusDone       = "done"
	StatusCompleted  = "completed"
)

// Task is the project-management task shape exchanged with the AI engine.
type Task struct {
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	EstimatedTime float64  `json:"estimatedTime,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Status        string   `json:"status,omitempty"`
	ProjectID     string   `json:"projectId,omitempty"`
}

// IsCompleted reports whether the task counts towards project completion.
func (t Task) IsCompleted() bool {
	switch strings.ToLower(t.Status) {
	case StatusDone, StatusCompleted:
		return true
	default:
		return false
	}
}

// Project is the project summary sent along with project analysis requests.
type Project struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Deadline    string `json:"deadline,omitempty"`
}
