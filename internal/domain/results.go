package domain

// Metadata accompanies every gateway result. Fallback and Error are set only
// when the payload was synthesized locally.
type Metadata struct {
	ResponseTime int64  `json:"responseTime"`
	Model        string `json:"model,omitempty"`
	Fallback     bool   `json:"fallback,omitempty"`
	Error        bool   `json:"error,omitempty"`
}

// Result is the normalized outcome of a gateway operation.
type Result[T any] struct {
	Data     T        `json:"data"`
	Metadata Metadata `json:"metadata"`
}

// ChatReply is the payload of a chat operation.
type ChatReply struct {
	Response    string   `json:"response"`
	Model       string   `json:"model,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// TaskAnalysis is the AI assessment of a single task.
type TaskAnalysis struct {
	ComplexityScore int      `json:"complexityScore"`
	EstimatedHours  float64  `json:"estimatedHours"`
	SkillsRequired  []string `json:"skillsRequired"`
	Dependencies    []string `json:"dependencies"`
	Risks           []string `json:"risks"`
	Recommendations []string `json:"recommendations"`
	Blockers        []string `json:"blockers"`
}

// ProjectHealth summarizes the state of a project.
type ProjectHealth struct {
	HealthScore     int      `json:"healthScore"`
	Status          string   `json:"status"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// Subtask is one step of a suggested task breakdown.
type Subtask struct {
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimatedHours"`
	Priority       string  `json:"priority"`
}

// Breakdown is the payload of suggest-task-breakdown.
type Breakdown struct {
	Subtasks []Subtask `json:"subtasks"`
}

// TaskEstimate is the effort estimate for one task.
type TaskEstimate struct {
	Title          string  `json:"title"`
	EstimatedHours float64 `json:"estimatedHours"`
	Confidence     string  `json:"confidence"`
}

// EffortEstimate is the payload of estimate-effort.
type EffortEstimate struct {
	TotalHours float64        `json:"totalHours"`
	Estimates  []TaskEstimate `json:"estimates"`
}

// Transcription is the payload of transcribe-audio.
type Transcription struct {
	Transcript  string   `json:"transcript"`
	Summary     string   `json:"summary,omitempty"`
	ActionItems []string `json:"actionItems,omitempty"`
	Duration    float64  `json:"duration,omitempty"`
}

// IndexResult is the payload of index-document.
type IndexResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	DocumentID string `json:"documentId,omitempty"`
}

// SearchHit is a single document search match.
type SearchHit struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SearchResults is the payload of search-documents.
type SearchResults struct {
	Results []SearchHit `json:"results"`
}
