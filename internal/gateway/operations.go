package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/ashureev/ai-gateway/internal/upstream"
)

// CreateTaskFromDescription turns free text into a structured task.
func (g *Gateway) CreateTaskFromDescription(ctx context.Context, description, projectID string) (domain.Result[domain.Task], error) {
	if strings.TrimSpace(description) == "" {
		return domain.Result[domain.Task]{}, domain.NewValidationError("description", "description is required")
	}

	body := map[string]any{"description": description, "projectId": projectID}
	return executeWithFallback(ctx, g, OpCreateTask,
		func(ctx context.Context) (domain.Task, error) {
			raw, err := g.call(ctx, OpCreateTask, body)
			if err != nil {
				return domain.Task{}, err
			}
			task, err := decodeField[domain.Task](raw, "task")
			if err != nil {
				return task, err
			}
			if task.ProjectID == "" {
				task.ProjectID = projectID
			}
			return task, nil
		},
		func() domain.Task { return g.fallbacks.TaskFromDescription(description, projectID) },
	), nil
}

// AnalyzeTask asks the engine to assess a task. projectContext is forwarded
// as-is and may be nil.
func (g *Gateway) AnalyzeTask(ctx context.Context, task domain.Task, projectContext any) (domain.Result[domain.TaskAnalysis], error) {
	if strings.TrimSpace(task.Title) == "" {
		return domain.Result[domain.TaskAnalysis]{}, domain.NewValidationError("task.title", "task title is required")
	}

	body := map[string]any{"task": task, "projectContext": projectContext}
	return executeWithFallback(ctx, g, OpAnalyzeTask,
		func(ctx context.Context) (domain.TaskAnalysis, error) {
			raw, err := g.call(ctx, OpAnalyzeTask, body)
			if err != nil {
				return domain.TaskAnalysis{}, err
			}
			return decodeField[domain.TaskAnalysis](raw, "analysis")
		},
		g.fallbacks.TaskAnalysis,
	), nil
}

// AnalyzeProject scores a project's health. The fallback derives the score
// from the completion ratio of tasks.
func (g *Gateway) AnalyzeProject(ctx context.Context, project domain.Project, tasks []domain.Task) (domain.Result[domain.ProjectHealth], error) {
	if tasks == nil {
		tasks = []domain.Task{}
	}

	body := map[string]any{"projectData": project, "tasks": tasks}
	return executeWithFallback(ctx, g, OpAnalyzeProject,
		func(ctx context.Context) (domain.ProjectHealth, error) {
			raw, err := g.call(ctx, OpAnalyzeProject, body)
			if err != nil {
				return domain.ProjectHealth{}, err
			}
			return decodeField[domain.ProjectHealth](raw, "health")
		},
		func() domain.ProjectHealth { return g.fallbacks.ProjectHealth(tasks) },
	), nil
}

// AudioUpload describes a recording to transcribe.
type AudioUpload struct {
	Audio        io.Reader
	FileName     string
	ContentType  string
	Title        string
	Participants []string
	Date         string
}

// TranscribeAudio uploads a recording. It has no fallback: an engine failure
// is returned as *domain.UnavailableError.
func (g *Gateway) TranscribeAudio(ctx context.Context, upload AudioUpload) (domain.Result[domain.Transcription], error) {
	if upload.Audio == nil {
		return domain.Result[domain.Transcription]{}, domain.NewValidationError("audio", "audio file is required")
	}

	participants := upload.Participants
	if participants == nil {
		participants = []string{}
	}
	encoded, err := json.Marshal(participants)
	if err != nil {
		return domain.Result[domain.Transcription]{}, fmt.Errorf("encode participants: %w", err)
	}

	fileName := upload.FileName
	if fileName == "" {
		fileName = "audio"
	}
	form := &upstream.Multipart{}
	form.AddFile(upstream.FilePart{
		Field:       "audio",
		FileName:    fileName,
		ContentType: upload.ContentType,
		Reader:      upload.Audio,
	})
	form.AddField("title", upload.Title)
	form.AddField("participants", string(encoded))
	form.AddField("date", upload.Date)

	return executeOrUnavailable(ctx, g, OpTranscribe,
		func(ctx context.Context) (domain.Transcription, error) {
			raw, err := g.call(ctx, OpTranscribe, form)
			if err != nil {
				return domain.Transcription{}, err
			}
			return decodeWhole[domain.Transcription](raw)
		},
	)
}

// IndexDocument submits content for semantic search. On failure it reports
// success=false and never pretends the document was indexed.
func (g *Gateway) IndexDocument(ctx context.Context, content string, metadata map[string]any) (domain.Result[domain.IndexResult], error) {
	if strings.TrimSpace(content) == "" {
		return domain.Result[domain.IndexResult]{}, domain.NewValidationError("content", "content is required")
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	body := map[string]any{"content": content, "metadata": metadata}
	return executeWithFallback(ctx, g, OpIndexDocument,
		func(ctx context.Context) (domain.IndexResult, error) {
			raw, err := g.call(ctx, OpIndexDocument, body)
			if err != nil {
				return domain.IndexResult{}, err
			}
			return decodeWhole[domain.IndexResult](raw)
		},
		g.fallbacks.IndexDocument,
	), nil
}

// SearchDocuments runs a semantic search. On failure it returns no hits.
func (g *Gateway) SearchDocuments(ctx context.Context, query string, limit int, filter map[string]any) (domain.Result[domain.SearchResults], error) {
	if strings.TrimSpace(query) == "" {
		return domain.Result[domain.SearchResults]{}, domain.NewValidationError("query", "query is required")
	}

	q := url.Values{}
	q.Set("query", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if len(filter) > 0 {
		encoded, err := json.Marshal(filter)
		if err != nil {
			return domain.Result[domain.SearchResults]{}, domain.NewValidationError("filter", "filter must be JSON-encodable")
		}
		q.Set("filter", string(encoded))
	}

	return executeWithFallback(ctx, g, OpSearchDocuments,
		func(ctx context.Context) (domain.SearchResults, error) {
			raw, err := g.call(ctx, OpSearchDocuments, nil, upstream.WithQuery(q))
			if err != nil {
				return domain.SearchResults{}, err
			}
			hits, err := decodeField[[]domain.SearchHit](raw, "results")
			if err != nil {
				return domain.SearchResults{}, err
			}
			if hits == nil {
				hits = []domain.SearchHit{}
			}
			return domain.SearchResults{Results: hits}, nil
		},
		g.fallbacks.SearchDocuments,
	), nil
}

type breakdownTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// SuggestTaskBreakdown splits a task into subtasks.
func (g *Gateway) SuggestTaskBreakdown(ctx context.Context, task domain.Task) (domain.Result[domain.Breakdown], error) {
	if strings.TrimSpace(task.Title) == "" {
		return domain.Result[domain.Breakdown]{}, domain.NewValidationError("task.title", "task title is required")
	}

	body := map[string]any{"task": breakdownTask{Title: task.Title, Description: task.Description}}
	return executeWithFallback(ctx, g, OpSuggestBreakdown,
		func(ctx context.Context) (domain.Breakdown, error) {
			raw, err := g.call(ctx, OpSuggestBreakdown, body)
			if err != nil {
				return domain.Breakdown{}, err
			}
			subtasks, err := decodeField[[]domain.Subtask](raw, "subtasks")
			if err != nil {
				return domain.Breakdown{}, err
			}
			return domain.Breakdown{Subtasks: subtasks}, nil
		},
		func() domain.Breakdown { return g.fallbacks.TaskBreakdown(task) },
	), nil
}

type estimateTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// EstimateEffort estimates hours for each task and their total.
func (g *Gateway) EstimateEffort(ctx context.Context, tasks []domain.Task) (domain.Result[domain.EffortEstimate], error) {
	payload := make([]estimateTask, 0, len(tasks))
	for _, t := range tasks {
		payload = append(payload, estimateTask{Title: t.Title, Description: t.Description, Priority: string(t.Priority)})
	}

	body := map[string]any{"tasks": payload}
	return executeWithFallback(ctx, g, OpEstimateEffort,
		func(ctx context.Context) (domain.EffortEstimate, error) {
			raw, err := g.call(ctx, OpEstimateEffort, body)
			if err != nil {
				return domain.EffortEstimate{}, err
			}
			est, err := decodeWhole[domain.EffortEstimate](raw)
			if err != nil {
				return est, err
			}
			if est.Estimates == nil {
				return est, fmt.Errorf("%w: estimates", errMissingField)
			}
			if est.TotalHours == 0 {
				for _, e := range est.Estimates {
					est.TotalHours += e.EstimatedHours
				}
			}
			return est, nil
		},
		func() domain.EffortEstimate { return g.fallbacks.EffortEstimate(tasks) },
	), nil
}
