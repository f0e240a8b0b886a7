// Package gateway is the single entry point the application uses to reach the
// AI engine. Every operation either returns the engine's answer or a
// deterministic local fallback tagged in its metadata.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/ashureev/ai-gateway/internal/fallback"
	"github.com/ashureev/ai-gateway/internal/health"
	"github.com/ashureev/ai-gateway/internal/metrics"
	"github.com/ashureev/ai-gateway/internal/store"
	"github.com/ashureev/ai-gateway/internal/upstream"
	"github.com/google/uuid"
)

// Operation names an AI engine call.
type Operation string

const (
	OpChat             Operation = "chat"
	OpCreateTask       Operation = "create-task"
	OpAnalyzeTask      Operation = "analyze-task"
	OpAnalyzeProject   Operation = "analyze-project"
	OpTranscribe       Operation = "transcribe"
	OpIndexDocument    Operation = "index-document"
	OpSearchDocuments  Operation = "search-documents"
	OpSuggestBreakdown Operation = "suggest-breakdown"
	OpEstimateEffort   Operation = "estimate-effort"
)

// Route is the upstream method and path of an operation.
type Route struct {
	Method string
	Path   string
}

// routes is the canonical upstream route table.
var routes = map[Operation]Route{
	OpChat:             {http.MethodPost, "/api/v1/ai/chat"},
	OpCreateTask:       {http.MethodPost, "/api/v1/ai/create-task"},
	OpAnalyzeTask:      {http.MethodPost, "/api/v1/ai/analyze-task"},
	OpAnalyzeProject:   {http.MethodPost, "/api/v1/ai/analyze-project"},
	OpTranscribe:       {http.MethodPost, "/api/v1/ai/transcribe"},
	OpIndexDocument:    {http.MethodPost, "/api/v1/ai/index-document"},
	OpSearchDocuments:  {http.MethodGet, "/api/v1/ai/search-documents"},
	OpSuggestBreakdown: {http.MethodPost, "/api/v1/ai/suggest-breakdown"},
	OpEstimateEffort:   {http.MethodPost, "/api/v1/ai/estimate-effort"},
}

// RouteFor returns the upstream route of op.
func RouteFor(op Operation) (Route, bool) {
	r, ok := routes[op]
	return r, ok
}

// Recorder receives operation outcomes.
type Recorder interface {
	ObserveOperation(operation, outcome string, elapsed time.Duration)
	MessagesPersisted(role string, n int)
}

type noopRecorder struct{}

func (noopRecorder) ObserveOperation(string, string, time.Duration) {}
func (noopRecorder) MessagesPersisted(string, int)                  {}

// Deps wires a Gateway.
type Deps struct {
	Client    upstream.Client
	Fallbacks fallback.Table
	// Health is optional and only reported through Available.
	Health *health.Tracker
	Store  store.MessageStore
	// Metrics is optional.
	Metrics Recorder
	Logger  *slog.Logger
	// Now and NewID default to time.Now and uuid.NewString.
	Now   func() time.Time
	NewID func() string
}

// Gateway mediates every call to the AI engine.
type Gateway struct {
	client    upstream.Client
	fallbacks fallback.Table
	health    *health.Tracker
	store     store.MessageStore
	metrics   Recorder
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
}

// New creates a Gateway. Client and Store are required.
func New(deps Deps) (*Gateway, error) {
	if deps.Client == nil {
		return nil, errors.New("gateway: upstream client is required")
	}
	if deps.Store == nil {
		return nil, errors.New("gateway: message store is required")
	}
	g := &Gateway{
		client:    deps.Client,
		fallbacks: deps.Fallbacks,
		health:    deps.Health,
		store:     deps.Store,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       deps.Now,
		newID:     deps.NewID,
	}
	if g.fallbacks.ChatReply == "" {
		g.fallbacks = fallback.Default()
	}
	if g.metrics == nil {
		g.metrics = noopRecorder{}
	}
	if g.logger == nil {
		g.logger = slog.Default()
	}
	if g.now == nil {
		g.now = time.Now
	}
	if g.newID == nil {
		g.newID = uuid.NewString
	}
	return g, nil
}

// Available reports the last known engine health. It never blocks and never
// gates an operation.
func (g *Gateway) Available() bool {
	if g.health == nil {
		return false
	}
	return g.health.IsAvailable()
}

// call sends a request along the operation's canonical route.
func (g *Gateway) call(ctx context.Context, op Operation, body any, opts ...upstream.RequestOption) (json.RawMessage, error) {
	route, ok := RouteFor(op)
	if !ok {
		return nil, fmt.Errorf("gateway: unknown operation %q", op)
	}
	return g.client.Request(ctx, route.Method, route.Path, body, opts...)
}

func elapsedMillis(start, end time.Time) int64 {
	return end.Sub(start).Milliseconds()
}

// executeWithFallback runs call and, on any failure, substitutes the
// fallback value. The result never carries an error.
func executeWithFallback[T any](ctx context.Context, g *Gateway, op Operation, call func(context.Context) (T, error), fb func() T) domain.Result[T] {
	start := g.now()
	data, err := call(ctx)
	end := g.now()
	elapsed := end.Sub(start)

	if err != nil {
		g.logger.Warn("AI engine call failed, using fallback",
			"operation", string(op),
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		g.metrics.ObserveOperation(string(op), metrics.OutcomeFallback, elapsed)
		return domain.Result[T]{
			Data: fb(),
			Metadata: domain.Metadata{
				ResponseTime: elapsedMillis(start, end),
				Fallback:     true,
				Error:        true,
			},
		}
	}

	g.metrics.ObserveOperation(string(op), metrics.OutcomeSuccess, elapsed)
	return domain.Result[T]{
		Data:     data,
		Metadata: domain.Metadata{ResponseTime: elapsedMillis(start, end)},
	}
}

// executeOrUnavailable runs call for operations that have no fallback. A
// failure surfaces as *domain.UnavailableError.
func executeOrUnavailable[T any](ctx context.Context, g *Gateway, op Operation, call func(context.Context) (T, error)) (domain.Result[T], error) {
	start := g.now()
	data, err := call(ctx)
	end := g.now()
	elapsed := end.Sub(start)

	if err != nil {
		g.logger.Error("AI engine call failed, no fallback available",
			"operation", string(op),
			"error", err,
			"duration_ms", elapsed.Milliseconds(),
		)
		g.metrics.ObserveOperation(string(op), metrics.OutcomeUnavailable, elapsed)
		return domain.Result[T]{}, &domain.UnavailableError{Operation: string(op), Err: err}
	}

	g.metrics.ObserveOperation(string(op), metrics.OutcomeSuccess, elapsed)
	return domain.Result[T]{
		Data:     data,
		Metadata: domain.Metadata{ResponseTime: elapsedMillis(start, end)},
	}, nil
}

// errMissingField is returned when the engine's data object lacks the
// member an operation extracts.
var errMissingField = errors.New("missing field in engine response")

// decodeWhole decodes the full data object.
func decodeWhole[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode engine data: %w", err)
	}
	return v, nil
}

// decodeField decodes one member of the data object.
func decodeField[T any](raw json.RawMessage, key string) (T, error) {
	var zero T
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return zero, fmt.Errorf("decode engine data: %w", err)
	}
	field, ok := obj[key]
	if !ok || string(field) == "null" {
		return zero, fmt.Errorf("%w: %s", errMissingField, key)
	}
	return decodeWhole[T](field)
}
