package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/ai-gateway/internal/domain"
	"github.com/ashureev/ai-gateway/internal/store"
)

// ChatRequest is one user turn.
type ChatRequest struct {
	UserID  string
	Message string
	Context domain.RequestContext
}

type chatBody struct {
	Message string                `json:"message"`
	Context domain.RequestContext `json:"context"`
}

// Chat sends a message to the engine and records the exchange. Exactly two
// messages are appended per accepted call, whether the reply came from the
// engine or from the fallback table.
func (g *Gateway) Chat(ctx context.Context, req ChatRequest) (domain.Result[domain.ChatReply], error) {
	if strings.TrimSpace(req.Message) == "" {
		return domain.Result[domain.ChatReply]{}, domain.NewValidationError("message", "message is required")
	}
	if req.UserID == "" {
		return domain.Result[domain.ChatReply]{}, domain.NewValidationError("user", "user is required")
	}
	if req.Context.Type == "" {
		req.Context.Type = domain.ContextChat
	}

	sentAt := g.now()
	result := executeWithFallback(ctx, g, OpChat,
		func(ctx context.Context) (domain.ChatReply, error) {
			raw, err := g.call(ctx, OpChat, chatBody{Message: req.Message, Context: req.Context})
			if err != nil {
				return domain.ChatReply{}, err
			}
			reply, err := decodeWhole[domain.ChatReply](raw)
			if err != nil {
				return reply, err
			}
			if reply.Response == "" {
				return reply, fmt.Errorf("%w: response", errMissingField)
			}
			return reply, nil
		},
		g.fallbacks.Chat,
	)
	result.Metadata.Model = result.Data.Model

	g.persistExchange(ctx, req, sentAt, result)
	return result, nil
}

func (g *Gateway) persistExchange(ctx context.Context, req ChatRequest, sentAt time.Time, result domain.Result[domain.ChatReply]) {
	msgCtx := req.Context.MessageContext()
	userMsg := domain.ChatMessage{
		ID:        g.newID(),
		UserID:    req.UserID,
		Role:      domain.RoleUser,
		Content:   req.Message,
		Context:   msgCtx,
		CreatedAt: sentAt,
	}
	aiMsg := domain.ChatMessage{
		ID:      g.newID(),
		UserID:  req.UserID,
		Role:    domain.RoleAI,
		Content: result.Data.Response,
		Context: msgCtx,
		Metadata: &domain.MessageMetadata{
			Model:        result.Data.Model,
			ResponseTime: result.Metadata.ResponseTime,
			Error:        result.Metadata.Error,
			Fallback:     result.Metadata.Fallback,
		},
		CreatedAt: g.now(),
	}

	// The caller may have gone away; the exchange is still recorded.
	if err := g.store.Append(context.WithoutCancel(ctx), userMsg, aiMsg); err != nil {
		g.logger.Error("failed to persist chat exchange",
			"user_id", req.UserID,
			"error", err,
		)
		return
	}
	g.metrics.MessagesPersisted(string(domain.RoleUser), 1)
	g.metrics.MessagesPersisted(string(domain.RoleAI), 1)
}

// History returns a user's recorded chat messages, oldest first.
func (g *Gateway) History(ctx context.Context, userID string, filter store.Filter) ([]domain.ChatMessage, error) {
	if userID == "" {
		return nil, domain.NewValidationError("user", "user is required")
	}
	msgs, err := g.store.List(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("list chat history: %w", err)
	}
	return msgs, nil
}
