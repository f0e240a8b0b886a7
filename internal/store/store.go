// Package store provides chat history persistence interfaces and implementations.
package store

import (
	"context"
	"errors"

	"github.com/ashureev/ai-gateway/internal/domain"
)

// DefaultListLimit caps history reads when the caller does not set a limit.
const DefaultListLimit = 50

// ErrInvalidMessage is returned when a message lacks its identity fields.
var ErrInvalidMessage = errors.New("store: message requires id, user and role")

// Filter narrows a history read.
type Filter struct {
	ProjectID string
	TaskID    string
	// Limit keeps only the most recent N messages. Zero means DefaultListLimit.
	Limit int
}

func (f Filter) limit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// MessageStore defines the interface for persisting chat history.
type MessageStore interface {
	// Append stores all messages atomically. Either every message is
	// persisted or none is.
	Append(ctx context.Context, msgs ...domain.ChatMessage) error

	// List returns a user's messages in creation order, oldest first.
	List(ctx context.Context, userID string, filter Filter) ([]domain.ChatMessage, error)

	// Ping verifies backend connectivity.
	Ping(ctx context.Context) error

	// Close releases the backend connection.
	Close() error
}

func validate(msgs []domain.ChatMessage) error {
	for i := range msgs {
		if msgs[i].ID == "" || msgs[i].UserID == "" || msgs[i].Role == "" {
			return ErrInvalidMessage
		}
	}
	return nil
}

func matches(m domain.ChatMessage, f Filter) bool {
	if f.ProjectID != "" && m.Context.ProjectID != f.ProjectID {
		return false
	}
	if f.TaskID != "" && m.Context.TaskID != f.TaskID {
		return false
	}
	return true
}
