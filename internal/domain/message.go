// Package domain contains core domain types for the AI gateway.
package domain

import (
	"time"
)

// Role identifies who authored a chat message.
type Role string

const (
	// RoleUser marks a message typed by the end user.
	RoleUser Role = "user"
	// RoleAI marks a reply produced by the gateway, real or synthesized.
	RoleAI Role = "ai"
)

// MessageContext links a chat message to the project or task it was sent from.
type MessageContext struct {
	ProjectID string `json:"projectId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
}

// MessageMetadata describes how an AI message was produced.
type MessageMetadata struct {
	Model        string `json:"model,omitempty"`
	ResponseTime int64  `json:"responseTime,omitempty"`
	Error        bool   `json:"error,omitempty"`
	Fallback     bool   `json:"fallback,omitempty"`
}

// ChatMessage is one persisted entry of a user's conversation history.
// Messages are append-only and never mutated after creation.
type ChatMessage struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user"`
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Context   MessageContext   `json:"context"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
}

// IsFallback reports whether the message carries a locally synthesized reply.
func (m *ChatMessage) IsFallback() bool {
	return m.Metadata != nil && m.Metadata.Fallback
}

// ContextType selects the kind of request the AI engine should handle.
type ContextType string

const (
	ContextChat            ContextType = "chat"
	ContextTaskAnalysis    ContextType = "task-analysis"
	ContextTaskCreation    ContextType = "task-creation"
	ContextProjectAnalysis ContextType = "project-analysis"
)

// RequestContext travels with a request through the call chain. It is never
// persisted directly.
type RequestContext struct {
	Type      ContextType    `json:"type,omitempty"`
	ProjectID string         `json:"projectId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	Filter    map[string]any `json:"filter,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// MessageContext returns the persisted subset of the request context.
func (c RequestContext) MessageContext() MessageContext {
	return MessageContext{ProjectID: c.ProjectID, TaskID: c.TaskID}
}
