package models

import "time"

// MessageRole is the role of a Message within a session's causal chain.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Message is one turn of the session's causal chain. Messages are
// append-only: each assistant message's ParentMessageID points at the
// triggering user message, and each non-first user message's
// ParentMessageID points at the preceding assistant message.
type Message struct {
	ID              string
	SessionID       string
	Role            MessageRole
	Content         string
	ParentMessageID *string
	Metadata        map[string]any
	CreatedAt       time.Time
}

// CreateMessageRequest appends a new message to a session.
type CreateMessageRequest struct {
	SessionID       string
	Role            MessageRole
	Content         string
	ParentMessageID *string
	Metadata        map[string]any
}
