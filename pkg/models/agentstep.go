package models

import "time"

// ToolCallPayload is the structured payload captured on an AgentStep when
// the step represents a tool invocation rather than free text.
type ToolCallPayload struct {
	ToolName  string         `json:"tool_name"`
	Args      map[string]any `json:"args"`
	Output    any            `json:"output,omitempty"`
	RawOutput string         `json:"raw_output,omitempty"`
	IsError   bool           `json:"is_error"`
	ErrorKind string         `json:"error_kind,omitempty"`
}

// AgentStep is one completed (or force-completed) agent invocation within
// an assistant turn. Exactly one of ToolCall or Prediction is non-null.
type AgentStep struct {
	ID              string
	MessageID       string
	StepOrder       int
	AgentName       string
	ToolCall        *ToolCallPayload
	Prediction      *string
	IsStructured    bool
	CreatedAt       time.Time
}

// CreateAgentStepRequest appends one step to a message's ordered step log.
// StepOrder is assigned by the store at append time (dense, 0-based).
type CreateAgentStepRequest struct {
	MessageID  string
	AgentName  string
	ToolCall   *ToolCallPayload
	Prediction *string
}
