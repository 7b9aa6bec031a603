// Package dispatcher implements the tiered workflow dispatcher (C7): it
// classifies an incoming ChatRequest, ensures the session and its prior
// context exist, routes to the simple, medium, or complex pipeline, and
// emits the uniform wire-event sequence described by the streaming
// protocol regardless of which tier actually ran.
package dispatcher

// EventType identifies one wire-shaped event the dispatcher emits. These
// names and shapes are the ones the streaming transport (C8) ships
// verbatim to clients; the dispatcher is the sole producer of this shape,
// so every tier — simple, medium, or complex — looks identical on the wire.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventWorkflowRouted    EventType = "workflow_routed"
	EventAgentStepStart    EventType = "agent_step_start"
	EventAgentStepContent  EventType = "agent_step_content"
	EventToolCall          EventType = "tool_call"
	EventToolResult        EventType = "tool_result"
	EventAgentStepComplete EventType = "agent_step_complete"
	EventContent           EventType = "content"
	EventComplete          EventType = "complete"
	EventError             EventType = "error"
)

// Event is one entry of the wire stream for a single chat turn.
type Event struct {
	Type      EventType
	SessionID string

	// StepID identifies one AgentStep; set on agent_step_start,
	// agent_step_content, tool_call, tool_result, and agent_step_complete.
	StepID    string
	AgentName string

	// Complexity and Reasoning are set on workflow_routed only.
	Complexity string
	Reasoning  string

	// ToolName and ToolArgs are set on tool_call; ToolName, ToolResult, and
	// IsError/ErrorKind are set on tool_result.
	ToolName   string
	ToolArgs   map[string]any
	ToolResult any
	IsError    bool
	ErrorKind  string

	// Content is set on agent_step_content (a step's free-text prediction)
	// and on content (the turn's final-answer delta).
	Content string

	// Err is set on error.
	Err error
}
