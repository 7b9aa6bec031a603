// Package engine implements the agent workflow engine (C5): a team of one
// coordinator and zero or more specialists, run as an event-driven state
// machine whose lifecycle events are projected into the persisted
// AgentStep log.
package engine

import "github.com/dataloom/analystrt/pkg/models"

// EventType identifies the kind of transient ExecutionEvent the engine emits.
type EventType string

const (
	EventAgentStarted          EventType = "agent_started"
	EventToolCallStarted       EventType = "tool_call_started"
	EventToolCallCompleted     EventType = "tool_call_completed"
	EventRunContent            EventType = "run_content"
	EventTeamToolCallStarted   EventType = "team_tool_call_started"
	EventTeamToolCallCompleted EventType = "team_tool_call_completed"
	EventRunCompleted          EventType = "run_completed"
	EventError                 EventType = "error"
)

// Event is one transient record emitted by the engine as a workflow runs.
// It lives only in the stream; the persisted projection is models.AgentStep.
type Event struct {
	Type EventType

	StepID    string
	AgentName string

	ToolName string
	ToolArgs map[string]any

	ContentDelta string

	// Step is populated on ToolCallCompleted and on any step's terminal
	// transition, carrying the projection the caller should append to the
	// turn's step log.
	Step *models.AgentStep

	// FinalContent is populated only on the terminal RunCompleted event.
	// Steps is populated on both terminal events: the whole run's step log
	// on RunCompleted, and the steps completed so far on Error.
	FinalContent string
	Steps        []models.AgentStep

	Err error
}
