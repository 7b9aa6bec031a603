package events

import (
	"time"

	"github.com/dataloom/analystrt/pkg/dispatcher"
)

// WireEvent is the JSON envelope every published event kind shares. Optional
// fields are omitted when empty so a "connected" event doesn't carry a
// dozen blank keys.
type WireEvent struct {
	Type       string         `json:"type"`
	SessionID  string         `json:"session_id"`
	StepID     string         `json:"step_id,omitempty"`
	AgentName  string         `json:"agent_name,omitempty"`
	Complexity string         `json:"complexity,omitempty"`
	Reasoning  string         `json:"reasoning,omitempty"`
	ToolName   string         `json:"tool_name,omitempty"`
	ToolArgs   map[string]any `json:"tool_args,omitempty"`
	ToolResult any            `json:"tool_result,omitempty"`
	IsError    bool           `json:"is_error,omitempty"`
	ErrorKind  string         `json:"error_kind,omitempty"`
	Content    string         `json:"content,omitempty"`
	Error      string         `json:"error,omitempty"`
	Timestamp  string         `json:"timestamp"`

	// DBEventID is never set by ToWireEvent. The db_event_id key (the events
	// table's row id) is added to the JSON payload afterwards: by
	// persistAndNotify for the live NOTIFY, and by handleCatchup on replay.
	DBEventID *int64 `json:"db_event_id,omitempty"`
}

// ToWireEvent converts a dispatcher.Event into its wire JSON shape.
func ToWireEvent(evt dispatcher.Event, at time.Time) WireEvent {
	wire := WireEvent{
		Type:       string(evt.Type),
		SessionID:  evt.SessionID,
		StepID:     evt.StepID,
		AgentName:  evt.AgentName,
		Complexity: evt.Complexity,
		Reasoning:  evt.Reasoning,
		ToolName:   evt.ToolName,
		ToolArgs:   evt.ToolArgs,
		ToolResult: evt.ToolResult,
		IsError:    evt.IsError,
		ErrorKind:  evt.ErrorKind,
		Content:    evt.Content,
		Timestamp:  at.UTC().Format(time.RFC3339Nano),
	}
	if evt.Err != nil {
		wire.Error = evt.Err.Error()
	}
	return wire
}
