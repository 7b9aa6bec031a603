// Package events delivers wire-shaped chat turn events to WebSocket clients,
// fanning them out across pods via PostgreSQL NOTIFY/LISTEN and persisting a
// compact reconnect log so a client that drops mid-turn can catch up instead
// of losing the tail of a response.
//
// Every event kind shares one wire shape (WireEvent in payloads.go) rather
// than tarsy's per-kind payload structs, because the dispatcher already
// converged the ten wire-event kinds onto a single dispatcher.Event struct
// (see pkg/dispatcher/events.go) — there is no second schema to preserve.
//
// Two of the ten kinds are NOTIFY-only and never written to the events
// table: "connected" (pure handshake, meaningless after the fact) and
// "content" (token/chunk deltas — potentially many per turn, and the final
// assistant message is already the durable record via pkg/store). Every
// other kind is persisted so a reconnecting client can replay the turn's
// routing decision, step boundaries, tool calls, and terminal outcome.
package events

// EventType mirrors dispatcher.EventType's string values so a dispatcher.Event
// can be published without a lookup table.
const (
	EventTypeConnected         = "connected"
	EventTypeWorkflowRouted    = "workflow_routed"
	EventTypeAgentStepStart    = "agent_step_start"
	EventTypeAgentStepContent  = "agent_step_content"
	EventTypeToolCall          = "tool_call"
	EventTypeToolResult        = "tool_result"
	EventTypeAgentStepComplete = "agent_step_complete"
	EventTypeContent           = "content"
	EventTypeComplete          = "complete"
	EventTypeError             = "error"
)

// transientEventTypes holds the kinds published via notifyOnly — broadcast
// live, never written to the events table.
var transientEventTypes = map[string]bool{
	EventTypeConnected: true,
	EventTypeContent:    true,
}

// SessionChannel returns the NOTIFY channel name for a session's events.
// Format: "session:{session_id}".
func SessionChannel(sessionID string) string {
	return "session:" + sessionID
}

// ClientMessage is the JSON structure for client to server WebSocket messages.
type ClientMessage struct {
	Action      string `json:"action"`                  // "subscribe", "unsubscribe", "catchup", "ping"
	Channel     string `json:"channel,omitempty"`       // e.g. "session:abc-123"
	LastEventID *int   `json:"last_event_id,omitempty"` // for catchup
}
