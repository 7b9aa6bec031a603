package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataloom/analystrt/pkg/dispatcher"
)

func TestToWireEvent(t *testing.T) {
	at := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

	t.Run("routing event carries complexity and reasoning", func(t *testing.T) {
		evt := dispatcher.Event{
			Type:       dispatcher.EventWorkflowRouted,
			SessionID:  "session-abc",
			Complexity: "complex",
			Reasoning:  "requires multi-step tool use",
		}

		wire := ToWireEvent(evt, at)

		assert.Equal(t, string(dispatcher.EventWorkflowRouted), wire.Type)
		assert.Equal(t, "session-abc", wire.SessionID)
		assert.Equal(t, "complex", wire.Complexity)
		assert.Equal(t, "requires multi-step tool use", wire.Reasoning)
		assert.Empty(t, wire.StepID)
		assert.Nil(t, wire.DBEventID)
		assert.Equal(t, "2026-07-30T12:00:00Z", wire.Timestamp)
	})

	t.Run("tool call event carries tool name and args", func(t *testing.T) {
		evt := dispatcher.Event{
			Type:      dispatcher.EventToolCall,
			SessionID: "session-abc",
			StepID:    "step-1",
			AgentName: "retrieval",
			ToolName:  "query_table",
			ToolArgs:  map[string]any{"table": "reviews", "limit": 50},
		}

		wire := ToWireEvent(evt, at)

		assert.Equal(t, "step-1", wire.StepID)
		assert.Equal(t, "retrieval", wire.AgentName)
		assert.Equal(t, "query_table", wire.ToolName)
		assert.Equal(t, "reviews", wire.ToolArgs["table"])
	})

	t.Run("tool result event carries arbitrary result payload", func(t *testing.T) {
		evt := dispatcher.Event{
			Type:       dispatcher.EventToolResult,
			SessionID:  "session-abc",
			StepID:     "step-1",
			ToolResult: map[string]any{"rows": 12},
		}

		wire := ToWireEvent(evt, at)
		result, ok := wire.ToolResult.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, 12, result["rows"])
	})

	t.Run("error event carries the error message and kind", func(t *testing.T) {
		evt := dispatcher.Event{
			Type:      dispatcher.EventError,
			SessionID: "session-abc",
			IsError:   true,
			ErrorKind: "tool_timeout",
			Err:       assert.AnError,
		}

		wire := ToWireEvent(evt, at)

		assert.True(t, wire.IsError)
		assert.Equal(t, "tool_timeout", wire.ErrorKind)
		assert.Equal(t, assert.AnError.Error(), wire.Error)
	})

	t.Run("nil error leaves the error field empty", func(t *testing.T) {
		evt := dispatcher.Event{Type: dispatcher.EventComplete, SessionID: "session-abc"}

		wire := ToWireEvent(evt, at)
		assert.Empty(t, wire.Error)
	})

	t.Run("content chunk carries the delta in Content", func(t *testing.T) {
		evt := dispatcher.Event{
			Type:      dispatcher.EventContent,
			SessionID: "session-abc",
			StepID:    "step-1",
			Content:   "The analysis shows ",
		}

		wire := ToWireEvent(evt, at)
		assert.Equal(t, "The analysis shows ", wire.Content)
	})

	t.Run("marshals to JSON omitting empty optional fields", func(t *testing.T) {
		evt := dispatcher.Event{Type: dispatcher.EventConnected, SessionID: "session-abc"}
		wire := ToWireEvent(evt, at)

		data, err := json.Marshal(wire)
		require.NoError(t, err)

		var decoded map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))

		assert.Equal(t, "connected", decoded["type"])
		assert.Equal(t, "session-abc", decoded["session_id"])
		_, hasStepID := decoded["step_id"]
		assert.False(t, hasStepID, "empty step_id should be omitted")
		_, hasDBEventID := decoded["db_event_id"]
		assert.False(t, hasDBEventID, "ToWireEvent never sets db_event_id")
	})
}
