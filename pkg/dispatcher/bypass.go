package dispatcher

import (
	"context"

	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/models"
)

// runBypass implements the simple and medium tiers: one chat call, no
// tools, no step log, streamed directly as content deltas.
func (d *Dispatcher) runBypass(ctx context.Context, llm capability.LLM, session models.Session, history []models.HistoryTurn, req models.ChatRequest, events chan Event) {
	messages := []capability.Message{{Role: "system", Content: "You are a concise, helpful assistant."}}
	for _, h := range history {
		messages = append(messages, capability.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, capability.Message{Role: "user", Content: req.Message})

	chunks, err := llm.Stream(ctx, capability.ChatRequest{Messages: messages})
	if err != nil {
		events <- Event{Type: EventError, SessionID: session.ID, Err: err}
		return
	}

	var full string
	for chunk := range chunks {
		if chunk.Err != nil {
			events <- Event{Type: EventError, SessionID: session.ID, Err: chunk.Err}
			return
		}
		if chunk.TextDelta != "" {
			full += chunk.TextDelta
			events <- Event{Type: EventContent, SessionID: session.ID, Content: chunk.TextDelta}
		}
	}

	if !d.persistTurn(ctx, session.ID, req.Message, full, nil, nil, events) {
		return
	}
	events <- Event{Type: EventComplete, SessionID: session.ID}
}
