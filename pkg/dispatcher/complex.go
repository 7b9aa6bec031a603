package dispatcher

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/engine"
	"github.com/dataloom/analystrt/pkg/ledger"
	"github.com/dataloom/analystrt/pkg/models"
)

// runComplex implements the complex tier: restore the session's prior
// context, invoke the agent workflow engine, translate its lifecycle
// events into the uniform wire shape, then persist the turn.
//
// The engine reports a completed models.AgentStep only once its tool call
// (or final prediction) has already finished — it never streams a step's
// content incrementally. So each step's agent_step_start/content-or-tool/
// agent_step_complete trio is emitted back-to-back here, using the step's
// own id for both ends of the pairing the wire protocol requires.
func (d *Dispatcher) runComplex(ctx context.Context, session models.Session, history []models.HistoryTurn, req models.ChatRequest, trace ledger.Trace, events chan Event) {
	snapshot, err := d.deps.Store.LoadSnapshot(ctx, session.ID)
	if err != nil {
		d.deps.Logger.Warn("dispatcher: failed to load snapshot, starting fresh", "session_id", session.ID, "error", err)
		snapshot = nil
	}

	state := convctx.Restore(d.deps.Logger, snapshot)
	if state.UserID == "" {
		state.UserID = session.UserID
	}
	state.AttachHistory(history)

	engineEvents := d.deps.Engine.Run(ctx, engine.RunRequest{
		Team: d.deps.Team, State: state, History: history,
		UserMessage: req.Message, SessionID: session.ID, Trace: trace,
	})

	var finalText string
	var steps []models.AgentStep
	for ev := range engineEvents {
		switch ev.Type {
		case engine.EventToolCallStarted, engine.EventTeamToolCallStarted:
			// Surfaced once the matching Completed event carries the step.
		case engine.EventToolCallCompleted, engine.EventTeamToolCallCompleted:
			if ev.Step == nil {
				continue
			}
			emitToolStep(events, session.ID, *ev.Step)
		case engine.EventRunContent:
			if ev.Step != nil {
				emitPredictionStep(events, session.ID, *ev.Step)
			}
		case engine.EventRunCompleted:
			finalText = ev.FinalContent
			steps = ev.Steps
		case engine.EventError:
			// The engine still carries the partial step log on a terminal
			// error, and completed steps plus a note of the failure must be
			// persisted before the caller gives up on the turn. persistTurn
			// emits its own EventError (and skips the one below) if the
			// persistence itself fails.
			note := cancellationNote(ev.Err)
			if d.persistTurn(ctx, session.ID, req.Message, note, ev.Steps, state, events) {
				events <- Event{Type: EventError, SessionID: session.ID, Err: ev.Err}
			}
			return
		}
	}

	if finalText != "" {
		events <- Event{Type: EventContent, SessionID: session.ID, Content: finalText}
	}

	if !d.persistTurn(ctx, session.ID, req.Message, finalText, steps, state, events) {
		return
	}
	events <- Event{Type: EventComplete, SessionID: session.ID}
}

// cancellationNote renders the assistant-facing message persisted alongside
// a turn that ended on engine.EventError, so the session transcript records
// why the turn stopped instead of leaving the last assistant turn blank.
func cancellationNote(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, apperrors.ErrCancelled) {
		return "[cancelled before completion]"
	}
	return "[turn failed before completion]"
}

func emitToolStep(events chan Event, sessionID string, step models.AgentStep) {
	stepID := step.ID
	if stepID == "" {
		stepID = uuid.New().String()
	}
	events <- Event{Type: EventAgentStepStart, SessionID: sessionID, StepID: stepID, AgentName: step.AgentName}
	if step.ToolCall != nil {
		events <- Event{
			Type: EventToolCall, SessionID: sessionID, StepID: stepID, AgentName: step.AgentName,
			ToolName: step.ToolCall.ToolName, ToolArgs: step.ToolCall.Args,
		}
		events <- Event{
			Type: EventToolResult, SessionID: sessionID, StepID: stepID, AgentName: step.AgentName,
			ToolName: step.ToolCall.ToolName, ToolResult: step.ToolCall.Output,
			IsError: step.ToolCall.IsError, ErrorKind: step.ToolCall.ErrorKind,
		}
	}
	events <- Event{Type: EventAgentStepComplete, SessionID: sessionID, StepID: stepID, AgentName: step.AgentName}
}

func emitPredictionStep(events chan Event, sessionID string, step models.AgentStep) {
	stepID := step.ID
	if stepID == "" {
		stepID = uuid.New().String()
	}
	events <- Event{Type: EventAgentStepStart, SessionID: sessionID, StepID: stepID, AgentName: step.AgentName}
	if step.Prediction != nil {
		events <- Event{Type: EventAgentStepContent, SessionID: sessionID, StepID: stepID, AgentName: step.AgentName, Content: *step.Prediction}
	}
	events <- Event{Type: EventAgentStepComplete, SessionID: sessionID, StepID: stepID, AgentName: step.AgentName}
}
