package dispatcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/classifier"
	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/engine"
	"github.com/dataloom/analystrt/pkg/ledger"
	"github.com/dataloom/analystrt/pkg/models"
)

// Deps wires a Dispatcher to the components it routes across.
type Deps struct {
	Classifier *classifier.Classifier
	Engine     *engine.Engine
	Team       engine.Team

	// SimpleLLM and MediumLLM back the two bypass tiers: a single chat call
	// with no tools and no step log.
	SimpleLLM capability.LLM
	MediumLLM capability.LLM

	Store Store

	HistoryWindow int
	Logger        *slog.Logger
}

// Dispatcher implements the tiered workflow dispatcher (C7).
type Dispatcher struct {
	deps Deps
}

// New constructs a Dispatcher.
func New(deps Deps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.HistoryWindow <= 0 {
		deps.HistoryWindow = DefaultHistoryWindow
	}
	return &Dispatcher{deps: deps}
}

// Dispatch classifies req and routes it to the appropriate tier, returning
// a channel of wire-shaped Events for one turn. The channel is closed once
// a terminal event (EventComplete or EventError) has been sent.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, req models.ChatRequest) (<-chan Event, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("%w: message is required", apperrors.ErrInvalidArgument)
	}

	events := make(chan Event, 64)
	go d.run(ctx, userID, req, events)
	return events, nil
}

func (d *Dispatcher) run(ctx context.Context, userID string, req models.ChatRequest, events chan Event) {
	defer close(events)
	logger := d.deps.Logger

	session, err := d.deps.Store.EnsureSession(ctx, userID, req.SessionID)
	if err != nil {
		events <- Event{Type: EventError, Err: fmt.Errorf("ensure session: %w", err)}
		return
	}
	events <- Event{Type: EventConnected, SessionID: session.ID}

	history := req.ConversationHistory
	if len(history) == 0 {
		history, err = d.deps.Store.LoadHistory(ctx, session.ID, d.deps.HistoryWindow)
		if err != nil {
			logger.Warn("dispatcher: failed to load history, continuing with none", "session_id", session.ID, "error", err)
			history = nil
		}
	}

	trace := ledger.NewTrace()
	verdict := d.deps.Classifier.Classify(ctx, req.Message, history, session.ID, trace.TraceID)
	events <- Event{
		Type: EventWorkflowRouted, SessionID: session.ID,
		Complexity: string(verdict.Complexity), Reasoning: verdict.Reasoning,
	}

	switch verdict.Complexity {
	case classifier.ComplexitySimple, classifier.ComplexityMedium:
		bypassHistory := history
		if verdict.Complexity == classifier.ComplexitySimple {
			bypassHistory = nil
		}
		d.runBypass(ctx, d.bypassLLM(verdict.Complexity), session, bypassHistory, req, events)
	default:
		d.runComplex(ctx, session, history, req, trace, events)
	}
}

func (d *Dispatcher) bypassLLM(complexity classifier.Complexity) capability.LLM {
	if complexity == classifier.ComplexitySimple {
		return d.deps.SimpleLLM
	}
	return d.deps.MediumLLM
}

// persistTurn re-encodes state (nil for the bypass tiers, which never touch
// a ContextState) and durably records the turn. A persistence failure is
// surfaced as an error event — the turn ran, but per the store's
// atomicity guarantee it must not be half-recorded.
func (d *Dispatcher) persistTurn(ctx context.Context, sessionID, userMsg, assistantMsg string, steps []models.AgentStep, state *convctx.ContextState, events chan Event) bool {
	var snapshot []byte
	if state != nil {
		snapshot = convctx.Encode(d.deps.Logger, state)
	}

	stepReqs := make([]models.CreateAgentStepRequest, len(steps))
	for i, s := range steps {
		stepReqs[i] = models.CreateAgentStepRequest{AgentName: s.AgentName, ToolCall: s.ToolCall, Prediction: s.Prediction}
	}

	if err := d.deps.Store.PersistTurn(ctx, PersistTurnRequest{
		SessionID: sessionID, UserMessage: userMsg, AssistantMessage: assistantMsg,
		Steps: stepReqs, Snapshot: snapshot,
	}); err != nil {
		events <- Event{Type: EventError, SessionID: sessionID, Err: fmt.Errorf("persist turn: %w", err)}
		return false
	}
	return true
}
