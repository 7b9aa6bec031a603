package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/convctx"
	"github.com/dataloom/analystrt/pkg/ledger"
	"github.com/dataloom/analystrt/pkg/models"
	"github.com/dataloom/analystrt/pkg/tools"
)

// Engine runs a Team against a ContextState, emitting Events as the
// workflow progresses.
type Engine struct {
	Tools  *tools.Registry
	LLMs   map[string]capability.LLM // agent LLMHandle -> capability.LLM
	Ledger *ledger.Ledger
	Config Config
	Logger *slog.Logger
}

// RunRequest is one invocation of the engine for a single assistant turn.
type RunRequest struct {
	Team        Team
	State       *convctx.ContextState
	History     []models.HistoryTurn
	UserMessage string
	SessionID   string
	Trace       ledger.Trace
}

// Run starts the coordinator and streams lifecycle Events on the returned
// channel, which is closed once the run reaches a terminal event
// (EventRunCompleted or EventError).
func (e *Engine) Run(ctx context.Context, req RunRequest) <-chan Event {
	events := make(chan Event, 64)
	logger := e.logger()

	go func() {
		defer close(events)

		runCtx, cancel := context.WithTimeout(ctx, e.timeout())
		defer cancel()

		run := &run{
			engine: e,
			logger: logger,
			events: events,
			req:    req,
		}

		finalText, err := run.runAgent(runCtx, req.Team.Coordinator, req.UserMessage, true)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%w: workflow exceeded its wall-clock budget", apperrors.ErrTimedOut)
			} else if errors.Is(err, context.Canceled) {
				err = fmt.Errorf("%w: workflow cancelled", apperrors.ErrCancelled)
			}
			events <- Event{Type: EventError, Err: err, Steps: run.steps}
			return
		}

		events <- Event{Type: EventRunCompleted, FinalContent: finalText, Steps: run.steps}
	}()

	return events
}

func (e *Engine) timeout() time.Duration {
	if e.Config.WorkflowTimeout > 0 {
		return e.Config.WorkflowTimeout
	}
	return DefaultConfig().WorkflowTimeout
}

func (e *Engine) stepTimeout() time.Duration {
	if e.Config.StepTimeout > 0 {
		return e.Config.StepTimeout
	}
	return DefaultConfig().StepTimeout
}

func (e *Engine) maxIterations() int {
	if e.Config.MaxIterationsPerAgent > 0 {
		return e.Config.MaxIterationsPerAgent
	}
	return DefaultConfig().MaxIterationsPerAgent
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// run carries the mutable state of one workflow execution: its step log
// and a dense step_order counter. Specialists are never scheduled
// concurrently within a run, so no locking is required here.
type run struct {
	engine *Engine
	logger *slog.Logger
	events chan Event
	req    RunRequest

	steps     []models.AgentStep
	nextOrder int
}

func (r *run) appendStep(agentName string, toolCall *models.ToolCallPayload, prediction *string) models.AgentStep {
	step := models.AgentStep{
		ID:         uuid.New().String(),
		StepOrder:  r.nextOrder,
		AgentName:  agentName,
		ToolCall:   toolCall,
		Prediction: prediction,
		CreatedAt:  time.Now().UTC(),
	}
	r.nextOrder++
	r.steps = append(r.steps, step)
	return step
}

// runAgent drives one agent's tool-call/LLM-call loop until it produces a
// final text prediction (no further tool calls requested) or the loop's
// iteration budget, step timeout, or workflow timeout is exhausted. It
// returns the agent's final text, to be folded into the caller's context
// (coordinator's turn content, or a handoff result for a specialist).
func (r *run) runAgent(ctx context.Context, agentDef models.AgentDefinition, task string, isCoordinator bool) (string, error) {
	r.events <- Event{Type: EventAgentStarted, AgentName: agentDef.Name}

	llm, ok := r.engine.LLMs[agentDef.LLMHandle]
	if !ok {
		return "", fmt.Errorf("no LLM bound for handle %q (agent %q)", agentDef.LLMHandle, agentDef.Name)
	}

	toolSchemas := r.toolSchemas(agentDef, isCoordinator)
	messages := r.initialMessages(agentDef, task)

	for iter := 0; iter < r.engine.maxIterations(); iter++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		resp, err := r.callLLM(ctx, llm, agentDef, messages, toolSchemas)
		if err != nil {
			return "", err
		}
		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			content := resp.Message.Content
			r.events <- Event{Type: EventRunContent, AgentName: agentDef.Name, ContentDelta: content}
			step := r.appendStep(agentDef.Name, nil, &content)
			r.events <- Event{Type: EventRunContent, AgentName: agentDef.Name, Step: &step}
			return content, nil
		}

		for _, call := range resp.Message.ToolCalls {
			result, resultText, stepErr := r.runToolCall(ctx, agentDef, isCoordinator, call)
			if stepErr != nil {
				return "", stepErr
			}
			messages = append(messages, capability.Message{
				Role:       "tool",
				Content:    resultText,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
			_ = result
		}
	}

	return "", fmt.Errorf("agent %q exceeded its iteration budget without a final response", agentDef.Name)
}

// runToolCall executes one tool call requested by agentDef's LLM, routing
// handoff pseudo-tools to the named specialist and everything else through
// the tool registry. It returns the tool-visible result text for folding
// back into the calling agent's message history.
func (r *run) runToolCall(ctx context.Context, agentDef models.AgentDefinition, isCoordinator bool, call capability.ToolCall) (tools.Result, string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, r.engine.stepTimeout())
	defer cancel()

	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			args = map[string]any{"_raw": call.Arguments}
		}
	}

	if isCoordinator && strings.HasPrefix(call.Name, "handoff_") {
		return r.runHandoff(stepCtx, agentDef, call, args)
	}

	r.events <- Event{Type: EventToolCallStarted, AgentName: agentDef.Name, ToolName: call.Name, ToolArgs: args}
	result := r.engine.Tools.Invoke(stepCtx, call.Name, args, r.req.State)
	if stepCtx.Err() != nil && !result.IsError {
		result = tools.Result{IsError: true, ErrorKind: "TimedOut", Summary: fmt.Sprintf("tool %q exceeded its step budget", call.Name)}
	}

	payload := &models.ToolCallPayload{
		ToolName: call.Name, Args: args, Output: result.Payload,
		RawOutput: result.Summary, IsError: result.IsError, ErrorKind: result.ErrorKind,
	}
	step := r.appendStep(agentDef.Name, payload, nil)
	r.events <- Event{Type: EventToolCallCompleted, AgentName: agentDef.Name, ToolName: call.Name, Step: &step}

	return result, result.Summary, nil
}

func (r *run) runHandoff(ctx context.Context, coordinator models.AgentDefinition, call capability.ToolCall, args map[string]any) (tools.Result, string, error) {
	specialistName := strings.TrimPrefix(call.Name, "handoff_")
	specialist, ok := r.req.Team.specialist(specialistName)
	if !ok {
		result := tools.Result{IsError: true, ErrorKind: "NotFound", Summary: fmt.Sprintf("no specialist named %q", specialistName)}
		payload := &models.ToolCallPayload{ToolName: call.Name, Args: args, IsError: true, ErrorKind: "NotFound", RawOutput: result.Summary}
		step := r.appendStep(coordinator.Name, payload, nil)
		r.events <- Event{Type: EventTeamToolCallCompleted, AgentName: coordinator.Name, ToolName: call.Name, Step: &step}
		return result, result.Summary, nil
	}

	task, _ := args["task"].(string)
	r.events <- Event{Type: EventTeamToolCallStarted, AgentName: coordinator.Name, ToolName: call.Name, ToolArgs: args}

	finalText, err := r.runAgent(ctx, specialist, task, false)
	isError := err != nil
	errKind := ""
	summary := finalText
	if isError {
		errKind = "Internal"
		summary = err.Error()
	}

	payload := &models.ToolCallPayload{
		ToolName: call.Name, Args: args, Output: finalText, RawOutput: summary, IsError: isError, ErrorKind: errKind,
	}
	step := r.appendStep(coordinator.Name, payload, nil)
	r.events <- Event{Type: EventTeamToolCallCompleted, AgentName: coordinator.Name, ToolName: call.Name, Step: &step}

	return tools.Result{Summary: summary, IsError: isError, ErrorKind: errKind}, summary, nil
}

func (r *run) callLLM(ctx context.Context, llm capability.LLM, agentDef models.AgentDefinition, messages []capability.Message, toolSchemas []capability.ToolSchema) (capability.ChatResponse, error) {
	// Ledger is nil in tests that exercise the engine without a database;
	// every other caller wires a real *ledger.Ledger so every live call is
	// still recorded.
	var call *ledger.Call
	if r.engine.Ledger != nil {
		call = r.engine.Ledger.Begin(ctx, models.StartLLMCallRequest{
			Type:         models.CallTypeChat,
			Model:        agentDef.LLMHandle,
			Messages:     toLLMMessages(messages),
			SessionID:    r.req.SessionID,
			TraceID:      r.req.Trace.TraceID,
			ParentCallID: r.req.Trace.ParentCallID,
			Metadata:     map[string]any{"agent_name": agentDef.Name},
		})
	}

	resp, err := llm.Chat(ctx, capability.ChatRequest{Messages: messages, Model: agentDef.LLMHandle, Tools: toolSchemas})
	if err != nil {
		if call != nil {
			call.Fail(ctx, err.Error())
		}
		return capability.ChatResponse{}, fmt.Errorf("agent %q: llm call failed: %w", agentDef.Name, err)
	}

	if call != nil {
		call.Complete(ctx, ledger.CompleteRequest{
			ResponseMessage:  models.LLMMessage{Role: resp.Message.Role, Content: resp.Message.Content},
			FinishReason:     resp.FinishReason,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		})
	}
	return resp, nil
}

func (r *run) toolSchemas(agentDef models.AgentDefinition, isCoordinator bool) []capability.ToolSchema {
	defs := r.engine.Tools.Definitions(agentDef.ToolNames)
	schemas := make([]capability.ToolSchema, 0, len(defs)+len(r.req.Team.Specialists))
	for _, d := range defs {
		buf, _ := json.Marshal(d.ArgsSchema)
		schemas = append(schemas, capability.ToolSchema{Name: d.Name, Description: d.Description, ArgsSchema: string(buf)})
	}
	if isCoordinator {
		for _, s := range r.req.Team.Specialists {
			schemas = append(schemas, capability.ToolSchema{
				Name:        handoffToolName(s.Name),
				Description: fmt.Sprintf("Hand off to the %s specialist: %s", s.Name, s.RoleDesc),
				ArgsSchema:  `{"type":"object","properties":{"task":{"type":"string"}},"required":["task"]}`,
			})
		}
	}
	return schemas
}

func (r *run) initialMessages(agentDef models.AgentDefinition, task string) []capability.Message {
	messages := []capability.Message{{Role: "system", Content: agentDef.SystemPrompt}}
	for _, h := range r.req.History {
		messages = append(messages, capability.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, capability.Message{Role: "user", Content: task})
	return messages
}

func toLLMMessages(messages []capability.Message) []models.LLMMessage {
	out := make([]models.LLMMessage, len(messages))
	for i, m := range messages {
		out[i] = models.LLMMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
