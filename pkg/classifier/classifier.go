// Package classifier implements the query classifier (C6): a single fast
// model call that maps a user utterance plus recent history onto one of
// three workflow tiers.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dataloom/analystrt/pkg/capability"
	"github.com/dataloom/analystrt/pkg/ledger"
	"github.com/dataloom/analystrt/pkg/models"
)

// Complexity is the workflow tier a question is routed to.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Result is the classifier's verdict for one question.
type Result struct {
	Complexity Complexity
	Reasoning  string
}

const systemPrompt = `You triage questions for an analytical chat assistant over the user's own datasets.
Classify the user's latest message into exactly one of three tiers:
- simple: greetings, small talk, or general knowledge that needs neither the user's data nor prior analytical context.
- medium: a follow-up whose answer is already implied by the recent conversation history (e.g. "tell me more about that") and needs no new data retrieval.
- complex: anything requiring dataset access, clustering, gap or trend analysis, multi-step tool use, or citation-backed synthesis.
Respond with a single JSON object: {"complexity": "simple"|"medium"|"complex", "reasoning": "<one short sentence>"}. Output nothing else.`

// Classifier classifies one question via a bound fast-tier LLM, logging the
// call through the ledger with call_type=classification per the ledger's
// hidden-call discipline.
type Classifier struct {
	LLM    capability.LLM
	Ledger *ledger.Ledger
	Logger *slog.Logger
}

// New constructs a Classifier. llm is the fast-tier model handle the
// classifier always calls through.
func New(llm capability.LLM, led *ledger.Ledger, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{LLM: llm, Ledger: led, Logger: logger}
}

// Classify maps question plus the last len(history) turns onto a tier. On
// any failure to parse or call the model, it degrades to ComplexityComplex
// — the safest tier, since it is a superset of what simple/medium can
// handle — rather than ever blocking the turn.
func (c *Classifier) Classify(ctx context.Context, question string, history []models.HistoryTurn, sessionID, traceID string) Result {
	messages := []capability.Message{{Role: "system", Content: systemPrompt}}
	for _, h := range history {
		messages = append(messages, capability.Message{Role: h.Role, Content: h.Content})
	}
	messages = append(messages, capability.Message{Role: "user", Content: question})

	var call *ledger.Call
	if c.Ledger != nil {
		call = c.Ledger.Begin(ctx, models.StartLLMCallRequest{
			Type:      models.CallTypeClassification,
			Messages:  toLLMMessages(messages),
			SessionID: sessionID,
			TraceID:   traceID,
		})
	}

	resp, err := c.LLM.Chat(ctx, capability.ChatRequest{Messages: messages})
	if err != nil {
		if call != nil {
			call.Fail(ctx, err.Error())
		}
		c.Logger.Warn("classifier: llm call failed, defaulting to complex", "error", err)
		return Result{Complexity: ComplexityComplex, Reasoning: "classification call failed; routed to complex as a safe default"}
	}

	result, parseErr := parseVerdict(resp.Message.Content)
	if call != nil {
		call.Complete(ctx, ledger.CompleteRequest{
			ResponseMessage:  models.LLMMessage{Role: resp.Message.Role, Content: resp.Message.Content},
			FinishReason:     resp.FinishReason,
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
		})
	}
	if parseErr != nil {
		c.Logger.Warn("classifier: unparseable verdict, defaulting to complex", "error", parseErr, "raw", resp.Message.Content)
		return Result{Complexity: ComplexityComplex, Reasoning: "classifier response was unparseable; routed to complex as a safe default"}
	}
	return result
}

type verdict struct {
	Complexity string `json:"complexity"`
	Reasoning  string `json:"reasoning"`
}

func parseVerdict(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return Result{}, fmt.Errorf("classifier: no JSON object in response")
	}

	var v verdict
	if err := json.Unmarshal([]byte(raw[start:end+1]), &v); err != nil {
		return Result{}, fmt.Errorf("classifier: %w", err)
	}

	switch Complexity(v.Complexity) {
	case ComplexitySimple, ComplexityMedium, ComplexityComplex:
		return Result{Complexity: Complexity(v.Complexity), Reasoning: v.Reasoning}, nil
	default:
		return Result{}, fmt.Errorf("classifier: unrecognized complexity %q", v.Complexity)
	}
}

func toLLMMessages(messages []capability.Message) []models.LLMMessage {
	out := make([]models.LLMMessage, len(messages))
	for i, m := range messages {
		out[i] = models.LLMMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
