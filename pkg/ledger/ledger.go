// Package ledger implements the LLM call ledger (C3): a structured,
// trace-linked log of every outbound model invocation, visible or hidden.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataloom/analystrt/pkg/models"
)

// Ledger records LLM calls to Postgres. A failure to log a call is always
// logged and never returned to the caller as a blocking error: per the
// ledger's failure semantics, logging failures never block the enclosing
// operation.
type Ledger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// New constructs a Ledger backed by pool.
func New(pool *pgxpool.Pool, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{pool: pool, logger: logger}
}

// Start creates a pending LLMCall row and returns its id. On a write
// failure the call is logged and a freshly minted id is returned anyway, so
// callers can proceed without the ledger ever blocking the turn.
func (l *Ledger) Start(ctx context.Context, req models.StartLLMCallRequest) string {
	id := uuid.New().String()
	now := time.Now().UTC()

	const q = `
		INSERT INTO llm_calls (
			id, call_type, status, provider, model, messages, system_prompt,
			tools, tool_choice, started_at,
			user_id, session_id, task_id, company_id, review_id, trace_id,
			parent_call_id, metadata, tags
		) VALUES ($1,$2,'pending',$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	_, err := l.pool.Exec(ctx, q,
		id, req.Type, req.Provider, req.Model, jsonOrNil(req.Messages), req.SystemPrompt,
		jsonOrNil(req.Tools), req.ToolChoice, now,
		req.UserID, req.SessionID, req.TaskID, req.CompanyID, req.ReviewID, req.TraceID,
		req.ParentCallID, jsonOrNil(req.Metadata), req.Tags,
	)
	if err != nil {
		l.logger.Error("ledger: failed to start call", "call_id", id, "call_type", req.Type, "error", err)
	}
	return id
}

// CompleteRequest carries the fields recorded when an LLM call finishes successfully.
type CompleteRequest struct {
	CallID          string
	ResponseMessage models.LLMMessage
	FinishReason    string

	PromptTokens     int
	CompletionTokens int
	EstimatedCost    float64
}

// Complete marks callID successful, computing total_tokens and latency_ms
// from the row's own started_at. A write failure is logged, never returned.
func (l *Ledger) Complete(ctx context.Context, req CompleteRequest) {
	const q = `
		UPDATE llm_calls SET
			status = 'success',
			response_message = $2,
			finish_reason = $3,
			prompt_tokens = $4,
			completion_tokens = $5,
			total_tokens = $4 + $5,
			estimated_cost = $6,
			completed_at = now(),
			latency_ms = EXTRACT(EPOCH FROM (now() - started_at)) * 1000
		WHERE id = $1`

	_, err := l.pool.Exec(ctx, q, req.CallID, jsonOrNil(req.ResponseMessage), req.FinishReason,
		req.PromptTokens, req.CompletionTokens, req.EstimatedCost)
	if err != nil {
		l.logger.Error("ledger: failed to complete call", "call_id", req.CallID, "error", err)
	}
}

// Fail marks callID errored with errMsg. A write failure is logged, never returned.
func (l *Ledger) Fail(ctx context.Context, callID string, errMsg string) {
	const q = `
		UPDATE llm_calls SET
			status = 'error',
			error_message = $2,
			completed_at = now(),
			latency_ms = EXTRACT(EPOCH FROM (now() - started_at)) * 1000
		WHERE id = $1`

	if _, err := l.pool.Exec(ctx, q, callID, errMsg); err != nil {
		l.logger.Error("ledger: failed to record call failure", "call_id", callID, "error", err)
	}
}

// DeleteOlderThan deletes ledger rows whose started_at predates the
// retention window. This is the only mutation the ledger's retention policy
// permits beyond start/complete/fail.
func (l *Ledger) DeleteOlderThan(ctx context.Context, window time.Duration) (int64, error) {
	tag, err := l.pool.Exec(ctx, `DELETE FROM llm_calls WHERE started_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int64(window.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("ledger: delete older than %s: %w", window, err)
	}
	return tag.RowsAffected(), nil
}

// jsonOrNil returns v as-is for pgx's json-tagged parameter binding, or nil
// when the value is a zero-valued pointer-like type, so NULL is written
// instead of a JSON "null" literal. pgx encodes struct/slice/map values as
// jsonb automatically via its default type map.
func jsonOrNil(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []models.LLMMessage:
		if len(x) == 0 {
			return nil
		}
	case []map[string]any:
		if len(x) == 0 {
			return nil
		}
	case map[string]any:
		if len(x) == 0 {
			return nil
		}
	}
	return v
}
