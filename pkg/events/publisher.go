package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataloom/analystrt/pkg/dispatcher"
)

// EventPublisher publishes dispatcher.Event values for WebSocket delivery.
// Persistent kinds are stored in the events table then broadcast via NOTIFY,
// in one transaction (pg_notify is transactional — held until COMMIT so a
// rolled-back insert never fires a NOTIFY for a row that doesn't exist).
// Transient kinds (see transientEventTypes) are broadcast via NOTIFY only.
type EventPublisher struct {
	pool *pgxpool.Pool
}

// NewEventPublisher creates a new EventPublisher over a connection pool.
func NewEventPublisher(pool *pgxpool.Pool) *EventPublisher {
	return &EventPublisher{pool: pool}
}

// Publish marshals evt to its wire shape and routes it to the session's
// channel, persisting it first unless its kind is transient.
func (p *EventPublisher) Publish(ctx context.Context, evt dispatcher.Event) error {
	wire := ToWireEvent(evt, time.Now())
	payloadJSON, err := json.Marshal(wire)
	if err != nil {
		return fmt.Errorf("marshal wire event: %w", err)
	}

	channel := SessionChannel(evt.SessionID)
	if transientEventTypes[wire.Type] {
		return p.notifyOnly(ctx, channel, payloadJSON)
	}
	return p.persistAndNotify(ctx, evt.SessionID, channel, payloadJSON)
}

// --- internal core methods ---

func (p *EventPublisher) persistAndNotify(ctx context.Context, sessionID, channel string, payloadJSON []byte) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin event transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var eventID int64
	if err := tx.QueryRow(ctx,
		`INSERT INTO events (session_id, channel, payload, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		sessionID, channel, payloadJSON, time.Now().UTC(),
	).Scan(&eventID); err != nil {
		return fmt.Errorf("persist event: %w", err)
	}

	notifyPayload, err := injectDBEventIDAndTruncate(payloadJSON, eventID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit event transaction: %w", err)
	}
	return nil
}

func (p *EventPublisher) notifyOnly(ctx context.Context, channel string, payloadJSON []byte) error {
	notifyPayload, err := truncateIfNeeded(string(payloadJSON))
	if err != nil {
		return err
	}
	if _, err := p.pool.Exec(ctx, "SELECT pg_notify($1, $2)", channel, notifyPayload); err != nil {
		return fmt.Errorf("pg_notify: %w", err)
	}
	return nil
}

// --- internal helpers ---

// injectDBEventIDAndTruncate adds db_event_id to the JSON payload for NOTIFY
// delivery and applies truncation if the result exceeds PostgreSQL's limit.
func injectDBEventIDAndTruncate(payloadJSON []byte, dbEventID int64) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(payloadJSON, &m); err != nil {
		return "", fmt.Errorf("unmarshal payload for db_event_id injection: %w", err)
	}
	m["db_event_id"] = dbEventID

	enriched, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshal enriched NOTIFY payload: %w", err)
	}
	return truncateIfNeeded(string(enriched))
}

// truncateIfNeeded returns the payload as-is if it fits PostgreSQL's
// 8000-byte NOTIFY limit, otherwise a minimal routing envelope.
func truncateIfNeeded(payloadStr string) (string, error) {
	if len(payloadStr) <= 7900 {
		return payloadStr, nil
	}
	return buildTruncatedPayload([]byte(payloadStr))
}

func buildTruncatedPayload(payloadBytes []byte) (string, error) {
	var routing struct {
		Type      string `json:"type"`
		SessionID string `json:"session_id"`
		StepID    string `json:"step_id,omitempty"`
		DBEventID *int64 `json:"db_event_id,omitempty"`
	}
	if err := json.Unmarshal(payloadBytes, &routing); err != nil {
		return "", fmt.Errorf("extract routing fields for truncation: %w", err)
	}

	truncated := map[string]any{
		"type":       routing.Type,
		"session_id": routing.SessionID,
		"truncated":  true,
	}
	if routing.StepID != "" {
		truncated["step_id"] = routing.StepID
	}
	if routing.DBEventID != nil {
		truncated["db_event_id"] = *routing.DBEventID
	}

	truncBytes, err := json.Marshal(truncated)
	if err != nil {
		return "", fmt.Errorf("marshal truncated payload: %w", err)
	}
	return string(truncBytes), nil
}
