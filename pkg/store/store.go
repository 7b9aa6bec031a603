// Package store implements the persistence binding (C9): the single seam
// through which the dispatcher, the streaming transport, and the cleanup
// sweep read and write session, message and step state, over a shared
// *pgxpool.Pool. The ledger (pkg/ledger) and the event publisher
// (pkg/events) write their own tables over pools handed to them, the NOTIFY
// listener holds a dedicated pgx.Conn, and pkg/relstore queries the dataset
// pool.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/dispatcher"
	"github.com/dataloom/analystrt/pkg/events"
	"github.com/dataloom/analystrt/pkg/models"
)

// Store is the persistence binding. It implements dispatcher.Store (turn
// lifecycle) and events.CatchupQuerier (missed-event replay), plus the
// session-administration queries the cleanup sweep and the HTTP API need.
type Store struct {
	pool  *pgxpool.Pool
	podID string
}

// New constructs a Store backed by pool. podID identifies this process for
// orphan detection — EnsureSession stamps it onto every session it claims so
// a later sweep can tell which replica was holding a turn when it stalled.
func New(pool *pgxpool.Pool, podID string) *Store {
	return &Store{pool: pool, podID: podID}
}

var _ dispatcher.Store = (*Store)(nil)
var _ events.CatchupQuerier = (*Store)(nil)

// EnsureSession returns the session identified by sessionID, creating one
// owned by userID if sessionID is empty or unknown. Either way the returned
// session is claimed for this turn: status becomes in_progress, pod_id is
// stamped with this process's identity, and last_interaction_at is bumped —
// PersistTurn releases the claim back to pending once the turn completes.
func (s *Store) EnsureSession(ctx context.Context, userID, sessionID string) (models.Session, error) {
	if sessionID != "" {
		sess, err := s.claimExisting(ctx, sessionID)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, apperrors.ErrNotFound) {
			return models.Session{}, err
		}
		// Unknown id: fall through and mint a fresh session below.
	}
	return s.create(ctx, userID)
}

// claimExisting atomically claims sessionID for this turn, refusing the
// claim with ErrSessionBusy if another turn is already in flight on it
// (Open Question 1: concurrent turns on one session are rejected, not
// queued or merged).
func (s *Store) claimExisting(ctx context.Context, sessionID string) (models.Session, error) {
	const q = `
		UPDATE sessions SET
			status = 'in_progress',
			pod_id = $2,
			last_interaction_at = $3,
			updated_at = $3
		WHERE id = $1 AND status <> 'in_progress' AND deleted_at IS NULL
		RETURNING id, user_id, status, snapshot, created_at, updated_at, last_interaction_at, pod_id`

	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, q, sessionID, s.podID, now)
	sess, err := scanSession(row)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return models.Session{}, err
	}

	// The UPDATE matched no row — either the id doesn't exist, or it exists
	// but is currently claimed by an in-flight turn. Distinguish the two so
	// the caller can tell "start a fresh session" from "try again later".
	existing, getErr := s.GetSession(ctx, sessionID)
	if getErr != nil {
		return models.Session{}, getErr
	}
	if existing.Status == models.SessionStatusInProgress {
		return models.Session{}, apperrors.ErrSessionBusy
	}
	return models.Session{}, apperrors.ErrNotFound
}

func (s *Store) create(ctx context.Context, userID string) (models.Session, error) {
	const q = `
		INSERT INTO sessions (id, user_id, status, pod_id, created_at, updated_at, last_interaction_at)
		VALUES ($1, $2, 'in_progress', $3, $4, $4, $4)
		RETURNING id, user_id, status, snapshot, created_at, updated_at, last_interaction_at, pod_id`

	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, q, uuid.New().String(), userID, s.podID, now)
	sess, err := scanSession(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return models.Session{}, apperrors.ErrAlreadyExists
		}
		return models.Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func scanSession(row pgx.Row) (models.Session, error) {
	var sess models.Session
	var snapshot []byte
	if err := row.Scan(
		&sess.ID, &sess.UserID, &sess.Status, &snapshot,
		&sess.CreatedAt, &sess.UpdatedAt, &sess.LastInteractionAt, &sess.PodID,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, apperrors.ErrNotFound
		}
		return models.Session{}, fmt.Errorf("scan session: %w", err)
	}
	sess.Snapshot = snapshot
	return sess, nil
}

// LoadHistory returns up to limit of the most recent messages for
// sessionID, oldest first. A limit of 0 or less means unbounded.
func (s *Store) LoadHistory(ctx context.Context, sessionID string, limit int) ([]models.HistoryTurn, error) {
	const q = `
		SELECT role, content FROM (
			SELECT role, content, created_at FROM messages
			WHERE session_id = $1
			ORDER BY created_at DESC
			LIMIT NULLIF($2, 0)
		) recent ORDER BY created_at ASC`

	if limit < 0 {
		limit = 0
	}

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	var turns []models.HistoryTurn
	for rows.Next() {
		var turn models.HistoryTurn
		if err := rows.Scan(&turn.Role, &turn.Content); err != nil {
			return nil, fmt.Errorf("scan history turn: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return turns, nil
}

// LoadSnapshot returns the session's last encoded ContextState, or nil if
// the session has never completed a turn.
func (s *Store) LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error) {
	var snapshot []byte
	err := s.pool.QueryRow(ctx, `SELECT snapshot FROM sessions WHERE id = $1`, sessionID).Scan(&snapshot)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	return snapshot, nil
}

// PersistTurn durably records one completed turn in a single transaction:
// the user message (if not already persisted), the assistant's reply, its
// step log, and the re-encoded context snapshot. A failure here leaves any
// ledger rows already written as a forensic record and never partially
// commits the turn — callers see either the full write or none of it.
func (s *Store) PersistTurn(ctx context.Context, req dispatcher.PersistTurnRequest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin persist turn: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	parentID, err := lastMessageID(ctx, tx, req.SessionID)
	if err != nil {
		return err
	}

	if req.UserMessage != "" {
		userMsgID := uuid.New().String()
		if err := insertMessage(ctx, tx, userMsgID, req.SessionID, models.RoleUser, req.UserMessage, parentID, now); err != nil {
			return err
		}
		parentID = &userMsgID
	}

	assistantMsgID := uuid.New().String()
	if err := insertMessage(ctx, tx, assistantMsgID, req.SessionID, models.RoleAssistant, req.AssistantMessage, parentID, now); err != nil {
		return err
	}

	for order, step := range req.Steps {
		if err := insertStep(ctx, tx, assistantMsgID, order, step, now); err != nil {
			return err
		}
	}

	const updateSession = `
		UPDATE sessions SET
			status = 'pending',
			snapshot = $2,
			pod_id = '',
			updated_at = $3,
			last_interaction_at = $3
		WHERE id = $1`
	if _, err := tx.Exec(ctx, updateSession, req.SessionID, req.Snapshot, now); err != nil {
		return fmt.Errorf("update session snapshot: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit persist turn: %w", err)
	}
	return nil
}

func lastMessageID(ctx context.Context, tx pgx.Tx, sessionID string) (*string, error) {
	var id string
	err := tx.QueryRow(ctx,
		`SELECT id FROM messages WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`,
		sessionID,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find last message: %w", err)
	}
	return &id, nil
}

func insertMessage(ctx context.Context, tx pgx.Tx, id, sessionID string, role models.MessageRole, content string, parentID *string, at time.Time) error {
	const q = `
		INSERT INTO messages (id, session_id, role, content, parent_message_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, q, id, sessionID, role, content, parentID, at); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func insertStep(ctx context.Context, tx pgx.Tx, messageID string, order int, req models.CreateAgentStepRequest, at time.Time) error {
	toolCallJSON, err := jsonOrNil(req.ToolCall)
	if err != nil {
		return fmt.Errorf("marshal tool call: %w", err)
	}

	const q = `
		INSERT INTO agent_steps (id, message_id, step_order, agent_name, tool_call, prediction, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, q, uuid.New().String(), messageID, order, req.AgentName, toolCallJSON, req.Prediction, at); err != nil {
		return fmt.Errorf("insert agent step: %w", err)
	}
	return nil
}

func jsonOrNil(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// GetCatchupEvents implements events.CatchupQuerier: it returns every
// persisted event on channel with id greater than sinceID, oldest first,
// capped at limit rows.
func (s *Store) GetCatchupEvents(ctx context.Context, channel string, sinceID, limit int) ([]events.CatchupEvent, error) {
	const q = `
		SELECT id, payload FROM events
		WHERE channel = $1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`

	rows, err := s.pool.Query(ctx, q, channel, sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query catchup events: %w", err)
	}
	defer rows.Close()

	var out []events.CatchupEvent
	for rows.Next() {
		var evt events.CatchupEvent
		if err := rows.Scan(&evt.ID, &evt.Payload); err != nil {
			return nil, fmt.Errorf("scan catchup event: %w", err)
		}
		out = append(out, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query catchup events: %w", err)
	}
	return out, nil
}
