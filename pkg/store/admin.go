package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/models"
)

// GetSession retrieves a session by id without claiming it.
func (s *Store) GetSession(ctx context.Context, sessionID string) (models.Session, error) {
	const q = `
		SELECT id, user_id, status, snapshot, created_at, updated_at, last_interaction_at, pod_id
		FROM sessions WHERE id = $1 AND deleted_at IS NULL`
	row := s.pool.QueryRow(ctx, q, sessionID)
	return scanSession(row)
}

// ListSessions lists sessions matching filters, newest first.
func (s *Store) ListSessions(ctx context.Context, filters models.SessionFilters) ([]models.Session, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	const q = `
		SELECT id, user_id, status, snapshot, created_at, updated_at, last_interaction_at, pod_id
		FROM sessions
		WHERE deleted_at IS NULL
			AND ($1 = '' OR user_id = $1)
			AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`

	rows, err := s.pool.Query(ctx, q, filters.UserID, string(filters.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// SearchSessions performs full-text search over a session's message content.
func (s *Store) SearchSessions(ctx context.Context, query string, limit int) ([]models.Session, error) {
	if limit <= 0 {
		limit = 20
	}

	const q = `
		SELECT DISTINCT s.id, s.user_id, s.status, s.snapshot, s.created_at, s.updated_at, s.last_interaction_at, s.pod_id
		FROM sessions s
		JOIN messages m ON m.session_id = s.id
		WHERE s.deleted_at IS NULL
			AND to_tsvector('english', m.content) @@ plainto_tsquery('english', $1)
		ORDER BY s.created_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, q, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

func scanSessions(rows pgx.Rows) ([]models.Session, error) {
	var out []models.Session
	for rows.Next() {
		var sess models.Session
		var snapshot []byte
		if err := rows.Scan(
			&sess.ID, &sess.UserID, &sess.Status, &snapshot,
			&sess.CreatedAt, &sess.UpdatedAt, &sess.LastInteractionAt, &sess.PodID,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sess.Snapshot = snapshot
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return out, nil
}

// UpdateSessionStatus sets a session's status directly, bypassing the
// claim/release cycle — used to mark a session cancelled or timed out from
// outside the normal turn lifecycle.
func (s *Store) UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus) error {
	now := time.Now().UTC()
	const q = `
		UPDATE sessions SET status = $2, updated_at = $3, last_interaction_at = $3
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := s.pool.Exec(ctx, q, sessionID, status, now)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// FindOrphanedSessions returns sessions stuck in_progress past timeoutDuration
// — a pod died or lost its connection mid-turn without releasing its claim.
func (s *Store) FindOrphanedSessions(ctx context.Context, timeoutDuration time.Duration) ([]models.Session, error) {
	threshold := time.Now().UTC().Add(-timeoutDuration)
	const q = `
		SELECT id, user_id, status, snapshot, created_at, updated_at, last_interaction_at, pod_id
		FROM sessions
		WHERE status = 'in_progress'
			AND last_interaction_at IS NOT NULL
			AND last_interaction_at < $1`

	rows, err := s.pool.Query(ctx, q, threshold)
	if err != nil {
		return nil, fmt.Errorf("find orphaned sessions: %w", err)
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ReclaimOrphan marks an orphaned session timed_out and releases its claim,
// so the next request against it starts a fresh turn rather than returning
// SessionBusy forever.
func (s *Store) ReclaimOrphan(ctx context.Context, sessionID string) error {
	const q = `
		UPDATE sessions SET status = 'timed_out', pod_id = '', updated_at = $2
		WHERE id = $1 AND status = 'in_progress'`
	tag, err := s.pool.Exec(ctx, q, sessionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reclaim orphaned session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// SoftDeleteOldSessions soft-deletes sessions whose last interaction is
// older than retentionDays, returning the count affected.
func (s *Store) SoftDeleteOldSessions(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, errors.New("retention_days must be positive")
	}
	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	const q = `
		UPDATE sessions SET deleted_at = $2
		WHERE deleted_at IS NULL
			AND COALESCE(last_interaction_at, created_at) < $1`
	tag, err := s.pool.Exec(ctx, q, cutoff, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("soft delete old sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteOldEvents deletes rows from the events table older than ttl —
// a safety net for the reconnect-catchup projection, since per-session
// cleanup (cascading on session deletion) handles the normal case.
func (s *Store) DeleteOldEvents(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, errors.New("ttl must be positive")
	}
	cutoff := time.Now().UTC().Add(-ttl)

	const q = `DELETE FROM events WHERE created_at < $1`
	tag, err := s.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
