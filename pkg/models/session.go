// Package models contains request/response models and business domain
// types shared across the runtime's packages.
package models

import "time"

// SessionStatus is the lifecycle status of a Session.
type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "pending"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
	SessionStatusFailed     SessionStatus = "failed"
	SessionStatusCancelled  SessionStatus = "cancelled"
	SessionStatusTimedOut   SessionStatus = "timed_out"
)

// Session is a stable per-user conversation identified by ID, carrying an
// opaque, size-bounded snapshot of its ContextState between turns.
type Session struct {
	ID        string
	UserID    string
	Status    SessionStatus
	Snapshot  []byte // canonical encoding of convctx.ContextState, nil until first turn completes
	CreatedAt time.Time
	UpdatedAt time.Time

	// LastInteractionAt is bumped on every claim/turn; used for orphan detection.
	LastInteractionAt *time.Time
	PodID             string // set while a turn is in flight, for multi-replica orphan detection
}

// CreateSessionRequest creates a new session owned by a user.
type CreateSessionRequest struct {
	UserID string
}

// SessionFilters filters ListSessions.
type SessionFilters struct {
	UserID    string
	Status    SessionStatus
	Limit     int
	Offset    int
	SearchQry string // not applied by Store.ListSessions; full-text search is Store.SearchSessions
}
