package dispatcher

import (
	"context"

	"github.com/dataloom/analystrt/pkg/models"
)

// Store is the subset of the persistence binding (C9) the dispatcher needs
// to ensure a session exists, load its prior turns, and durably record the
// one it just ran. The dispatcher never touches SQL directly.
type Store interface {
	// EnsureSession returns the session identified by sessionID, or creates a
	// fresh one owned by userID if sessionID is empty or unknown.
	EnsureSession(ctx context.Context, userID, sessionID string) (models.Session, error)

	// LoadHistory returns up to limit of the most recent messages for
	// sessionID, oldest first.
	LoadHistory(ctx context.Context, sessionID string, limit int) ([]models.HistoryTurn, error)

	// LoadSnapshot returns the session's last encoded ContextState, or nil if
	// the session has never completed a turn.
	LoadSnapshot(ctx context.Context, sessionID string) ([]byte, error)

	// PersistTurn durably records one completed turn: the user message, the
	// assistant's reply, its step log (empty for the simple/medium tiers),
	// and the re-encoded context snapshot. Implementations must do this
	// atomically — a turn is never half-persisted.
	PersistTurn(ctx context.Context, req PersistTurnRequest) error
}

// PersistTurnRequest is one turn's durable record.
type PersistTurnRequest struct {
	SessionID        string
	UserMessage      string
	AssistantMessage string
	Steps            []models.CreateAgentStepRequest
	Snapshot         []byte
}
