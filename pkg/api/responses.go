package api

import (
	"time"

	"github.com/dataloom/analystrt/pkg/database"
	"github.com/dataloom/analystrt/pkg/models"
)

const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"
)

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version,omitempty"`
	Database *database.HealthStatus `json:"database,omitempty"`
}

// ChatResponse is returned by POST /api/v1/chat. The turn keeps running
// after this response is sent; its events arrive over the session's
// WebSocket channel.
type ChatResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
}

// SessionResponse is the HTTP projection of models.Session.
type SessionResponse struct {
	ID                string     `json:"id"`
	UserID            string     `json:"user_id"`
	Status            string     `json:"status"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
}

func toSessionResponse(s models.Session) SessionResponse {
	return SessionResponse{
		ID: s.ID, UserID: s.UserID, Status: string(s.Status),
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt, LastInteractionAt: s.LastInteractionAt,
	}
}

func toSessionResponses(sessions []models.Session) []SessionResponse {
	out := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = toSessionResponse(s)
	}
	return out
}

// SessionDetailResponse is returned by GET /api/v1/sessions/:id: the session
// plus its full message history.
type SessionDetailResponse struct {
	SessionResponse
	History []models.HistoryTurn `json:"history"`
}

// ListSessionsResponse is returned by GET /api/v1/sessions and
// GET /api/v1/sessions/search.
type ListSessionsResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}
