package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dataloom/analystrt/pkg/apperrors"
	"github.com/dataloom/analystrt/pkg/models"
)

// listSessionsHandler handles GET /api/v1/sessions.
func (s *Server) listSessionsHandler(c *gin.Context) {
	var q listSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessions, err := s.store.ListSessions(c.Request.Context(), models.SessionFilters{
		UserID: q.UserID,
		Status: models.SessionStatus(q.Status),
		Limit:  q.Limit,
		Offset: q.Offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListSessionsResponse{Sessions: toSessionResponses(sessions)})
}

// searchSessionsHandler handles GET /api/v1/sessions/search?q=...
// Full-text search over the content of every message, user and assistant
// (to_tsvector/plainto_tsquery).
func (s *Server) searchSessionsHandler(c *gin.Context) {
	var q searchSessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}

	sessions, err := s.store.SearchSessions(c.Request.Context(), q.Q, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, ListSessionsResponse{Sessions: toSessionResponses(sessions)})
}

// getSessionHandler handles GET /api/v1/sessions/:id.
func (s *Server) getSessionHandler(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session id is required"})
		return
	}

	sess, err := s.store.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, err)
		return
	}

	history, err := s.store.LoadHistory(c.Request.Context(), sessionID, 0)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, SessionDetailResponse{
		SessionResponse: toSessionResponse(sess),
		History:         history,
	})
}
