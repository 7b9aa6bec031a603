package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dataloom/analystrt/pkg/dispatcher"
	"github.com/dataloom/analystrt/pkg/models"
)

// chatHandler handles POST /api/v1/chat. It starts a turn and returns as
// soon as the session is resolved (its first event, always EventConnected),
// without waiting for the turn to finish. The turn's remaining events are
// drained in the background and published for delivery over the session's
// WebSocket channel; the caller subscribes there to watch it run.
func (s *Server) chatHandler(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	userID := extractUserID(c)

	// The dispatched turn runs on a goroutine that outlives this handler, so
	// it must not inherit the request's context — that's cancelled the
	// moment the response is written, which would abort the turn before it
	// does any real work.
	runCtx := context.WithoutCancel(c.Request.Context())

	events, err := s.dispatcher.Dispatch(runCtx, userID, req)
	if err != nil {
		writeError(c, err)
		return
	}

	first, ok := <-events
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch produced no events"})
		return
	}
	if first.Type == dispatcher.EventError {
		writeError(c, first.Err)
		return
	}

	go s.publishTurn(runCtx, first, events)

	c.JSON(http.StatusAccepted, ChatResponse{SessionID: first.SessionID, Status: "accepted"})
}

// publishTurn drains a dispatched turn's event channel and publishes every
// event for delivery to subscribed WebSocket clients, persisting the
// persistent kinds along the way.
func (s *Server) publishTurn(ctx context.Context, first dispatcher.Event, events <-chan dispatcher.Event) {
	if err := s.publisher.Publish(ctx, first); err != nil {
		slog.Error("chat: publish connected event failed", "session_id", first.SessionID, "error", err)
	}
	for evt := range events {
		if err := s.publisher.Publish(ctx, evt); err != nil {
			slog.Error("chat: publish event failed", "session_id", evt.SessionID, "type", evt.Type, "error", err)
		}
	}
}
