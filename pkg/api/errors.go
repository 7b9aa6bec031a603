package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dataloom/analystrt/pkg/apperrors"
)

// writeError maps a store/dispatcher error to an HTTP status and writes a
// JSON error body. Unrecognized errors are logged and surfaced as a generic
// 500 so internal details never reach the client.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, apperrors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": "resource already exists"})
	case errors.Is(err, apperrors.ErrSessionBusy):
		c.JSON(http.StatusConflict, gin.H{"error": "session has a turn already in flight"})
	case errors.Is(err, apperrors.ErrTimedOut):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		slog.Error("unexpected api error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
