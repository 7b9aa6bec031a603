package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetSessionHandler_MissingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/", nil)
	// No ":id" param set, mirroring a request that reached the handler
	// without one bound.

	s.getSessionHandler(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "session id is required")
}

func TestSearchSessionsHandler_RequiresQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := &Server{}

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/sessions/search", nil)

	s.searchSessionsHandler(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
