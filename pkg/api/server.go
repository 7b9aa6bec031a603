// Package api provides the HTTP boundary for the orchestration runtime: the
// chat endpoint that kicks off a turn, session administration endpoints, and
// the WebSocket upgrade that hands a connection to the streaming transport.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dataloom/analystrt/pkg/database"
	"github.com/dataloom/analystrt/pkg/dispatcher"
	"github.com/dataloom/analystrt/pkg/events"
	"github.com/dataloom/analystrt/pkg/store"
	"github.com/dataloom/analystrt/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	dbClient    *database.Client
	store       *store.Store
	dispatcher  *dispatcher.Dispatcher
	publisher   *events.EventPublisher
	connManager *events.ConnectionManager
}

// NewServer creates a new API server and registers its routes.
func NewServer(
	dbClient *database.Client,
	st *store.Store,
	disp *dispatcher.Dispatcher,
	publisher *events.EventPublisher,
	connManager *events.ConnectionManager,
) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		engine:      engine,
		dbClient:    dbClient,
		store:       st,
		dispatcher:  disp,
		publisher:   publisher,
		connManager: connManager,
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every HTTP route the runtime exposes.
func (s *Server) setupRoutes() {
	s.engine.Use(securityHeaders())
	// Body size cap, well above a reasonable chat message but rejecting
	// multi-MB payloads at the HTTP read level before deserialization.
	s.engine.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*1024*1024)
		c.Next()
	})

	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/chat", s.chatHandler)

	v1.GET("/sessions", s.listSessionsHandler)
	v1.GET("/sessions/search", s.searchSessionsHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)

	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on the given address (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener. Used
// by test infrastructure to serve on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	dbHealth, err := database.Health(reqCtx, s.dbClient.Pool)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{
			Status:   healthStatusUnhealthy,
			Database: dbHealth,
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:   healthStatusHealthy,
		Version:  version.Full(),
		Database: dbHealth,
	})
}
