package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// upgrader accepts WebSocket upgrades from any origin. Access to the runtime
// sits behind the same oauth2-proxy boundary as every other endpoint here, so
// origin checking is left to that layer rather than duplicated in-process.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsHandler handles GET /api/v1/ws. It upgrades the connection and hands it
// to the ConnectionManager, which owns its lifecycle from here on.
func (s *Server) wsHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	s.connManager.HandleConnection(c.Request.Context(), conn)
}
