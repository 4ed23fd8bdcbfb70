package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nishchay-veer/canvas-app/internal/domain"
	"github.com/nishchay-veer/canvas-app/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// handleWebSocket upgrades the connection, then authenticates the token
// query parameter. Failures are reported over the socket itself with a
// policy-violation close (1008), so clients can tell a bad credential from
// a network fault and skip the reconnect schedule.
func (s *Server) handleWebSocket(c echo.Context) error {
	token := c.QueryParam("token")

	wsConn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	identity, err := s.verifier.Verify(token)
	if err != nil {
		s.rejectConn(wsConn, "authentication failed")
		return nil
	}

	conn := ws.NewConn(wsConn, identity.UserID, identity.Username, ws.Options{
		WriteTimeout:   s.config.WriteTimeout,
		PongTimeout:    s.config.PongTimeout,
		MaxMessageSize: s.config.MaxMessageSize,
		SendBuffer:     s.config.SendBufferSize,
	})

	session := ws.NewSession(conn, domain.UserSummary{
		ID:       identity.UserID,
		Username: identity.Username,
	}, ws.SessionDeps{
		Registry:    s.registry,
		Broadcaster: s.broadcaster,
		Shapes:      s.repos.Shapes,
		Chats:       s.repos.Chats,
		Metrics:     s.wsMetrics,
	})

	// Blocks until the connection closes.
	_ = session.Run(c.Request().Context())
	return nil
}

func (s *Server) rejectConn(wsConn *websocket.Conn, reason string) {
	data, err := json.Marshal(domain.NewErrorMessage(reason))
	if err == nil {
		_ = wsConn.WriteMessage(websocket.TextMessage, data)
	}
	closeMsg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = wsConn.WriteMessage(websocket.CloseMessage, closeMsg)
	_ = wsConn.Close()
}
