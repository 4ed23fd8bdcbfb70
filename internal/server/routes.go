package server

import (
	"github.com/labstack/echo/v4"

	"github.com/nishchay-veer/canvas-app/internal/metrics"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.promReg)))
	s.echo.GET("/version", s.handleVersion)

	// Auth routes
	s.echo.POST("/api/auth/signup", s.handleSignup)
	s.echo.POST("/api/auth/signin", s.handleSignin)

	// Room API (authenticated)
	api := s.echo.Group("/api", s.requireAuth)
	api.POST("/rooms", s.handleCreateRoom)
	api.GET("/rooms/:slug", s.handleGetRoom)
	api.GET("/rooms/:slug/shapes", s.handleListShapes)
	api.GET("/rooms/:slug/chats", s.handleListChats)
	api.DELETE("/rooms/:slug/shapes", s.handleClearShapes)

	// Websocket endpoint. Auth happens after the upgrade so protocol
	// clients get a proper close code instead of a failed handshake.
	s.echo.GET("/ws", s.handleWebSocket)
}
