// Package api provides the session management HTTP API.
package api

import (
	"github.com/labstack/echo/v4"

	"github.com/TDNM88/hubchat/session"
)

// Handler handles session API requests.
type Handler struct {
	sessions *session.Manager
}

// NewHandler creates a new session API handler.
func NewHandler(sessions *session.Manager) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes registers session API routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.POST("/v1/sessions/:session_id/select", h.SelectSession)
	e.PATCH("/v1/sessions/:session_id/config", h.UpdateSessionConfig)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)
}
