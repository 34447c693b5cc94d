package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/TDNM88/hubchat/domain"
	"github.com/TDNM88/hubchat/session"
)

// CreateSession creates a new session and makes it active.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	created, err := h.sessions.CreateSession(ctx)
	if err != nil {
		log.Printf("ERROR: failed to create session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	return c.JSON(http.StatusCreated, created)
}

// ListSessions returns all sessions in insertion order plus the active id.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions":          h.sessions.Sessions(),
		"active_session_id": h.sessions.ActiveID(),
	})
}

// SelectSession makes the given session active.
// POST /v1/sessions/:session_id/select
func (h *Handler) SelectSession(c echo.Context) error {
	sessionID := c.Param("session_id")

	if err := h.sessions.SelectSession(sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to select session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to select session"})
	}

	return c.JSON(http.StatusOK, map[string]string{"active_session_id": sessionID})
}

// UpdateSessionConfig merges a partial config into the session.
// PATCH /v1/sessions/:session_id/config
func (h *Handler) UpdateSessionConfig(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var patch domain.ConfigPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	updated, err := h.sessions.UpdateConfig(ctx, sessionID, patch)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrSessionNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		case errors.Is(err, session.ErrInvalidConfig):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: failed to update session config: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update session config"})
		}
	}

	return c.JSON(http.StatusOK, updated)
}

// DeleteSession removes a session and its transcript.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.sessions.DeleteSession(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to delete session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
	}

	return c.NoContent(http.StatusNoContent)
}

// GetSessionMessages returns transcript messages for a session.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 {
		limit = 50
	}
	before := c.QueryParam("before")

	messages, err := h.sessions.Messages(ctx, sessionID, limit+1, before)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to get messages: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get messages"})
	}

	hasMore := len(messages) > limit
	if hasMore {
		messages = messages[:limit]
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
		"has_more": hasMore,
	})
}
