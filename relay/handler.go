package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/TDNM88/hubchat/config"
	"github.com/TDNM88/hubchat/domain"
	"github.com/TDNM88/hubchat/policy"
	"github.com/TDNM88/hubchat/session"
)

// userFacingError is the localized message shown to the end user when a
// generation request fails. Technical detail travels in the details field.
const userFacingError = "Không thể tạo phản hồi"

// ChatRequest is the inbound chat request. Generation parameters are
// optional and fall back to the configured defaults.
type ChatRequest struct {
	SessionID   string        `json:"session_id,omitempty"`
	Messages    []ChatMessage `json:"messages"`
	Model       string        `json:"model,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"maxTokens,omitempty"`
	Stream      *bool         `json:"stream,omitempty"`
}

// Handler handles chat relay HTTP requests.
type Handler struct {
	client   *Client
	sessions *session.Manager
	policy   *policy.Engine
	notifier session.Notifier
	config   *config.Config
}

// NewHandler creates a new relay handler.
func NewHandler(cfg *config.Config, sessions *session.Manager, engine *policy.Engine, notifier session.Notifier) *Handler {
	client := NewClient(cfg.GroqURL, cfg.GroqAPIKey, cfg.LLMTimeout)
	return &Handler{
		client:   client,
		sessions: sessions,
		policy:   engine,
		notifier: notifier,
		config:   cfg,
	}
}

// RegisterRoutes registers relay routes.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/chat", h.Chat)
	e.GET("/v1/models", h.ListModels)
}

// Chat handles chat requests.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   userFacingError,
			Details: "invalid request body",
		})
	}

	if details, ok := validate(&req); !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   userFacingError,
			Details: details,
		})
	}

	// Apply defaults
	model := req.Model
	if model == "" {
		model = h.config.DefaultModel
	}
	temperature := h.config.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := h.config.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	if h.policy != nil {
		decision, err := h.policy.Evaluate(ctx, map[string]interface{}{"model": model})
		if err != nil {
			log.Printf("ERROR: policy evaluation failed: %v", err)
			return c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   userFacingError,
				Details: "policy evaluation failed",
			})
		}
		if decision != policy.DecisionAllow {
			return c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   userFacingError,
				Details: "model not allowed: " + model,
			})
		}
	}

	// A known session gets transcript recording and the in-flight guard.
	// Absent or unknown session ids are relayed statelessly.
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.Request().Header.Get("x-session-id")
	}
	if sessionID != "" && h.sessions != nil {
		if _, err := h.sessions.Get(sessionID); errors.Is(err, session.ErrSessionNotFound) {
			sessionID = ""
		}
	} else {
		sessionID = ""
	}

	if sessionID != "" {
		streamCtx, release, err := h.sessions.BeginStream(ctx, sessionID)
		if errors.Is(err, session.ErrStreamInFlight) {
			return c.JSON(http.StatusConflict, ErrorResponse{
				Error:   userFacingError,
				Details: err.Error(),
			})
		}
		if err != nil {
			// Session disappeared between the lookup and the guard.
			sessionID = ""
		} else {
			ctx = streamCtx
			defer release()

			if last := req.Messages[len(req.Messages)-1]; last.Role == string(domain.RoleUser) {
				if _, err := h.sessions.AppendMessage(ctx, sessionID, domain.RoleUser, last.Content, false); err != nil {
					log.Printf("WARN: failed to record user message: %v", err)
				}
			}
		}
	}

	upstream := &ChatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	if req.Stream != nil && !*req.Stream {
		return h.handleAggregated(c, ctx, upstream, sessionID)
	}

	return h.handleStreaming(c, ctx, upstream, sessionID)
}

// handleAggregated forwards a non-streaming request and returns the
// upstream completion as JSON.
func (h *Handler) handleAggregated(c echo.Context, ctx context.Context, upstream *ChatCompletionRequest, sessionID string) error {
	resp, err := h.client.CreateChatCompletion(ctx, upstream)
	if err != nil {
		log.Printf("ERROR: LLM request failed: %v", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   userFacingError,
			Details: err.Error(),
		})
	}

	if sessionID != "" && len(resp.Choices) > 0 && resp.Choices[0].Message != nil {
		if _, err := h.sessions.AppendMessage(ctx, sessionID, domain.RoleAssistant, resp.Choices[0].Message.Content, false); err != nil {
			log.Printf("WARN: failed to record assistant message: %v", err)
		}
	}

	return c.JSON(http.StatusOK, resp)
}

// handleStreaming relays the upstream SSE byte stream to the caller
// verbatim, flushing per chunk so partial output reaches the caller
// before generation completes.
func (h *Handler) handleStreaming(c echo.Context, ctx context.Context, upstream *ChatCompletionRequest, sessionID string) error {
	body, err := h.client.StreamChatCompletion(ctx, upstream)
	if err != nil {
		log.Printf("ERROR: LLM streaming request failed: %v", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   userFacingError,
			Details: err.Error(),
		})
	}
	defer body.Close()

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return errors.New("streaming not supported by response writer")
	}

	acc := &accumulator{}
	buf := make([]byte, 4096)
	var readErr, writeErr error

	for {
		n, err := body.Read(buf)
		if n > 0 {
			deltas := acc.Feed(buf[:n])
			if _, werr := c.Response().Writer.Write(buf[:n]); werr != nil {
				writeErr = werr
				break
			}
			flusher.Flush()
			for _, delta := range deltas {
				h.broadcast(sessionID, domain.Event{
					Type:      domain.EventTypeStreamDelta,
					Ts:        time.Now().UnixMilli(),
					SessionID: sessionID,
					Text:      delta,
				})
			}
		}
		if err != nil {
			if err != io.EOF {
				readErr = err
			}
			break
		}
	}

	switch {
	case writeErr != nil:
		// Caller went away; stop relaying and keep what arrived.
		log.Printf("WARN: caller disconnected mid-stream: %v", writeErr)
		h.recordAssistant(sessionID, acc.Content(), true)
		h.broadcast(sessionID, domain.Event{
			Type:      domain.EventTypeStreamError,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
			Error:     "caller disconnected",
		})

	case readErr != nil || !acc.Done():
		// Upstream dropped the connection mid-generation. The response
		// has already started, so the failure is a terminal event on the
		// stream, not a separate error response.
		details := "upstream stream interrupted"
		if readErr != nil {
			details = readErr.Error()
			log.Printf("ERROR: upstream stream interrupted: %v", readErr)
		}
		fmt.Fprintf(c.Response().Writer, "event: error\ndata: {\"error\":%q,\"details\":%q}\n\n", userFacingError, details)
		flusher.Flush()

		h.recordAssistant(sessionID, acc.Content(), true)
		h.broadcast(sessionID, domain.Event{
			Type:      domain.EventTypeStreamError,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
			Error:     details,
		})

	default:
		h.recordAssistant(sessionID, acc.Content(), false)
		h.broadcast(sessionID, domain.Event{
			Type:      domain.EventTypeStreamDone,
			Ts:        time.Now().UnixMilli(),
			SessionID: sessionID,
			Text:      acc.Content(),
		})
	}

	return nil
}

// recordAssistant appends the accumulated assistant text to the session
// transcript. Content already received stays in the transcript even when
// the stream was cut off.
func (h *Handler) recordAssistant(sessionID, content string, truncated bool) {
	if sessionID == "" || content == "" {
		return
	}
	// The stream context may already be cancelled (session deleted
	// mid-stream); recording then fails with session not found, which is
	// the intended outcome.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := h.sessions.AppendMessage(ctx, sessionID, domain.RoleAssistant, content, truncated); err != nil {
		if !errors.Is(err, session.ErrSessionNotFound) {
			log.Printf("WARN: failed to record assistant message: %v", err)
		}
	}
}

// ListModels handles the model catalog passthrough.
// GET /v1/models
func (h *Handler) ListModels(c echo.Context) error {
	ctx := c.Request().Context()

	models, err := h.client.ListModels(ctx)
	if err != nil {
		log.Printf("ERROR: failed to list models: %v", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{
			Error:   userFacingError,
			Details: err.Error(),
		})
	}

	return c.JSON(http.StatusOK, ModelsResponse{
		Object: "list",
		Data:   models,
	})
}

// validate checks the request shape and parameter ranges.
func validate(req *ChatRequest) (string, bool) {
	if len(req.Messages) == 0 {
		return "messages is required", false
	}
	for i, msg := range req.Messages {
		if !domain.ValidRole(domain.Role(msg.Role)) {
			return fmt.Sprintf("messages[%d]: unknown role %q", i, msg.Role), false
		}
	}
	if req.Temperature != nil && (*req.Temperature < domain.MinTemperature || *req.Temperature > domain.MaxTemperature) {
		return fmt.Sprintf("temperature must be between %v and %v", domain.MinTemperature, domain.MaxTemperature), false
	}
	if req.MaxTokens != nil && (*req.MaxTokens < domain.MinMaxTokens || *req.MaxTokens > domain.MaxMaxTokens) {
		return fmt.Sprintf("maxTokens must be between %d and %d", domain.MinMaxTokens, domain.MaxMaxTokens), false
	}
	return "", true
}

func (h *Handler) broadcast(sessionID string, event domain.Event) {
	if h.notifier == nil || sessionID == "" {
		return
	}
	if err := h.notifier.BroadcastJSON(sessionID, event); err != nil {
		log.Printf("WARN: failed to broadcast %s event: %v", event.Type, err)
	}
}
