package hub

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

// Client protocol message types.
const (
	TypeHello    = "hello"
	TypeHelloAck = "hello_ack"
	TypeError    = "error"
)

// BaseMessage is the envelope for client protocol messages.
type BaseMessage struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloMessage binds the connection to a session.
type HelloMessage struct {
	BaseMessage
}

// ErrorMessage reports a protocol error to the client.
type ErrorMessage struct {
	BaseMessage
	Message string `json:"message"`
}

// Server handles WebSocket subscriber connections.
type Server struct {
	hub           *Hub
	upgrader      websocket.Upgrader
	readTimeout   time.Duration
	writeTimeout  time.Duration
	pingInterval  time.Duration
	maxMessageLen int64
}

// NewServer creates a new WebSocket server.
func NewServer(h *Hub) *Server {
	return &Server{
		hub: h,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Browser clients are served from arbitrary dev origins
				return true
			},
		},
		readTimeout:   60 * time.Second,
		writeTimeout:  10 * time.Second,
		pingInterval:  30 * time.Second,
		maxMessageLen: 4096,
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
// GET /ws
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return err
	}

	conn := s.hub.NewConnection(ws)
	// A session id in the query string binds immediately; a hello
	// message can rebind later.
	conn.SessionID = c.QueryParam("session_id")
	s.hub.Register(conn)

	ws.SetReadLimit(s.maxMessageLen)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection.
func (s *Server) readPump(conn *Connection) {
	defer func() {
		s.hub.Unregister(conn)
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump writes messages to the WebSocket connection.
func (s *Server) writePump(conn *Connection) {
	ticker := time.NewTicker(s.pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if !ok {
				// Hub closed the channel
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("Failed to write message: %v", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages.
func (s *Server) handleMessage(conn *Connection, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case TypeHello:
		s.handleHello(conn, data)
	default:
		s.sendError(conn, "unknown message type: "+baseMsg.Type)
	}
}

// handleHello binds the connection to the requested session.
func (s *Server) handleHello(conn *Connection, data []byte) {
	var msg HelloMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, "invalid hello message")
		return
	}
	if msg.SessionID == "" {
		s.sendError(conn, "session_id is required")
		return
	}

	s.hub.BindSession(conn, msg.SessionID)

	ack := BaseMessage{
		Type:      TypeHelloAck,
		Ts:        time.Now().UnixMilli(),
		SessionID: msg.SessionID,
	}
	s.hub.SendJSONToConnection(conn, ack)

	log.Printf("Hello handshake completed for session: %s", msg.SessionID)
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *Connection, message string) {
	errMsg := ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      TypeError,
			Ts:        time.Now().UnixMilli(),
			SessionID: conn.SessionID,
		},
		Message: message,
	}
	s.hub.SendJSONToConnection(conn, errMsg)
}
