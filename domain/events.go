package domain

// Event types pushed to presentation-layer subscribers.
const (
	EventTypeSessionCreated  = "session_created"
	EventTypeSessionSelected = "session_selected"
	EventTypeSessionUpdated  = "session_updated"
	EventTypeSessionDeleted  = "session_deleted"
	EventTypeMessageAppended = "message_appended"
	EventTypeStreamDelta     = "delta"
	EventTypeStreamDone      = "done"
	EventTypeStreamError     = "error"
)

// Event is the envelope broadcast over the WebSocket hub. Only the
// fields relevant to the event type are populated.
type Event struct {
	Type      string   `json:"type"`
	Ts        int64    `json:"ts"`
	SessionID string   `json:"session_id,omitempty"`
	Session   *Session `json:"session,omitempty"`
	Message   *Message `json:"message,omitempty"`
	Text      string   `json:"text,omitempty"`
	Error     string   `json:"error,omitempty"`
}
