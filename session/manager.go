// Package session manages the ordered collection of chat sessions.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TDNM88/hubchat/config"
	"github.com/TDNM88/hubchat/domain"
	"github.com/TDNM88/hubchat/store"
)

var (
	// ErrSessionNotFound is returned for operations on an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStreamInFlight is returned when a generation request is already
	// running for the session.
	ErrStreamInFlight = errors.New("a generation request is already in flight for this session")
	// ErrInvalidConfig is returned when a config update leaves the
	// parameters outside their accepted ranges.
	ErrInvalidConfig = errors.New("invalid generation config")
)

// Notifier publishes session events to presentation-layer subscribers.
type Notifier interface {
	// BroadcastJSON sends v to subscribers bound to sessionID.
	BroadcastJSON(sessionID string, v interface{}) error
	// BroadcastAllJSON sends v to every subscriber.
	BroadcastAllJSON(v interface{}) error
}

// Manager holds the ordered session collection and the active session id.
// The collection is the in-memory source of truth; session rows and
// transcripts are written through to the store.
type Manager struct {
	mu       sync.Mutex
	store    store.Store
	notifier Notifier

	sessions []*domain.Session
	index    map[string]*domain.Session
	activeID string
	created  int

	// inflight maps session id to the cancel func of its running stream.
	inflight map[string]context.CancelFunc

	defaults    domain.GenerationConfig
	defaultName string
}

// NewManager creates a manager. An empty collection gets exactly one
// default session, which becomes active.
func NewManager(st store.Store, cfg *config.Config, notifier Notifier) (*Manager, error) {
	m := &Manager{
		store:    st,
		notifier: notifier,
		index:    make(map[string]*domain.Session),
		inflight: make(map[string]context.CancelFunc),
		defaults: domain.GenerationConfig{
			Model:       cfg.DefaultModel,
			Temperature: cfg.DefaultTemperature,
			MaxTokens:   cfg.SessionMaxTokens,
		},
		defaultName: cfg.DefaultSessionName,
	}

	if _, err := m.CreateSession(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create default session: %w", err)
	}
	return m, nil
}

// CreateSession creates a new session with default config, appends it to
// the collection and makes it active.
func (m *Manager) CreateSession(ctx context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := m.defaultName
	if m.created > 0 {
		name = fmt.Sprintf("%s %d", m.defaultName, m.created+1)
	}

	session := &domain.Session{
		SessionID: "sess_" + uuid.New().String(),
		Name:      name,
		Config:    m.defaults,
		CreatedAt: time.Now(),
	}

	if err := m.store.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	m.sessions = append(m.sessions, session)
	m.index[session.SessionID] = session
	m.activeID = session.SessionID
	m.created++

	m.broadcastAll(domain.Event{
		Type:      domain.EventTypeSessionCreated,
		Ts:        time.Now().UnixMilli(),
		SessionID: session.SessionID,
		Session:   copySession(session),
	})

	return copySession(session), nil
}

// SelectSession makes the given session active. Unknown ids fail with
// ErrSessionNotFound.
func (m *Manager) SelectSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[id]; !ok {
		return ErrSessionNotFound
	}
	m.activeID = id

	m.broadcastAll(domain.Event{
		Type:      domain.EventTypeSessionSelected,
		Ts:        time.Now().UnixMilli(),
		SessionID: id,
	})
	return nil
}

// UpdateConfig merges the patch into the session's generation config.
// Other sessions are untouched; messages already sent are unaffected.
func (m *Manager) UpdateConfig(ctx context.Context, id string, patch domain.ConfigPatch) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.index[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	merged := patch.Apply(session.Config)
	if !merged.Valid() {
		return nil, ErrInvalidConfig
	}

	if err := m.store.UpdateSessionConfig(ctx, id, merged); err != nil {
		return nil, err
	}
	session.Config = merged

	m.broadcastAll(domain.Event{
		Type:      domain.EventTypeSessionUpdated,
		Ts:        time.Now().UnixMilli(),
		SessionID: id,
		Session:   copySession(session),
	})

	return copySession(session), nil
}

// DeleteSession removes the session and its transcript. A stream running
// for the session is cancelled. If the deleted session was active, the
// last remaining session becomes active (or none when the collection is
// empty).
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[id]; !ok {
		return ErrSessionNotFound
	}

	if cancel, ok := m.inflight[id]; ok {
		cancel()
		delete(m.inflight, id)
	}

	if err := m.store.DeleteSession(ctx, id); err != nil {
		return err
	}

	delete(m.index, id)
	for i, s := range m.sessions {
		if s.SessionID == id {
			m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
			break
		}
	}

	if m.activeID == id {
		m.activeID = ""
		if len(m.sessions) > 0 {
			m.activeID = m.sessions[len(m.sessions)-1].SessionID
		}
	}

	m.broadcastAll(domain.Event{
		Type:      domain.EventTypeSessionDeleted,
		Ts:        time.Now().UnixMilli(),
		SessionID: id,
	})
	return nil
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.index[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(session), nil
}

// Sessions returns a snapshot of the collection in insertion order.
func (m *Manager) Sessions() []domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out
}

// ActiveID returns the id of the active session, or "" when the
// collection is empty.
func (m *Manager) ActiveID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeID
}

// BeginStream registers a generation stream for the session and returns
// a context that is cancelled when the session is deleted. At most one
// stream per session may be in flight; a second submission fails with
// ErrStreamInFlight. The returned release func must be called when the
// stream ends.
func (m *Manager) BeginStream(ctx context.Context, id string) (context.Context, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[id]; !ok {
		return nil, nil, ErrSessionNotFound
	}
	if _, ok := m.inflight[id]; ok {
		return nil, nil, ErrStreamInFlight
	}

	streamCtx, cancel := context.WithCancel(ctx)
	m.inflight[id] = cancel

	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if c, ok := m.inflight[id]; ok {
			c()
			delete(m.inflight, id)
		}
	}
	return streamCtx, release, nil
}

// AppendMessage appends a message to the session transcript. Truncated
// marks content from a stream that was interrupted before completion.
func (m *Manager) AppendMessage(ctx context.Context, id string, role domain.Role, content string, truncated bool) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.index[id]; !ok {
		return nil, ErrSessionNotFound
	}

	msg := &domain.Message{
		MessageID: "msg_" + uuid.New().String()[:8],
		SessionID: id,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}
	if truncated {
		msg.Metadata = domain.TruncatedMetadata
	}

	if err := m.store.CreateMessage(ctx, msg); err != nil {
		return nil, err
	}

	m.broadcast(id, domain.Event{
		Type:      domain.EventTypeMessageAppended,
		Ts:        time.Now().UnixMilli(),
		SessionID: id,
		Message:   msg,
	})
	return msg, nil
}

// Messages returns transcript messages for the session.
func (m *Manager) Messages(ctx context.Context, id string, limit int, before string) ([]domain.Message, error) {
	m.mu.Lock()
	if _, ok := m.index[id]; !ok {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	m.mu.Unlock()

	return m.store.GetMessages(ctx, id, limit, before)
}

func (m *Manager) broadcast(sessionID string, event domain.Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.BroadcastJSON(sessionID, event); err != nil {
		log.Printf("WARN: failed to broadcast %s event: %v", event.Type, err)
	}
}

func (m *Manager) broadcastAll(event domain.Event) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.BroadcastAllJSON(event); err != nil {
		log.Printf("WARN: failed to broadcast %s event: %v", event.Type, err)
	}
}

func copySession(s *domain.Session) *domain.Session {
	c := *s
	return &c
}
