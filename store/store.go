// Package store defines the storage interface and implementations.
package store

import (
	"context"

	"github.com/TDNM88/hubchat/domain"
)

// Store defines the interface for session and transcript persistence.
type Store interface {
	// Session operations
	CreateSession(ctx context.Context, session *domain.Session) error
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	ListSessions(ctx context.Context) ([]domain.Session, error)
	UpdateSessionConfig(ctx context.Context, sessionID string, cfg domain.GenerationConfig) error
	DeleteSession(ctx context.Context, sessionID string) error

	// Message operations
	CreateMessage(ctx context.Context, message *domain.Message) error
	GetMessages(ctx context.Context, sessionID string, limit int, before string) ([]domain.Message, error)

	// Lifecycle
	Close() error
}
