// Package repository defines the persistence contracts for users and
// chat history. Implementations live in the sqlite and postgres
// subpackages; callers depend only on these interfaces and on the
// error kinds from internal/shared.
package repository

import (
	"context"
	"time"

	"chatstore/internal/domain"
)

// UserRepository persists user accounts.
//
// Add assigns the generated ID back to the entity on success.
// Uniqueness violations (username, email) surface as shared.KindConflict;
// lookups that match nothing return shared.KindNotFound.
type UserRepository interface {
	Add(ctx context.Context, u *domain.User) error
	ByID(ctx context.Context, id int64) (*domain.User, error)
	ByUsername(ctx context.Context, username string) (*domain.User, error)
	All(ctx context.Context) ([]*domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	Delete(ctx context.Context, id int64) error
}

// ChatRepository persists conversation messages grouped by session.
//
// BySession returns the whole session transcript in insertion order;
// BySessionForUser narrows it to one author. Deleting a user cascades
// to their messages at the schema level.
type ChatRepository interface {
	Add(ctx context.Context, m *domain.ChatMessage) error
	ByID(ctx context.Context, id int64) (*domain.ChatMessage, error)
	All(ctx context.Context) ([]*domain.ChatMessage, error)
	BySession(ctx context.Context, sessionID string) (*domain.ChatHistory, error)
	BySessionForUser(ctx context.Context, userID int64, sessionID string) (*domain.ChatHistory, error)
	AllByUser(ctx context.Context, userID int64) ([]*domain.ChatMessage, error)
	Sessions(ctx context.Context) ([]string, error)
	SessionsByUser(ctx context.Context, userID int64) ([]string, error)
	Update(ctx context.Context, m *domain.ChatMessage) error
	Delete(ctx context.Context, id int64) error
	DeleteSession(ctx context.Context, sessionID string) error
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Store bundles the repositories of one storage backend together with
// its lifecycle. A Store owns its connections; Close releases them.
type Store interface {
	Users() UserRepository
	Chat() ChatRepository
	Close() error
}
