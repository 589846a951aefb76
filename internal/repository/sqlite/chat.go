package sqlite

import (
	"context"
	"fmt"
	"time"

	"chatstore/internal/domain"
	"chatstore/internal/shared"
)

// Chat persists conversation messages over the record accessor.
type Chat struct {
	dao *DAO
}

// NewChat builds the chat repository.
func NewChat(dao *DAO) *Chat {
	return &Chat{dao: dao}
}

// Add stores a new message and writes the generated ID back into m.
// A user ID that matches no user surfaces as shared.KindConflict.
func (r *Chat) Add(ctx context.Context, m *domain.ChatMessage) error {
	if m == nil {
		return shared.MarkKind(fmt.Errorf("message must not be nil"), shared.KindValidation)
	}
	if m.Persisted() {
		return shared.MarkKind(fmt.Errorf("message %d is already persisted", m.ID), shared.KindValidation)
	}

	id, err := r.dao.InsertMessage(ctx, m.SessionID, m.UserID, m.Role, m.Text)
	if err != nil {
		return err
	}

	m.ID = id
	return nil
}

// ByID returns a single message, or shared.KindNotFound.
func (r *Chat) ByID(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	row, err := r.dao.MessageByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return decodeMessage(row)
}

// All returns every stored message in insertion order.
func (r *Chat) All(ctx context.Context) ([]*domain.ChatMessage, error) {
	rows, err := r.dao.AllMessages(ctx)
	if err != nil {
		return nil, err
	}
	return decodeMessages(rows)
}

// BySession returns the session transcript in insertion order.
// A session with no messages yields an empty transcript, not an error.
func (r *Chat) BySession(ctx context.Context, sessionID string) (*domain.ChatHistory, error) {
	rows, err := r.dao.MessagesBySession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return decodeHistory(sessionID, rows)
}

// BySessionForUser returns one user's part of a session transcript.
func (r *Chat) BySessionForUser(ctx context.Context, userID int64, sessionID string) (*domain.ChatHistory, error) {
	rows, err := r.dao.MessagesBySessionForUser(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	return decodeHistory(sessionID, rows)
}

func decodeHistory(sessionID string, rows []chatRow) (*domain.ChatHistory, error) {
	messages, err := decodeMessages(rows)
	if err != nil {
		return nil, err
	}
	return &domain.ChatHistory{SessionID: sessionID, Messages: messages}, nil
}

func decodeMessages(rows []chatRow) ([]*domain.ChatMessage, error) {
	messages := make([]*domain.ChatMessage, 0, len(rows))
	for _, row := range rows {
		m, err := decodeMessage(row)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// AllByUser returns every message of one user across all sessions.
func (r *Chat) AllByUser(ctx context.Context, userID int64) ([]*domain.ChatMessage, error) {
	rows, err := r.dao.MessagesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return decodeMessages(rows)
}

// Sessions returns every known session ID ordered by first appearance.
func (r *Chat) Sessions(ctx context.Context) ([]string, error) {
	return r.dao.DistinctSessions(ctx)
}

// SessionsByUser returns the session IDs one user has written to.
func (r *Chat) SessionsByUser(ctx context.Context, userID int64) ([]string, error) {
	return r.dao.DistinctSessionsByUser(ctx, userID)
}

// Update rewrites a stored message in place. The message must carry the
// ID of an existing row; an unknown ID surfaces as shared.KindNotFound.
func (r *Chat) Update(ctx context.Context, m *domain.ChatMessage) error {
	if m == nil {
		return shared.MarkKind(fmt.Errorf("message must not be nil"), shared.KindValidation)
	}
	if !m.Persisted() {
		return shared.MarkKind(fmt.Errorf("message has not been saved yet"), shared.KindValidation)
	}
	return r.dao.UpdateMessage(ctx, m.ID, m.SessionID, m.UserID, m.Role, m.Text)
}

// Delete removes a single message. Deleting an unknown ID surfaces as
// shared.KindNotFound.
func (r *Chat) Delete(ctx context.Context, id int64) error {
	return r.dao.DeleteMessage(ctx, id)
}

// DeleteSession removes every message of one session.
func (r *Chat) DeleteSession(ctx context.Context, sessionID string) error {
	_, err := r.dao.DeleteSession(ctx, sessionID)
	return err
}

// PurgeOlderThan removes messages created before the cutoff and returns
// how many were removed.
func (r *Chat) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	return r.dao.PurgeMessagesBefore(ctx, cutoff)
}
