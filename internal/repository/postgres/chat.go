package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatstore/internal/domain"
	"chatstore/internal/shared"
)

// Chat persists conversation messages in PostgreSQL.
type Chat struct {
	pool *pgxpool.Pool
}

const chatColumns = "id, session_id, user_id, role, text, created_at"

func scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	var (
		m       domain.ChatMessage
		created time.Time
	)
	if err := row.Scan(&m.ID, &m.SessionID, &m.UserID, &m.Role, &m.Text, &created); err != nil {
		return nil, err
	}
	m.CreatedAt = created.UTC()
	return &m, nil
}

func (r *Chat) collect(ctx context.Context, query string, args ...any) ([]*domain.ChatMessage, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classify(err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return messages, nil
}

func (r *Chat) collectStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, classify(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Add stores a new message and writes the generated ID back into m.
func (r *Chat) Add(ctx context.Context, m *domain.ChatMessage) error {
	if m == nil {
		return shared.MarkKind(fmt.Errorf("message must not be nil"), shared.KindValidation)
	}
	if m.Persisted() {
		return shared.MarkKind(fmt.Errorf("message %d is already persisted", m.ID), shared.KindValidation)
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		"INSERT INTO chat_history (session_id, user_id, role, text) VALUES ($1, $2, $3, $4) RETURNING id",
		m.SessionID, m.UserID, m.Role, m.Text).Scan(&id)
	if err != nil {
		return classify(fmt.Errorf("insert message for session %q: %w", m.SessionID, err))
	}

	m.ID = id
	return nil
}

// ByID returns a single message, or shared.KindNotFound.
func (r *Chat) ByID(ctx context.Context, id int64) (*domain.ChatMessage, error) {
	m, err := scanMessage(r.pool.QueryRow(ctx,
		"SELECT "+chatColumns+" FROM chat_history WHERE id = $1", id))
	if err != nil {
		return nil, classify(err)
	}
	return m, nil
}

// All returns every stored message in insertion order.
func (r *Chat) All(ctx context.Context) ([]*domain.ChatMessage, error) {
	return r.collect(ctx, "SELECT "+chatColumns+" FROM chat_history ORDER BY id")
}

// BySession returns the session transcript in insertion order.
func (r *Chat) BySession(ctx context.Context, sessionID string) (*domain.ChatHistory, error) {
	messages, err := r.collect(ctx,
		"SELECT "+chatColumns+" FROM chat_history WHERE session_id = $1 ORDER BY id", sessionID)
	if err != nil {
		return nil, err
	}
	return &domain.ChatHistory{SessionID: sessionID, Messages: messages}, nil
}

// BySessionForUser returns one user's part of a session transcript.
func (r *Chat) BySessionForUser(ctx context.Context, userID int64, sessionID string) (*domain.ChatHistory, error) {
	messages, err := r.collect(ctx,
		"SELECT "+chatColumns+" FROM chat_history WHERE session_id = $1 AND user_id = $2 ORDER BY id",
		sessionID, userID)
	if err != nil {
		return nil, err
	}
	return &domain.ChatHistory{SessionID: sessionID, Messages: messages}, nil
}

// AllByUser returns every message of one user across all sessions.
func (r *Chat) AllByUser(ctx context.Context, userID int64) ([]*domain.ChatMessage, error) {
	return r.collect(ctx,
		"SELECT "+chatColumns+" FROM chat_history WHERE user_id = $1 ORDER BY id", userID)
}

// Sessions returns every known session ID ordered by first appearance.
func (r *Chat) Sessions(ctx context.Context) ([]string, error) {
	return r.collectStrings(ctx,
		"SELECT session_id FROM chat_history GROUP BY session_id ORDER BY MIN(id)")
}

// SessionsByUser returns the session IDs one user has written to.
func (r *Chat) SessionsByUser(ctx context.Context, userID int64) ([]string, error) {
	return r.collectStrings(ctx,
		"SELECT session_id FROM chat_history WHERE user_id = $1 GROUP BY session_id ORDER BY MIN(id)", userID)
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

	tag, err := r.pool.Exec(ctx,
		"UPDATE chat_history SET session_id = $1, user_id = $2, role = $3, text = $4 WHERE id = $5",
		m.SessionID, m.UserID, m.Role, m.Text, m.ID)
	if err != nil {
		return classify(fmt.Errorf("update message %d: %w", m.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update message %d: %w", m.ID, shared.ErrNotFound)
	}
	return nil
}

// Delete removes a single message. Deleting an unknown ID surfaces as
// shared.KindNotFound.
func (r *Chat) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM chat_history WHERE id = $1", id)
	if err != nil {
		return classify(fmt.Errorf("delete message %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete message %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// DeleteSession removes every message of one session.
func (r *Chat) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx,
		"DELETE FROM chat_history WHERE session_id = $1", sessionID); err != nil {
		return classify(fmt.Errorf("delete session %q: %w", sessionID, err))
	}
	return nil
}

// PurgeOlderThan removes messages created before the cutoff.
func (r *Chat) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		"DELETE FROM chat_history WHERE created_at < $1", cutoff.UTC())
	if err != nil {
		return 0, classify(fmt.Errorf("purge messages: %w", err))
	}
	return tag.RowsAffected(), nil
}
