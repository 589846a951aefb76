package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"chatstore/internal/shared"
)

// chatRow mirrors one row of the chat_history table.
type chatRow struct {
	ID        int64
	SessionID string
	UserID    int64
	Role      string
	Text      string
	CreatedAt string
}

const chatColumns = "id, session_id, user_id, role, text, created_at"

func scanChat(rows *sql.Rows) (chatRow, error) {
	var r chatRow
	err := rows.Scan(&r.ID, &r.SessionID, &r.UserID, &r.Role, &r.Text, &r.CreatedAt)
	return r, err
}

// InsertMessage stores a new chat message and returns the generated ID.
// A user_id that matches no user surfaces as shared.KindConflict.
func (d *DAO) InsertMessage(ctx context.Context, sessionID string, userID int64, role, text string) (int64, error) {
	const q = "INSERT INTO chat_history (session_id, user_id, role, text) VALUES (?, ?, ?, ?)"
	id, err := d.insertReturningID(ctx, q, sessionID, userID, role, text)
	if err != nil {
		return 0, fmt.Errorf("insert message for session %q: %w", sessionID, err)
	}
	return id, nil
}

// MessageByID returns the row with the given ID, or shared.ErrNotFound.
func (d *DAO) MessageByID(ctx context.Context, id int64) (chatRow, error) {
	if err := d.connected(); err != nil {
		return chatRow{}, err
	}

	const q = "SELECT " + chatColumns + " FROM chat_history WHERE id = ?"
	d.trace(q, id)

	var r chatRow
	err := d.writer.GetQuerier(ctx).QueryRowContext(ctx, q, id).
		Scan(&r.ID, &r.SessionID, &r.UserID, &r.Role, &r.Text, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chatRow{}, shared.ErrNotFound
	}
	if err != nil {
		return chatRow{}, shared.MarkKind(fmt.Errorf("query message %d: %w", id, err), shared.KindStatement)
	}
	return r, nil
}

// AllMessages returns every row ordered by ID.
func (d *DAO) AllMessages(ctx context.Context) ([]chatRow, error) {
	return queryRows(ctx, d, "SELECT "+chatColumns+" FROM chat_history ORDER BY id", scanChat)
}

// MessagesBySession returns the session transcript in insertion order.
func (d *DAO) MessagesBySession(ctx context.Context, sessionID string) ([]chatRow, error) {
	const q = "SELECT " + chatColumns + " FROM chat_history WHERE session_id = ? ORDER BY id"
	return queryRows(ctx, d, q, scanChat, sessionID)
}

// MessagesBySessionForUser returns one user's part of a session transcript.
func (d *DAO) MessagesBySessionForUser(ctx context.Context, userID int64, sessionID string) ([]chatRow, error) {
	const q = "SELECT " + chatColumns + " FROM chat_history WHERE session_id = ? AND user_id = ? ORDER BY id"
	return queryRows(ctx, d, q, scanChat, sessionID, userID)
}

// MessagesByUser returns every message of one user across all sessions,
// in insertion order.
func (d *DAO) MessagesByUser(ctx context.Context, userID int64) ([]chatRow, error) {
	const q = "SELECT " + chatColumns + " FROM chat_history WHERE user_id = ? ORDER BY id"
	return queryRows(ctx, d, q, scanChat, userID)
}

// DistinctSessions returns every session ID, ordered by first appearance.
func (d *DAO) DistinctSessions(ctx context.Context) ([]string, error) {
	const q = "SELECT session_id FROM chat_history GROUP BY session_id ORDER BY MIN(id)"
	return queryRows(ctx, d, q, func(rows *sql.Rows) (string, error) {
		var s string
		err := rows.Scan(&s)
		return s, err
	})
}

// DistinctSessionsByUser returns the session IDs one user has written to,
// ordered by first appearance.
func (d *DAO) DistinctSessionsByUser(ctx context.Context, userID int64) ([]string, error) {
	const q = "SELECT session_id FROM chat_history WHERE user_id = ? GROUP BY session_id ORDER BY MIN(id)"
	return queryRows(ctx, d, q, func(rows *sql.Rows) (string, error) {
		var s string
		err := rows.Scan(&s)
		return s, err
	}, userID)
}

// UpdateMessage rewrites every mutable column of one message.
// Updating an unknown ID surfaces as shared.ErrNotFound.
func (d *DAO) UpdateMessage(ctx context.Context, id int64, sessionID string, userID int64, role, text string) error {
	const q = "UPDATE chat_history SET session_id = ?, user_id = ?, role = ?, text = ? WHERE id = ?"
	if _, err := d.execWrite(ctx, true, q, sessionID, userID, role, text, id); err != nil {
		return fmt.Errorf("update message %d: %w", id, err)
	}
	return nil
}

// DeleteMessage removes a single message by ID. Deleting an unknown ID
// surfaces as shared.ErrNotFound.
func (d *DAO) DeleteMessage(ctx context.Context, id int64) error {
	if _, err := d.execWrite(ctx, true, "DELETE FROM chat_history WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete message %d: %w", id, err)
	}
	return nil
}

// DeleteSession removes every message of one session. Deleting a session
// that has no messages is not an error.
func (d *DAO) DeleteSession(ctx context.Context, sessionID string) (int64, error) {
	affected, err := d.execWrite(ctx, false, "DELETE FROM chat_history WHERE session_id = ?", sessionID)
	if err != nil {
		return 0, fmt.Errorf("delete session %q: %w", sessionID, err)
	}
	return affected, nil
}

// PurgeMessagesBefore removes messages created before the cutoff and
// returns the number of rows removed.
func (d *DAO) PurgeMessagesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = "DELETE FROM chat_history WHERE created_at < ?"
	affected, err := d.execWrite(ctx, false, q, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("purge messages before %s: %w", cutoff.UTC().Format(time.RFC3339), err)
	}
	return affected, nil
}
