package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"chatstore/internal/shared"
)

// userRow mirrors one row of the users table.
type userRow struct {
	ID           int64
	Username     string
	PasswordHash sql.NullString
	Email        string
	CreatedAt    string
}

const userColumns = "id, username, password_hash, email, created_at"

func scanUser(rows *sql.Rows) (userRow, error) {
	var r userRow
	err := rows.Scan(&r.ID, &r.Username, &r.PasswordHash, &r.Email, &r.CreatedAt)
	return r, err
}

// InsertUser stores a new user and returns the generated ID.
// Duplicate username or email surfaces as shared.KindConflict.
func (d *DAO) InsertUser(ctx context.Context, username, passwordHash, email string) (int64, error) {
	const q = "INSERT INTO users (username, password_hash, email) VALUES (?, ?, ?)"
	id, err := d.insertReturningID(ctx, q, username, passwordHash, email)
	if err != nil {
		return 0, fmt.Errorf("insert user %q: %w", username, err)
	}
	return id, nil
}

// UserByID returns the row with the given ID, or shared.ErrNotFound.
func (d *DAO) UserByID(ctx context.Context, id int64) (userRow, error) {
	return d.oneUser(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
}

// UserByUsername returns the row with the given username, or shared.ErrNotFound.
func (d *DAO) UserByUsername(ctx context.Context, username string) (userRow, error) {
	return d.oneUser(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
}

func (d *DAO) oneUser(ctx context.Context, query string, arg any) (userRow, error) {
	if err := d.connected(); err != nil {
		return userRow{}, err
	}
	d.trace(query, arg)

	var r userRow
	err := d.writer.GetQuerier(ctx).QueryRowContext(ctx, query, arg).
		Scan(&r.ID, &r.Username, &r.PasswordHash, &r.Email, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return userRow{}, shared.ErrNotFound
	}
	if err != nil {
		return userRow{}, shared.MarkKind(fmt.Errorf("query user: %w", err), shared.KindStatement)
	}
	return r, nil
}

// AllUsers returns every user row ordered by ID.
func (d *DAO) AllUsers(ctx context.Context) ([]userRow, error) {
	return queryRows(ctx, d, "SELECT "+userColumns+" FROM users ORDER BY id", scanUser)
}

// UpdateUser rewrites the mutable columns of an existing user.
// A missing row surfaces as shared.ErrNotFound.
func (d *DAO) UpdateUser(ctx context.Context, id int64, username, passwordHash, email string) error {
	const q = "UPDATE users SET username = ?, password_hash = ?, email = ? WHERE id = ?"
	if _, err := d.execWrite(ctx, true, q, username, passwordHash, email, id); err != nil {
		return fmt.Errorf("update user %d: %w", id, err)
	}
	return nil
}

// DeleteUser removes a user. The schema cascades the delete to the
// user's chat history. A missing row surfaces as shared.ErrNotFound.
func (d *DAO) DeleteUser(ctx context.Context, id int64) error {
	if _, err := d.execWrite(ctx, true, "DELETE FROM users WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete user %d: %w", id, err)
	}
	return nil
}
