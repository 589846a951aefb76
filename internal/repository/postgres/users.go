package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chatstore/internal/domain"
	"chatstore/internal/shared"
)

// Users persists user accounts in PostgreSQL.
type Users struct {
	pool *pgxpool.Pool
}

const userColumns = "id, username, password_hash, email, created_at"

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		u       domain.User
		hash    *string
		created time.Time
	)
	if err := row.Scan(&u.ID, &u.Username, &hash, &u.Email, &created); err != nil {
		return nil, err
	}
	if hash != nil {
		u.PasswordHash = *hash
	}
	u.CreatedAt = created.UTC()
	return &u, nil
}

// Add stores a new user and writes the generated ID back into u.
func (r *Users) Add(ctx context.Context, u *domain.User) error {
	if u == nil {
		return shared.MarkKind(fmt.Errorf("user must not be nil"), shared.KindValidation)
	}
	if u.Persisted() {
		return shared.MarkKind(fmt.Errorf("user %d is already persisted", u.ID), shared.KindValidation)
	}

	var id int64
	err := r.pool.QueryRow(ctx,
		"INSERT INTO users (username, password_hash, email) VALUES ($1, $2, $3) RETURNING id",
		u.Username, u.PasswordHash, u.Email).Scan(&id)
	if err != nil {
		return classify(fmt.Errorf("insert user %q: %w", u.Username, err))
	}

	u.ID = id
	return nil
}

// ByID returns the user with the given ID.
func (r *Users) ByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, classify(fmt.Errorf("user %d: %w", id, err))
	}
	return u, nil
}

// ByUsername returns the user with the given username.
func (r *Users) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		return nil, classify(fmt.Errorf("user %q: %w", username, err))
	}
	return u, nil
}

// All returns every user ordered by ID.
func (r *Users) All(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.pool.Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, classify(err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return users, nil
}

// Update rewrites the mutable fields of a persisted user.
func (r *Users) Update(ctx context.Context, u *domain.User) error {
	if u == nil || !u.Persisted() {
		return shared.MarkKind(errors.New("user must be persisted before update"), shared.KindValidation)
	}

	tag, err := r.pool.Exec(ctx,
		"UPDATE users SET username = $1, password_hash = $2, email = $3 WHERE id = $4",
		u.Username, u.PasswordHash, u.Email, u.ID)
	if err != nil {
		return classify(fmt.Errorf("update user %d: %w", u.ID, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update user %d: %w", u.ID, shared.ErrNotFound)
	}
	return nil
}

// Delete removes a user; the schema cascades to their chat history.
func (r *Users) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM users WHERE id = $1", id)
	if err != nil {
		return classify(fmt.Errorf("delete user %d: %w", id, err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}
