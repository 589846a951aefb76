package sqlite

import (
	"context"
	"fmt"

	"chatstore/internal/domain"
	"chatstore/internal/shared"
)

// Users persists user accounts over the record accessor.
type Users struct {
	dao *DAO
}

// NewUsers builds the user repository.
func NewUsers(dao *DAO) *Users {
	return &Users{dao: dao}
}

// Add stores a new user and writes the generated ID back into u.
// On any failure, including a duplicate username or email, u.ID stays
// untouched.
func (r *Users) Add(ctx context.Context, u *domain.User) error {
	if u == nil {
		return shared.MarkKind(fmt.Errorf("user must not be nil"), shared.KindValidation)
	}
	if u.Persisted() {
		return shared.MarkKind(fmt.Errorf("user %d is already persisted", u.ID), shared.KindValidation)
	}

	id, err := r.dao.InsertUser(ctx, u.Username, u.PasswordHash, u.Email)
	if err != nil {
		return err
	}

	u.ID = id
	return nil
}

// ByID returns the user with the given ID.
func (r *Users) ByID(ctx context.Context, id int64) (*domain.User, error) {
	row, err := r.dao.UserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", id, err)
	}
	return decodeUser(row)
}

// ByUsername returns the user with the given username.
func (r *Users) ByUsername(ctx context.Context, username string) (*domain.User, error) {
	row, err := r.dao.UserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("user %q: %w", username, err)
	}
	return decodeUser(row)
}

// All returns every user ordered by ID.
func (r *Users) All(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.dao.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	users := make([]*domain.User, 0, len(rows))
	for _, row := range rows {
		u, err := decodeUser(row)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, nil
}

// Update rewrites the mutable fields of a persisted user.
func (r *Users) Update(ctx context.Context, u *domain.User) error {
	if u == nil || !u.Persisted() {
		return shared.MarkKind(fmt.Errorf("user must be persisted before update"), shared.KindValidation)
	}
	return r.dao.UpdateUser(ctx, u.ID, u.Username, u.PasswordHash, u.Email)
}

// Delete removes a user and, through the schema, their chat history.
func (r *Users) Delete(ctx context.Context, id int64) error {
	return r.dao.DeleteUser(ctx, id)
}
