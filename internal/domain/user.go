package domain

import (
	"fmt"
	"strings"
	"time"

	"chatstore/internal/shared"
)

// User is a registered account. ID is zero until the user has been
// persisted; repositories assign it on insert.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Email        string
	CreatedAt    time.Time
}

// NewUser builds a user ready for persistence. The password hash is
// accepted as-is, hashing is the caller's concern.
func NewUser(username, passwordHash, email string) (*User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, shared.MarkKind(fmt.Errorf("username must not be empty"), shared.KindValidation)
	}
	if email == "" {
		return nil, shared.MarkKind(fmt.Errorf("email must not be empty"), shared.KindValidation)
	}
	if !strings.Contains(email, "@") {
		return nil, shared.MarkKind(fmt.Errorf("email %q is not valid", email), shared.KindValidation)
	}

	return &User{
		Username:     username,
		PasswordHash: passwordHash,
		Email:        email,
	}, nil
}

// Persisted reports whether the user has been stored and assigned an ID.
func (u *User) Persisted() bool {
	return u.ID > 0
}
