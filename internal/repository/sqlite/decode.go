package sqlite

import (
	"fmt"
	"time"

	"chatstore/internal/domain"
	"chatstore/internal/shared"
)

// timeLayout is how SQLite's CURRENT_TIMESTAMP renders: UTC without zone.
const timeLayout = "2006-01-02 15:04:05"

// parseTimestamp decodes a stored timestamp. CURRENT_TIMESTAMP values use
// timeLayout; RFC 3339 is accepted for rows written by other tools.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, shared.MarkKind(fmt.Errorf("timestamp %q has unknown format", s), shared.KindStatement)
	}
	return t.UTC(), nil
}

// decodeUser maps a users row to the domain entity.
func decodeUser(r userRow) (*domain.User, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode user %d: %w", r.ID, err)
	}
	return &domain.User{
		ID:           r.ID,
		Username:     r.Username,
		PasswordHash: r.PasswordHash.String,
		Email:        r.Email,
		CreatedAt:    createdAt,
	}, nil
}

// decodeMessage maps a chat_history row to the domain entity.
func decodeMessage(r chatRow) (*domain.ChatMessage, error) {
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode message %d: %w", r.ID, err)
	}
	return &domain.ChatMessage{
		ID:        r.ID,
		SessionID: r.SessionID,
		UserID:    r.UserID,
		Role:      r.Role,
		Text:      r.Text,
		CreatedAt: createdAt,
	}, nil
}
