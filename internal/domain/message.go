package domain

import (
	"fmt"
	"strings"
	"time"

	"chatstore/internal/shared"
)

// Message roles. Stored as text; unknown roles are preserved on read
// so old data never becomes unreadable.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is a single utterance in a conversation session.
// ID is zero until the message has been persisted; CreatedAt is
// assigned by the database on insert.
type ChatMessage struct {
	ID        int64
	SessionID string
	UserID    int64
	Role      string
	Text      string
	CreatedAt time.Time
}

// NewChatMessage builds a message ready for persistence.
func NewChatMessage(sessionID string, userID int64, role, text string) (*ChatMessage, error) {
	if userID <= 0 {
		return nil, shared.MarkKind(fmt.Errorf("user id must be positive, got %d", userID), shared.KindValidation)
	}

	m, err := NewUnassignedMessage(sessionID, role, text)
	if err != nil {
		return nil, err
	}
	m.UserID = userID
	return m, nil
}

// NewUnassignedMessage builds a message whose author does not exist
// yet. Registration uses it: the user ID is filled in by the storage
// transaction that creates the account.
func NewUnassignedMessage(sessionID, role, text string) (*ChatMessage, error) {
	sessionID = strings.TrimSpace(sessionID)
	role = strings.TrimSpace(role)

	if sessionID == "" {
		return nil, shared.MarkKind(fmt.Errorf("session id must not be empty"), shared.KindValidation)
	}
	if role == "" {
		return nil, shared.MarkKind(fmt.Errorf("role must not be empty"), shared.KindValidation)
	}
	if text == "" {
		return nil, shared.MarkKind(fmt.Errorf("message text must not be empty"), shared.KindValidation)
	}

	return &ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Text:      text,
	}, nil
}

// Persisted reports whether the message has been stored and assigned an ID.
func (m *ChatMessage) Persisted() bool {
	return m.ID > 0
}
