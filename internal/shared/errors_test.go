package shared_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstore/internal/shared"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		context  string
		expected string
		isNil    bool
	}{
		{
			name:     "nil error",
			err:      nil,
			context:  "some context",
			expected: "",
			isNil:    true,
		},
		{
			name:     "simple error",
			err:      errors.New("original"),
			context:  "wrapper",
			expected: "wrapper: original",
			isNil:    false,
		},
		{
			name:     "empty context",
			err:      errors.New("original"),
			context:  "",
			expected: "original",
			isNil:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := shared.Wrap(tt.err, tt.context)
			if tt.isNil {
				assert.Nil(t, result)
			} else {
				require.NotNil(t, result)
				assert.Equal(t, tt.expected, result.Error())
				// Test that the original error is preserved
				assert.True(t, errors.Is(result, tt.err))
			}
		})
	}
}

func TestWrapf(t *testing.T) {
	base := errors.New("boom")
	err := shared.Wrapf(base, "user %d", 42)
	require.NotNil(t, err)
	assert.Equal(t, "user 42: boom", err.Error())
	assert.True(t, errors.Is(err, base))

	assert.Nil(t, shared.Wrapf(nil, "user %d", 42))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected shared.Kind
	}{
		{"nil", nil, shared.KindUnknown},
		{"plain error", errors.New("plain"), shared.KindUnknown},
		{"not found", shared.ErrNotFound, shared.KindNotFound},
		{"wrapped not found", fmt.Errorf("user: %w", shared.ErrNotFound), shared.KindNotFound},
		{"validation", shared.ErrValidation, shared.KindValidation},
		{"conflict", shared.ErrConflict, shared.KindConflict},
		{"busy", shared.ErrBusy, shared.KindBusy},
		{"not connected", shared.ErrNotConnected, shared.KindNotConnected},
		{"connection", shared.ErrConnection, shared.KindConnection},
		{"statement", shared.ErrStatement, shared.KindStatement},
		{"canceled", context.Canceled, shared.KindCanceled},
		{"deadline", context.DeadlineExceeded, shared.KindTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, shared.KindOf(tt.err))
		})
	}
}

func TestKindOf_PriorityOrder(t *testing.T) {
	// Conflict outranks Busy in a joined error: a caller should see the data
	// problem, not the transport symptom.
	joined := errors.Join(shared.ErrBusy, shared.ErrConflict)
	assert.Equal(t, shared.KindConflict, shared.KindOf(joined))

	// Cancellation outranks everything.
	joined = fmt.Errorf("%w: %w", shared.ErrStatement, context.Canceled)
	assert.Equal(t, shared.KindCanceled, shared.KindOf(joined))
}

func TestMarkKind(t *testing.T) {
	base := errors.New("UNIQUE constraint failed: users.username")

	marked := shared.MarkKind(base, shared.KindConflict)
	assert.Equal(t, shared.KindConflict, shared.KindOf(marked))
	assert.True(t, errors.Is(marked, base))

	// Idempotent
	again := shared.MarkKind(marked, shared.KindConflict)
	assert.Equal(t, marked, again)

	// nil error returns the sentinel
	assert.Equal(t, shared.ErrBusy, shared.MarkKind(nil, shared.KindBusy))

	// unknown kind leaves the error untouched
	assert.Equal(t, base, shared.MarkKind(base, shared.KindUnknown))
}

func TestHasKind(t *testing.T) {
	err := shared.Wrap(shared.ErrBusy, "insert users")
	assert.True(t, shared.HasKind(err, shared.KindBusy))
	assert.False(t, shared.HasKind(err, shared.KindConflict))
}

func TestIsHelpers(t *testing.T) {
	assert.True(t, shared.IsNotFound(shared.Wrap(shared.ErrNotFound, "x")))
	assert.True(t, shared.IsValidation(shared.Wrap(shared.ErrValidation, "x")))
	assert.True(t, shared.IsConflict(shared.Wrap(shared.ErrConflict, "x")))
	assert.True(t, shared.IsBusy(shared.Wrap(shared.ErrBusy, "x")))
	assert.True(t, shared.IsNotConnected(shared.Wrap(shared.ErrNotConnected, "x")))
	assert.False(t, shared.IsConflict(shared.ErrBusy))
	assert.False(t, shared.IsBusy(nil))
}

func TestSentinelOf(t *testing.T) {
	assert.Equal(t, shared.ErrConflict, shared.SentinelOf(shared.KindConflict))
	assert.Nil(t, shared.SentinelOf(shared.KindUnknown))
	assert.Nil(t, shared.SentinelOf(shared.KindCanceled))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "Busy", shared.KindBusy.String())
	assert.Equal(t, "NotConnected", shared.KindNotConnected.String())
	assert.Equal(t, "Unknown", shared.KindUnknown.String())
}
