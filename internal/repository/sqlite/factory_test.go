package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatstore/internal/domain"
	"chatstore/internal/shared"
)

func TestInitSchemaIdempotent(t *testing.T) {
	f, err := NewInMemory(context.Background(), nil)
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.InitSchema(context.Background()))
	require.NoError(t, f.InitSchema(context.Background()), "second call must be a no-op")

	for _, table := range []string{"users", "chat_history"} {
		exists, err := f.dao.TableExists(context.Background(), table)
		require.NoError(t, err)
		assert.True(t, exists, "table %s", table)
	}
}

func TestFactoriesAreIndependent(t *testing.T) {
	a := newTestStore(t)
	b := newTestStore(t)

	mustAddUser(t, a, "alice", "alice@example.com")

	all, err := b.Users().All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all, "stores over different databases share nothing")
}

func TestRegisterUserWithInitialMessage(t *testing.T) {
	f := newTestStore(t)

	u, err := domain.NewUser("alice", "hash", "alice@example.com")
	require.NoError(t, err)
	m, err := domain.NewUnassignedMessage("sess-1", domain.RoleUser, "hello")
	require.NoError(t, err)

	require.NoError(t, f.RegisterUserWithInitialMessage(context.Background(), u, m))

	assert.True(t, u.Persisted())
	assert.True(t, m.Persisted())
	assert.Equal(t, u.ID, m.UserID)

	history, err := f.Chat().BySession(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Equal(t, 1, history.Len())
	assert.Equal(t, u.ID, history.Messages[0].UserID)
}

func TestRegisterUserWithInitialMessageRollsBack(t *testing.T) {
	f := newTestStore(t)
	mustAddUser(t, f, "alice", "alice@example.com")

	u, err := domain.NewUser("alice", "hash", "other@example.com")
	require.NoError(t, err)
	m, err := domain.NewUnassignedMessage("sess-1", domain.RoleUser, "hello")
	require.NoError(t, err)

	err = f.RegisterUserWithInitialMessage(context.Background(), u, m)
	require.Error(t, err)
	assert.True(t, shared.IsConflict(err))

	// Nothing persisted, no IDs assigned
	assert.False(t, u.Persisted())
	assert.False(t, m.Persisted())

	history, err := f.Chat().BySession(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, history.Len())
}
