package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kriya-app/kriya-cli/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestLoadWithoutSaveIsNotAuthenticated(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Load(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.Save(ctx, domain.Session{
		Email:            "user@example.com",
		HasLocalPassword: true,
	})
	require.NoError(t, err)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", got.Email)
	assert.True(t, got.HasLocalPassword)
	assert.True(t, got.Authenticated)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveReplacesPreviousSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Session{Email: "first@example.com", HasLocalPassword: true}))
	require.NoError(t, store.Save(ctx, domain.Session{Email: "second@example.com"}))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", got.Email)
	assert.False(t, got.HasLocalPassword)
}

func TestSaveRejectsEmptyEmail(t *testing.T) {
	store := openTestStore(t)

	err := store.Save(context.Background(), domain.Session{})
	assert.Error(t, err)
}

func TestSetHasLocalPassword(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Federated sign-in: no local password yet.
	require.NoError(t, store.Save(ctx, domain.Session{Email: "fed@example.com"}))
	require.NoError(t, store.SetHasLocalPassword(ctx, true))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.HasLocalPassword)
}

func TestSetHasLocalPasswordWithoutSession(t *testing.T) {
	store := openTestStore(t)

	err := store.SetHasLocalPassword(context.Background(), true)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}

func TestClear(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.Session{Email: "user@example.com"}))
	require.NoError(t, store.Clear(ctx))

	_, err := store.Load(ctx)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
}
