package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roamline/trip-api/internal/testutil"
)

func TestSessionStore_SaveAndResolve(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	err := store.Save(ctx, "tok-1", Session{
		UserID:    "user-123",
		ExpiresAt: time.Now().Add(30 * time.Minute),
	})
	require.NoError(t, err)

	userID, err := store.UserID(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "user-123", userID)
}

func TestSessionStore_UnknownToken(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)

	_, err := store.UserID(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = store.UserID(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_ExpiredSessionRejected(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	err := store.Save(ctx, "tok-exp", Session{
		UserID:    "user-123",
		ExpiresAt: time.Now().Add(-time.Minute),
	})
	require.Error(t, err)

	// Plant a stale record directly; the store should evict it on read.
	require.NoError(t, store.Save(ctx, "tok-stale", Session{
		UserID:    "user-123",
		ExpiresAt: time.Now().Add(50 * time.Millisecond),
	}))
	time.Sleep(100 * time.Millisecond)

	_, err = store.UserID(ctx, "tok-stale")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStore_Delete(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok-del", Session{
		UserID:    "user-9",
		ExpiresAt: time.Now().Add(time.Hour),
	}))
	require.NoError(t, store.Delete(ctx, "tok-del"))

	_, err := store.UserID(ctx, "tok-del")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Deleting a missing token is a no-op.
	require.NoError(t, store.Delete(ctx, "never-existed"))
}

func TestSessionStore_CustomPrefix(t *testing.T) {
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	store := NewSessionStoreWithPrefix(client, "trip_session:")
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "tok-2", Session{
		UserID:    "user-7",
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	exists, err := client.Exists(ctx, "trip_session:tok-2").Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, exists)
}
