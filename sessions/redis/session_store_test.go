package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewSessionStore(client, "stepauth"), mr
}

func TestSessionStore_SaveAndGet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	sess.BeginPrimary("user-1", "alice")
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, domain.StatePrimaryAuthenticated, got.State)
}

func TestSessionStore_GetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound)
}

func TestSessionStore_RegenerateInvalidatesOldID(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	require.NoError(t, store.Save(ctx, sess))
	oldID := sess.ID

	require.NoError(t, store.Regenerate(ctx, sess))
	assert.NotEqual(t, oldID, sess.ID)

	_, err := store.Get(ctx, oldID)
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound)

	_, err = store.Get(ctx, sess.ID)
	assert.NoError(t, err)
}

func TestSessionStore_DestroyRemovesRecord(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Destroy(ctx, sess.ID))

	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound)
}

func TestSessionStore_ApprovalLinksExpire(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.LinkApproval(ctx, "abc-123", "sess-1", 2*time.Minute))

	sessionID, err := store.SessionIDForApproval(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sessionID)

	// Past the approval TTL the link must be gone.
	mr.FastForward(3 * time.Minute)
	_, err = store.SessionIDForApproval(ctx, "abc-123")
	assert.ErrorIs(t, err, stepauth.ErrNoPendingRequest)
}

func TestSessionStore_SessionExpiresWithTTL(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	require.NoError(t, store.Save(ctx, sess))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound)
}
