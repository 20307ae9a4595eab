package sessions

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
)

func TestMemoryStore_SaveAndGet(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, domain.StateAnonymous, got.State)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound)
}

func TestMemoryStore_RegenerateInvalidatesOldID(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	require.NoError(t, store.Save(ctx, sess))
	oldID := sess.ID

	require.NoError(t, store.Regenerate(ctx, sess))
	assert.NotEqual(t, oldID, sess.ID)

	_, err := store.Get(ctx, oldID)
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound, "old session identity must be invalidated")

	_, err = store.Get(ctx, sess.ID)
	assert.NoError(t, err)
}

func TestMemoryStore_Destroy(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	require.NoError(t, store.Save(ctx, sess))
	require.NoError(t, store.Destroy(ctx, sess.ID))

	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound)
}

func TestMemoryStore_ApprovalLinks(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.LinkApproval(ctx, "abc-123", "sess-1", time.Minute))

	sessionID, err := store.SessionIDForApproval(ctx, "abc-123")
	require.NoError(t, err)
	assert.Equal(t, "sess-1", sessionID)

	require.NoError(t, store.UnlinkApproval(ctx, "abc-123"))
	_, err = store.SessionIDForApproval(ctx, "abc-123")
	assert.ErrorIs(t, err, stepauth.ErrNoPendingRequest)
}

func TestMemoryStore_ExpiredSessionNotReturned(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	sess := domain.NewSession(time.Minute)
	sess.ExpiresAt = time.Now().UTC().Add(-time.Second)
	// Set directly with a positive cache TTL so only the logical expiry applies.
	store.sessions.Set(sess.ID, sess, time.Minute)

	_, err := store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, stepauth.ErrSessionNotFound)
}
