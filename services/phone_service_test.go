package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
	"github.com/pilab-dev/stepauth/sessions"
)

func newPhoneFixture(t *testing.T) (*PhoneService, *MockPhoneVerifier, *sessions.MemoryStore) {
	t.Helper()

	verifier := new(MockPhoneVerifier)
	store := sessions.NewMemoryStore(testSessionTTL)
	t.Cleanup(func() { _ = store.Close() })

	return NewPhoneService(store, verifier), verifier, store
}

func TestPhoneService_RequestVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers a code on the chosen channel", func(t *testing.T) {
		service, verifier, _ := newPhoneFixture(t)

		verifier.On("RequestVerification", ctx, "+15551234567", "sms").Return("VE123", nil).Once()

		sid, err := service.RequestVerification(ctx, "+15551234567", "sms")
		require.NoError(t, err)
		assert.Equal(t, "VE123", sid)
		verifier.AssertExpectations(t)
	})

	t.Run("missing phone number", func(t *testing.T) {
		service, _, _ := newPhoneFixture(t)

		_, err := service.RequestVerification(ctx, "", "sms")
		assert.ErrorIs(t, err, stepauth.ErrMissingField)
	})

	t.Run("provider failure passes through", func(t *testing.T) {
		service, verifier, _ := newPhoneFixture(t)

		verifier.On("RequestVerification", ctx, "+15551234567", "call").
			Return("", stepauth.ErrProviderUnavailable).Once()

		_, err := service.RequestVerification(ctx, "+15551234567", "call")
		assert.ErrorIs(t, err, stepauth.ErrProviderUnavailable)
	})
}

func TestPhoneService_ConfirmVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("approved code sets the claim", func(t *testing.T) {
		service, verifier, store := newPhoneFixture(t)
		sess := anonymousSession(t, store)

		verifier.On("ConfirmVerification", ctx, "+15551234567", "123456").Return("approved", nil).Once()

		status, err := service.ConfirmVerification(ctx, sess, "+15551234567", "123456")
		require.NoError(t, err)
		assert.Equal(t, "approved", status)
		assert.True(t, sess.PhoneVerified)

		persisted, err := store.Get(ctx, sess.ID)
		require.NoError(t, err)
		assert.True(t, persisted.PhoneVerified)
	})

	t.Run("rejected code leaves the claim untouched", func(t *testing.T) {
		service, verifier, store := newPhoneFixture(t)
		sess := anonymousSession(t, store)

		verifier.On("ConfirmVerification", ctx, "+15551234567", "000000").Return("pending", nil).Once()

		status, err := service.ConfirmVerification(ctx, sess, "+15551234567", "000000")
		assert.ErrorIs(t, err, stepauth.ErrInvalidCode)
		assert.Equal(t, "pending", status)
		assert.False(t, sess.PhoneVerified)
	})

	t.Run("claim is independent of the login state machine", func(t *testing.T) {
		service, verifier, store := newPhoneFixture(t)
		sess := anonymousSession(t, store)

		verifier.On("ConfirmVerification", ctx, "+15551234567", "123456").Return("approved", nil).Once()

		_, err := service.ConfirmVerification(ctx, sess, "+15551234567", "123456")
		require.NoError(t, err)
		assert.Equal(t, domain.StateAnonymous, sess.State, "verifying a phone grants no authentication progress")
	})

	t.Run("missing code", func(t *testing.T) {
		service, _, store := newPhoneFixture(t)
		sess := anonymousSession(t, store)

		_, err := service.ConfirmVerification(ctx, sess, "+15551234567", "")
		assert.ErrorIs(t, err, stepauth.ErrMissingField)
	})
}
