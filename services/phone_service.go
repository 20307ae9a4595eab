package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
	"github.com/pilab-dev/stepauth/internal/metrics"
	"github.com/pilab-dev/stepauth/provider"
	"github.com/pilab-dev/stepauth/sessions"
)

// PhoneService confirms phone number ownership through the phone
// verification provider. The flow is independent of login: it does not gate
// the authentication state machine, it only sets the session's orthogonal
// phoneVerified claim.
type PhoneService struct {
	store    sessions.Store
	verifier provider.PhoneVerifier
}

// NewPhoneService creates a new PhoneService.
func NewPhoneService(store sessions.Store, verifier provider.PhoneVerifier) *PhoneService {
	return &PhoneService{store: store, verifier: verifier}
}

// RequestVerification asks the provider to deliver a verification code.
func (s *PhoneService) RequestVerification(ctx context.Context, phoneNumber, channel string) (string, error) {
	if phoneNumber == "" || channel == "" {
		return "", stepauth.ErrMissingField
	}

	sid, err := s.verifier.RequestVerification(ctx, phoneNumber, channel)
	if err != nil {
		log.Error().Err(err).Msg("Phone verification request failed")
		return "", err
	}

	log.Info().Str("sid", sid).Msg("Phone verification requested")
	return sid, nil
}

// ConfirmVerification submits the code. Provider status "approved" sets the
// session's phoneVerified claim; any other status fails with InvalidCode and
// leaves the claim untouched.
func (s *PhoneService) ConfirmVerification(ctx context.Context, sess *domain.Session, phoneNumber, code string) (string, error) {
	if phoneNumber == "" || code == "" {
		return "", stepauth.ErrMissingField
	}

	status, err := s.verifier.ConfirmVerification(ctx, phoneNumber, code)
	if err != nil {
		log.Error().Err(err).Msg("Phone verification check failed")
		return "", err
	}

	if status != "approved" {
		log.Warn().Str("status", status).Msg("Phone verification code rejected")
		return status, stepauth.ErrInvalidCode
	}

	sess.PhoneVerified = true
	if err := s.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}

	metrics.PhoneVerifiedTotal.Inc()
	log.Info().Str("sessionID", sess.ID).Msg("Phone number verified")
	return status, nil
}
