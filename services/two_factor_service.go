package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
	"github.com/pilab-dev/stepauth/internal/audit"
	"github.com/pilab-dev/stepauth/internal/metrics"
	"github.com/pilab-dev/stepauth/internal/signature"
	"github.com/pilab-dev/stepauth/provider"
	"github.com/pilab-dev/stepauth/sessions"
)

const (
	// ApprovalTTL is the provider-side lifetime of a push approval request.
	ApprovalTTL = 120 * time.Second
	// PollInterval and MaxPollAttempts describe the expected client polling
	// cadence: once every 5 seconds, up to 12 attempts, after which the
	// client treats the request as abandoned even though the provider's TTL
	// is longer. The server does not enforce the cadence.
	PollInterval    = 5 * time.Second
	MaxPollAttempts = 12

	pushLocation = "San Francisco, CA"
	pushReason   = "Demo by Account Security"
	pushMessage  = "Login requested for Account Security account."
)

// Callback is the signed surface of an inbound provider webhook, assembled
// by the transport layer from the request envelope and headers.
type Callback struct {
	Method    string
	URL       string
	Params    map[string]string
	Nonce     string
	Signature string
}

// approvalID extracts the approval request identifier from the callback
// parameters. The provider posts it both at the top level and under the
// nested approval_request object.
func (c Callback) approvalID() string {
	if id := c.Params["uuid"]; id != "" {
		return id
	}
	return c.Params["approval_request[uuid]"]
}

func (c Callback) status() domain.ApprovalStatus {
	if s := c.Params["status"]; s != "" {
		return domain.ApprovalStatus(s)
	}
	return domain.ApprovalStatus(c.Params["approval_request[status]"])
}

// TwoFactorService drives OTP dispatch and verification plus the push
// approval flow against the second factor provider. Every operation requires
// a primary-authenticated session.
type TwoFactorService struct {
	userRepo     domain.UserRepository
	store        sessions.Store
	secondFactor provider.SecondFactorProvider
	verifier     *signature.Verifier
	nonces       *signature.NonceRegistry
	locks        *sessionLocks
}

// NewTwoFactorService creates a new TwoFactorService.
func NewTwoFactorService(
	userRepo domain.UserRepository,
	store sessions.Store,
	secondFactor provider.SecondFactorProvider,
	verifier *signature.Verifier,
	nonces *signature.NonceRegistry,
) *TwoFactorService {
	return &TwoFactorService{
		userRepo:     userRepo,
		store:        store,
		secondFactor: secondFactor,
		verifier:     verifier,
		nonces:       nonces,
		locks:        newSessionLocks(),
	}
}

// requireEnrolledUser checks the state machine precondition and resolves the
// session's user to an identity with a registered second factor.
func (s *TwoFactorService) requireEnrolledUser(ctx context.Context, sess *domain.Session) (*domain.User, error) {
	if sess.State == domain.StateAnonymous {
		return nil, stepauth.ErrUnauthorized
	}

	user, err := s.userRepo.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session user: %w", err)
	}
	if !user.HasSecondFactor() {
		return nil, fmt.Errorf("%w: second factor enrollment incomplete", stepauth.ErrUnauthorized)
	}
	return user, nil
}

// DispatchOTP asks the provider to deliver a one-time code over the chosen
// channel. Delivery is forced so a code arrives even when the user's device
// would otherwise suppress it. Session state is not mutated.
func (s *TwoFactorService) DispatchOTP(ctx context.Context, sess *domain.Session, channel provider.OTPChannel) (*provider.DispatchResult, error) {
	if !channel.Valid() {
		return nil, fmt.Errorf("%w: otp channel", stepauth.ErrMissingField)
	}

	user, err := s.requireEnrolledUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	res, err := s.secondFactor.SendOTP(ctx, user.SecondFactorID, channel, true)
	if err != nil {
		log.Error().Err(err).Str("userID", user.ID).Str("channel", string(channel)).Msg("OTP dispatch failed")
		return nil, err
	}

	log.Info().Str("userID", user.ID).Str("channel", string(channel)).Msg("OTP dispatched")
	metrics.OTPDispatchedTotal.Inc()
	return res, nil
}

// VerifyOTP submits the token to the provider. A provider-confirmed token
// completes the second factor and the session becomes fully authenticated; a
// rejected token is reported in the result, not raised as an error.
func (s *TwoFactorService) VerifyOTP(ctx context.Context, sess *domain.Session, token string) (*provider.OTPVerification, error) {
	user, err := s.requireEnrolledUser(ctx, sess)
	if err != nil {
		return nil, err
	}

	res, err := s.secondFactor.VerifyOTP(ctx, user.SecondFactorID, token)
	if err != nil {
		return nil, err
	}

	if !res.Success {
		log.Warn().Str("userID", user.ID).Msg("OTP token rejected by provider")
		audit.Log("TwoFactorService", "VerifyOTP", user.ID, sess.ID, "Token rejected", false, nil)
		metrics.OTPRejectedTotal.Inc()
		return res, nil
	}

	release := s.locks.acquire(sess.ID)
	defer release()

	if err := sess.CompleteSecondFactor(); err != nil {
		return nil, stepauth.ErrUnauthorized
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	audit.Log("TwoFactorService", "VerifyOTP", user.ID, sess.ID, "Second factor complete", true, nil)
	metrics.OTPVerifiedTotal.Inc()
	return res, nil
}

// CreatePushApproval creates a push approval request for the session's user
// and records the returned identifier as the session's pending approval.
// The session only becomes fully authenticated once the request resolves
// approved via polling or callback.
func (s *TwoFactorService) CreatePushApproval(ctx context.Context, sess *domain.Session) (string, error) {
	user, err := s.requireEnrolledUser(ctx, sess)
	if err != nil {
		return "", err
	}

	details := provider.ApprovalDetails{
		Visible: map[string]string{
			"Authy ID": user.SecondFactorID,
			"Username": user.Username,
			"Location": pushLocation,
			"Reason":   pushReason,
		},
		Hidden: map[string]string{
			"session_id":   sess.ID,
			"requested_at": time.Now().UTC().Format(time.RFC3339),
		},
		Message: pushMessage,
	}

	approvalID, err := s.secondFactor.CreateApprovalRequest(ctx, user.SecondFactorID, details, int(ApprovalTTL.Seconds()))
	if err != nil {
		log.Error().Err(err).Str("userID", user.ID).Msg("Push approval creation failed")
		return "", err
	}

	// A new request supersedes any outstanding one.
	if sess.PendingApprovalID != "" {
		_ = s.store.UnlinkApproval(ctx, sess.PendingApprovalID)
	}

	sess.PendingApprovalID = approvalID
	if err := s.store.Save(ctx, sess); err != nil {
		return "", fmt.Errorf("failed to persist session: %w", err)
	}
	if err := s.store.LinkApproval(ctx, approvalID, sess.ID, ApprovalTTL); err != nil {
		return "", fmt.Errorf("failed to link approval: %w", err)
	}

	log.Info().Str("userID", user.ID).Str("approvalID", approvalID).Msg("Push approval created")
	metrics.PushCreatedTotal.Inc()
	return approvalID, nil
}

// PollPushApproval reads the current status of the session's pending
// approval request. Approved transitions the session to fully authenticated;
// denied and expired clear the pending request without transitioning; a
// still-pending status is returned unchanged for the client to re-poll.
func (s *TwoFactorService) PollPushApproval(ctx context.Context, sess *domain.Session) (domain.ApprovalStatus, error) {
	if sess.State == domain.StateAnonymous {
		return "", stepauth.ErrUnauthorized
	}
	if sess.PendingApprovalID == "" {
		return "", stepauth.ErrNoPendingRequest
	}
	approvalID := sess.PendingApprovalID

	status, err := s.secondFactor.ApprovalStatus(ctx, approvalID)
	if err != nil {
		return "", err
	}
	if !status.Terminal() {
		return status, nil
	}

	if err := s.resolveApproval(ctx, sess.ID, approvalID, status); err != nil {
		return "", err
	}

	// Refresh the caller's view of the session after resolution.
	if updated, err := s.store.Get(ctx, sess.ID); err == nil {
		*sess = *updated
	}
	return status, nil
}

// VerifyCallback is the push-driven path to the same transition as an
// approved poll. The callback must pass signature verification and must not
// replay a consumed nonce before any session is touched; an inauthentic
// callback mutates nothing.
func (s *TwoFactorService) VerifyCallback(ctx context.Context, cb Callback) (domain.ApprovalStatus, error) {
	if !s.verifier.Verify(signature.Request{
		Method:    cb.Method,
		URL:       cb.URL,
		Params:    cb.Params,
		Nonce:     cb.Nonce,
		Signature: cb.Signature,
	}) {
		log.Warn().Str("url", cb.URL).Msg("Callback signature verification failed")
		audit.Log("TwoFactorService", "VerifyCallback", "", cb.approvalID(), "Signature mismatch", false, stepauth.ErrAuthenticityFailure)
		metrics.CallbackRejectedTotal.Inc()
		return "", stepauth.ErrAuthenticityFailure
	}

	if s.nonces.Consume(cb.Nonce) {
		log.Warn().Str("approvalID", cb.approvalID()).Msg("Callback nonce replayed")
		audit.Log("TwoFactorService", "VerifyCallback", "", cb.approvalID(), "Nonce replay", false, stepauth.ErrAuthenticityFailure)
		metrics.CallbackRejectedTotal.Inc()
		return "", stepauth.ErrAuthenticityFailure
	}
	metrics.CallbackAcceptedTotal.Inc()

	approvalID := cb.approvalID()
	status := cb.status()
	if approvalID == "" || !status.Terminal() {
		// Authentic but not a resolution we act on (e.g. still pending).
		return status, nil
	}

	sessionID, err := s.store.SessionIDForApproval(ctx, approvalID)
	if err != nil {
		// Release the nonce so the provider's redelivery is not mistaken
		// for a replay once the failure clears.
		s.nonces.Forget(cb.Nonce)
		return status, err
	}
	if err := s.resolveApproval(ctx, sessionID, approvalID, status); err != nil {
		s.nonces.Forget(cb.Nonce)
		return status, err
	}
	return status, nil
}

// resolveApproval applies a terminal approval outcome to the owning session
// exactly once. Resolution is serialized per session; the second of two
// racing resolvers finds the pending ID already cleared and returns without
// error. The session identifier is never regenerated here.
func (s *TwoFactorService) resolveApproval(ctx context.Context, sessionID, approvalID string, status domain.ApprovalStatus) error {
	release := s.locks.acquire(sessionID)
	defer release()

	sess, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.PendingApprovalID != approvalID {
		// Already resolved by the other path, or superseded.
		return nil
	}

	if status == domain.ApprovalApproved {
		if err := sess.CompleteSecondFactor(); err != nil {
			return stepauth.ErrUnauthorized
		}
	} else {
		sess.PendingApprovalID = ""
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	_ = s.store.UnlinkApproval(ctx, approvalID)

	log.Info().Str("sessionID", sessionID).Str("approvalID", approvalID).
		Str("status", string(status)).Msg("Push approval resolved")
	audit.Log("TwoFactorService", "ResolveApproval", sess.UserID, approvalID, string(status), status == domain.ApprovalApproved, nil)
	metrics.PushResolvedTotal.Inc()
	return nil
}
