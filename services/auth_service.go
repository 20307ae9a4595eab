package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
	"github.com/pilab-dev/stepauth/internal/audit"
	"github.com/pilab-dev/stepauth/internal/metrics"
	"github.com/pilab-dev/stepauth/provider"
	"github.com/pilab-dev/stepauth/sessions"
)

// AuthService handles primary (password) authentication, registration, and
// the session lifecycle around them.
type AuthService struct {
	userRepo     domain.UserRepository
	store        sessions.Store
	hasher       PasswordHasher
	secondFactor provider.SecondFactorProvider
	sessionTTL   time.Duration
}

// NewAuthService creates a new AuthService.
func NewAuthService(
	userRepo domain.UserRepository,
	store sessions.Store,
	hasher PasswordHasher,
	secondFactor provider.SecondFactorProvider,
	sessionTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:     userRepo,
		store:        store,
		hasher:       hasher,
		secondFactor: secondFactor,
		sessionTTL:   sessionTTL,
	}
}

// Login verifies the credential against the user directory and, on success,
// transitions the session to primary-authenticated. The session identifier
// is regenerated so a pre-login identifier can never survive authentication.
func (s *AuthService) Login(ctx context.Context, sess *domain.Session, username, password string) error {
	log.Debug().Str("username", username).Msg("Login attempt")

	user, err := s.userRepo.GetUserByUsername(ctx, username)
	if err != nil {
		audit.Log("AuthService", "Login", username, "", "User not found or directory error", false, err)
		metrics.LoginFailureTotal.Inc()
		if errors.Is(err, stepauth.ErrUserNotFound) {
			return stepauth.ErrUserNotFound
		}
		return fmt.Errorf("user directory lookup failed: %w", err)
	}

	if password != "" {
		if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
			log.Warn().Str("username", username).Msg("Login: incorrect password")
			audit.Log("AuthService", "Login", user.ID, user.ID, "Incorrect password", false, err)
			metrics.LoginFailureTotal.Inc()
			return stepauth.ErrInvalidCredential
		}
	}

	return s.createSession(ctx, sess, user)
}

// RegisterInput carries the fields needed to create an identity and enroll
// it with the second factor provider.
type RegisterInput struct {
	Username    string
	Password    string
	Email       string
	CountryCode string
	PhoneNumber string
}

// Register creates the identity, then enrolls it with the second factor
// provider. If enrollment fails the identity persists in a credential-only
// state and the error is surfaced; registration is incomplete until a later
// enrollment succeeds. On full success the session is created exactly as for
// login.
func (s *AuthService) Register(ctx context.Context, sess *domain.Session, in RegisterInput) (*domain.User, error) {
	if in.Username == "" || in.Password == "" || in.Email == "" || in.CountryCode == "" || in.PhoneNumber == "" {
		return nil, stepauth.ErrMissingField
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Username:     in.Username,
		PasswordHash: hash,
		Email:        in.Email,
		CountryCode:  in.CountryCode,
		PhoneNumber:  in.PhoneNumber,
	}
	if err := s.userRepo.CreateUser(ctx, user); err != nil {
		audit.Log("AuthService", "Register", in.Username, "", "User creation failed", false, err)
		return nil, err
	}
	metrics.UserRegisteredTotal.Inc()

	secondFactorID, err := s.secondFactor.RegisterUser(ctx, in.Email, in.CountryCode, in.PhoneNumber)
	if err != nil {
		// The identity stays credential-only; enrollment can be retried later.
		log.Error().Err(err).Str("username", in.Username).Msg("Register: second factor enrollment failed")
		audit.Log("AuthService", "Register", user.ID, user.ID, "Second factor enrollment failed", false, err)
		return user, err
	}

	user.SecondFactorID = secondFactorID
	if err := s.userRepo.UpdateUser(ctx, user); err != nil {
		log.Error().Err(err).Str("userID", user.ID).Msg("Register: failed to persist second factor ID")
		return user, fmt.Errorf("failed to persist second factor ID: %w", err)
	}

	if err := s.createSession(ctx, sess, user); err != nil {
		return user, err
	}
	audit.Log("AuthService", "Register", user.ID, user.ID, "Registration complete", true, nil)
	return user, nil
}

// Logout destroys the session identity entirely.
func (s *AuthService) Logout(ctx context.Context, sess *domain.Session) error {
	if err := s.store.Destroy(ctx, sess.ID); err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	audit.Log("AuthService", "Logout", sess.UserID, sess.ID, "", true, nil)
	return nil
}

// Status returns the URL the caller should proceed to for the session's
// current authentication state.
func (s *AuthService) Status(sess *domain.Session) string {
	return sess.NextURL()
}

func (s *AuthService) createSession(ctx context.Context, sess *domain.Session, user *domain.User) error {
	sess.BeginPrimary(user.ID, user.Username)
	sess.ExpiresAt = time.Now().UTC().Add(s.sessionTTL)

	if err := s.store.Regenerate(ctx, sess); err != nil {
		return fmt.Errorf("failed to regenerate session: %w", err)
	}

	log.Info().Str("userID", user.ID).Str("username", user.Username).Msg("Primary authentication succeeded")
	audit.Log("AuthService", "Login", user.ID, sess.ID, "Primary authentication", true, nil)
	metrics.LoginSuccessTotal.Inc()
	return nil
}
