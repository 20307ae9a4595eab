package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the authoritative position of a session in the
// authentication lifecycle. Modeled as a tagged state rather than a pair of
// booleans so that "second factor verified but not primary authenticated"
// is not representable.
type SessionState string

const (
	StateAnonymous            SessionState = "ANONYMOUS"
	StatePrimaryAuthenticated SessionState = "PRIMARY_AUTHENTICATED"
	StateFullyAuthenticated   SessionState = "FULLY_AUTHENTICATED"
)

// Routing targets returned by NextURL for each session state.
const (
	URLLogin        = "/login"
	URLSecondFactor = "/2fa"
	URLProtected    = "/protected"
)

// Session is the logical session record. Transport concerns (cookies,
// persistence backend) live in the sessions package; this type only defines
// the fields and the legal transitions between them.
//
// PhoneVerified is an orthogonal claim set by the phone verification flow.
// It does not participate in the login state machine.
type Session struct {
	ID                string       `json:"id"`
	UserID            string       `json:"user_id,omitempty"`
	Username          string       `json:"username,omitempty"`
	State             SessionState `json:"state"`
	PhoneVerified     bool         `json:"phone_verified"`
	PendingApprovalID string       `json:"pending_approval_id,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	ExpiresAt         time.Time    `json:"expires_at"`
}

// NewSession returns a fresh anonymous session with a random identifier.
func NewSession(ttl time.Duration) *Session {
	now := time.Now().UTC()

	return &Session{
		ID:        uuid.NewString(),
		State:     StateAnonymous,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// BeginPrimary records a successful primary (password) authentication.
// All second factor state is reset; the caller must regenerate the session
// identifier through the store before persisting, to defeat fixation.
func (s *Session) BeginPrimary(userID, username string) {
	s.UserID = userID
	s.Username = username
	s.State = StatePrimaryAuthenticated
	s.PhoneVerified = false
	s.PendingApprovalID = ""
}

// CompleteSecondFactor transitions the session to fully authenticated.
// It is idempotent: resolving an already-resolved session is a no-op, which
// is what lets the polling path and the callback path race safely. From the
// anonymous state the transition is illegal.
func (s *Session) CompleteSecondFactor() error {
	switch s.State {
	case StateFullyAuthenticated:
		return nil
	case StatePrimaryAuthenticated:
		s.State = StateFullyAuthenticated
		s.PendingApprovalID = ""
		return nil
	default:
		return ErrIllegalTransition
	}
}

// NextURL routes the caller according to the current state.
func (s *Session) NextURL() string {
	switch s.State {
	case StateFullyAuthenticated:
		return URLProtected
	case StatePrimaryAuthenticated:
		return URLSecondFactor
	default:
		return URLLogin
	}
}

// Expired reports whether the session passed its expiry.
func (s *Session) Expired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}
