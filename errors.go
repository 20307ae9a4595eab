package stepauth

import "errors"

var (
	// ErrUserNotFound is returned when no identity matches the given username.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when registering an already-taken username.
	ErrUserExists = errors.New("username already registered")
	// ErrInvalidCredential is an expected, user-facing login failure.
	ErrInvalidCredential = errors.New("invalid username or password")
	// ErrInvalidCode is an expected, user-facing code verification failure.
	ErrInvalidCode = errors.New("invalid verification code")
	// ErrUnauthorized is returned when an operation is attempted out of
	// session state machine order (e.g. OTP dispatch before primary login).
	ErrUnauthorized = errors.New("operation not permitted in current session state")
	// ErrAuthenticityFailure is returned when a callback fails signature
	// verification or replays a previously consumed nonce. A callback that
	// fails authenticity must never mutate any session.
	ErrAuthenticityFailure = errors.New("callback authenticity verification failed")
	// ErrProviderUnavailable wraps transport or provider-side errors. It is
	// surfaced to the caller as retryable; the raw provider response is never
	// echoed to external callers.
	ErrProviderUnavailable = errors.New("second factor provider unavailable")
	// ErrMissingField is a caller usage error for empty required fields.
	ErrMissingField = errors.New("missing required field")
	// ErrNoPendingRequest is returned when polling for a push approval that
	// was never created or has already been resolved.
	ErrNoPendingRequest = errors.New("no pending approval request")
	// ErrSessionNotFound is returned by session stores for unknown or
	// expired session identifiers.
	ErrSessionNotFound = errors.New("session not found")
)
