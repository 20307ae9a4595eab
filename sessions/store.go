// Package sessions provides server-side session storage. The logical shape
// of a session and its legal transitions live in the domain package; stores
// only persist, regenerate, and destroy records, plus the reverse index from
// push approval request IDs to the session that created them (the provider
// callback carries only the approval ID).
package sessions

import (
	"context"
	"time"

	"github.com/pilab-dev/stepauth/domain"
)

// Store is the session persistence contract. Implementations must treat a
// single call as atomic with respect to one request.
type Store interface {
	// Get returns the session for id, or stepauth.ErrSessionNotFound.
	Get(ctx context.Context, id string) (*domain.Session, error)
	// Save persists the session under its current ID until its expiry.
	Save(ctx context.Context, sess *domain.Session) error
	// Regenerate assigns the session a fresh random ID and removes the old
	// record. Used at the primary authentication transition to defeat
	// session fixation; no other transition regenerates.
	Regenerate(ctx context.Context, sess *domain.Session) error
	// Destroy removes the session record entirely.
	Destroy(ctx context.Context, id string) error

	// LinkApproval records approvalID -> sessionID for ttl, so an inbound
	// callback can resolve the owning session.
	LinkApproval(ctx context.Context, approvalID, sessionID string, ttl time.Duration) error
	// SessionIDForApproval resolves a previously linked approval ID, or
	// returns stepauth.ErrNoPendingRequest.
	SessionIDForApproval(ctx context.Context, approvalID string) (string, error)
	// UnlinkApproval drops the approval link once the request resolves.
	UnlinkApproval(ctx context.Context, approvalID string) error
}
