package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
)

// MemoryStore implements Store using ttlcache. Suitable for tests and
// single-process deployments; production uses the Redis store.
type MemoryStore struct {
	sessions  *ttlcache.Cache[string, *domain.Session]
	approvals *ttlcache.Cache[string, string]
}

// NewMemoryStore creates an in-memory session store with automatic expiry.
//
//nolint:ireturn
func NewMemoryStore(defaultTTL time.Duration) *MemoryStore {
	sessions := ttlcache.New(
		ttlcache.WithTTL[string, *domain.Session](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, *domain.Session](),
	)
	approvals := ttlcache.New(
		ttlcache.WithTTL[string, string](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)

	go sessions.Start()
	go approvals.Start()

	return &MemoryStore{sessions: sessions, approvals: approvals}
}

// Get implements Store.Get.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.Session, error) {
	item := s.sessions.Get(id)
	if item == nil {
		return nil, stepauth.ErrSessionNotFound
	}

	sess := item.Value()
	if sess.Expired() {
		s.sessions.Delete(id)
		return nil, stepauth.ErrSessionNotFound
	}

	// Hand out a copy, mirroring the value semantics of the Redis store's
	// JSON round-trip. Callers never share a struct with the cache.
	cp := *sess
	return &cp, nil
}

// Save implements Store.Save.
func (s *MemoryStore) Save(_ context.Context, sess *domain.Session) error {
	cp := *sess
	s.sessions.Set(cp.ID, &cp, time.Until(cp.ExpiresAt))
	return nil
}

// Regenerate implements Store.Regenerate.
func (s *MemoryStore) Regenerate(_ context.Context, sess *domain.Session) error {
	oldID := sess.ID
	sess.ID = uuid.NewString()

	cp := *sess
	s.sessions.Set(cp.ID, &cp, time.Until(cp.ExpiresAt))
	if oldID != "" {
		s.sessions.Delete(oldID)
	}
	return nil
}

// Destroy implements Store.Destroy.
func (s *MemoryStore) Destroy(_ context.Context, id string) error {
	s.sessions.Delete(id)
	return nil
}

// LinkApproval implements Store.LinkApproval.
func (s *MemoryStore) LinkApproval(_ context.Context, approvalID, sessionID string, ttl time.Duration) error {
	s.approvals.Set(approvalID, sessionID, ttl)
	return nil
}

// SessionIDForApproval implements Store.SessionIDForApproval.
func (s *MemoryStore) SessionIDForApproval(_ context.Context, approvalID string) (string, error) {
	item := s.approvals.Get(approvalID)
	if item == nil {
		return "", stepauth.ErrNoPendingRequest
	}
	return item.Value(), nil
}

// UnlinkApproval implements Store.UnlinkApproval.
func (s *MemoryStore) UnlinkApproval(_ context.Context, approvalID string) error {
	s.approvals.Delete(approvalID)
	return nil
}

// Close stops the expiry goroutines.
func (s *MemoryStore) Close() error {
	s.sessions.Stop()
	s.approvals.Stop()
	return nil
}

var _ Store = (*MemoryStore)(nil)
