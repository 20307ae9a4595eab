// Package redis implements the sessions.Store interface on Redis, for
// deployments where multiple server processes share session state.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
	"github.com/pilab-dev/stepauth/sessions"
)

// SessionStore implements sessions.Store using Redis.
type SessionStore struct {
	client *redis.Client
	prefix string // Optional prefix for keys
}

// NewSessionStore creates a new [SessionStore] instance.
func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	return &SessionStore{
		client: client,
		prefix: prefix,
	}
}

func (r *SessionStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *SessionStore) approvalKey(approvalID string) string {
	return fmt.Sprintf("%s:approval:%s", r.prefix, approvalID)
}

// Get implements sessions.Store.Get.
func (r *SessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, stepauth.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session from Redis: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if sess.Expired() {
		return nil, stepauth.ErrSessionNotFound
	}
	return &sess, nil
}

// Save implements sessions.Store.Save.
func (r *SessionStore) Save(ctx context.Context, sess *domain.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return stepauth.ErrSessionNotFound
	}
	if err := r.client.Set(ctx, r.sessionKey(sess.ID), raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session in Redis: %w", err)
	}
	return nil
}

// Regenerate implements sessions.Store.Regenerate.
func (r *SessionStore) Regenerate(ctx context.Context, sess *domain.Session) error {
	oldID := sess.ID
	sess.ID = uuid.NewString()

	if err := r.Save(ctx, sess); err != nil {
		sess.ID = oldID
		return err
	}
	if oldID != "" {
		if err := r.client.Del(ctx, r.sessionKey(oldID)).Err(); err != nil {
			return fmt.Errorf("failed to delete old session in Redis: %w", err)
		}
	}
	return nil
}

// Destroy implements sessions.Store.Destroy.
func (r *SessionStore) Destroy(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session in Redis: %w", err)
	}
	return nil
}

// LinkApproval implements sessions.Store.LinkApproval.
func (r *SessionStore) LinkApproval(ctx context.Context, approvalID, sessionID string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.approvalKey(approvalID), sessionID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to link approval in Redis: %w", err)
	}
	return nil
}

// SessionIDForApproval implements sessions.Store.SessionIDForApproval.
func (r *SessionStore) SessionIDForApproval(ctx context.Context, approvalID string) (string, error) {
	sessionID, err := r.client.Get(ctx, r.approvalKey(approvalID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", stepauth.ErrNoPendingRequest
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve approval in Redis: %w", err)
	}
	return sessionID, nil
}

// UnlinkApproval implements sessions.Store.UnlinkApproval.
func (r *SessionStore) UnlinkApproval(ctx context.Context, approvalID string) error {
	if err := r.client.Del(ctx, r.approvalKey(approvalID)).Err(); err != nil {
		return fmt.Errorf("failed to unlink approval in Redis: %w", err)
	}
	return nil
}

var _ sessions.Store = (*SessionStore)(nil)
