package signature

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// NonceRegistry remembers callback nonces for the lifetime of an approval
// request, so a validly-signed callback cannot be replayed. Entries expire
// on their own; the registry only grows with in-window callbacks.
type NonceRegistry struct {
	cache *ttlcache.Cache[string, struct{}]
}

// NewNonceRegistry creates a registry whose entries live for window.
// The window should be at least the provider's approval request TTL.
func NewNonceRegistry(window time.Duration) *NonceRegistry {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](window),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	go cache.Start()

	return &NonceRegistry{cache: cache}
}

// Consume records the nonce and reports whether it was seen before within
// the window. The first caller gets false; every repeat gets true.
func (r *NonceRegistry) Consume(nonce string) bool {
	if r.cache.Has(nonce) {
		return true
	}
	r.cache.Set(nonce, struct{}{}, ttlcache.DefaultTTL)

	return false
}

// Forget releases a consumed nonce. Callers that fail after Consume release
// the nonce so the provider's redelivery of the same callback is not
// mistaken for a replay.
func (r *NonceRegistry) Forget(nonce string) {
	r.cache.Delete(nonce)
}

// Close stops the expiry goroutine.
func (r *NonceRegistry) Close() {
	r.cache.Stop()
}
