package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/pilab-dev/stepauth/services"
)

// BcryptPasswordHasher hashes new passwords with bcrypt. Verification also
// accepts legacy digests (single-round unsalted SHA-256, base64-encoded)
// produced by the previous system, so existing identities keep working.
// Legacy digests are never written back; only Hash output is stored.
type BcryptPasswordHasher struct {
	Cost int
}

// NewBcryptPasswordHasher creates a new BcryptPasswordHasher.
// Default cost is bcrypt.DefaultCost if cost <= 0.
func NewBcryptPasswordHasher(cost int) *BcryptPasswordHasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptPasswordHasher{Cost: cost}
}

// Hash generates a bcrypt hash for the given password.
func (h *BcryptPasswordHasher) Hash(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash generation failed: %w", err)
	}
	return string(hashedBytes), nil
}

// Verify compares a stored hash with a candidate password. Bcrypt hashes are
// verified by bcrypt; anything else is treated as a legacy SHA-256 digest and
// compared in constant time.
func (h *BcryptPasswordHasher) Verify(hashedPassword, password string) error {
	if isBcryptHash(hashedPassword) {
		return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	}
	return verifyLegacyDigest(hashedPassword, password)
}

func isBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// LegacyDigest reproduces the previous system's password digest:
// base64(sha256(password)), unsalted. Kept for verification only.
func LegacyDigest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}

func verifyLegacyDigest(storedDigest, password string) error {
	computed := LegacyDigest(password)
	if subtle.ConstantTimeCompare([]byte(computed), []byte(storedDigest)) != 1 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return nil
}

// Ensure it implements the interface
var _ services.PasswordHasher = (*BcryptPasswordHasher)(nil)
