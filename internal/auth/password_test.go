package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBcryptPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := NewBcryptPasswordHasher(bcryptTestCost)

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret", hash)

	assert.NoError(t, hasher.Verify(hash, "s3cret"))
	assert.Error(t, hasher.Verify(hash, "wrong"))
}

func TestBcryptPasswordHasher_LegacyDigest(t *testing.T) {
	hasher := NewBcryptPasswordHasher(bcryptTestCost)

	// Digest produced by the previous system: base64(sha256(password)).
	stored := LegacyDigest("s3cret")

	assert.NoError(t, hasher.Verify(stored, "s3cret"))
	assert.Error(t, hasher.Verify(stored, "s3cret "))
	assert.Error(t, hasher.Verify(stored, ""))
}

func TestBcryptPasswordHasher_NeverEmitsLegacyFormat(t *testing.T) {
	hasher := NewBcryptPasswordHasher(bcryptTestCost)

	hash, err := hasher.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, isBcryptHash(hash))
}

// Low cost keeps the test fast; production cost comes from config.
const bcryptTestCost = 4
