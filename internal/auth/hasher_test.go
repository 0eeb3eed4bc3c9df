package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherHashAndVerify(t *testing.T) {
	hasher := NewHasher(4)

	tests := []struct {
		name     string
		password string
	}{
		{name: "simple password", password: "secret1"},
		{name: "unicode password", password: "pässwörd-123"},
		{name: "exactly 72 bytes", password: strings.Repeat("a", 72)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := hasher.Hash(tt.password)
			require.NoError(t, err)
			assert.NotEmpty(t, hash)
			assert.NotEqual(t, tt.password, hash)

			assert.True(t, hasher.Verify(tt.password, hash))
			assert.False(t, hasher.Verify(tt.password+"x", hash))
		})
	}
}

func TestHasherWrongPasswordIsFalseNotError(t *testing.T) {
	hasher := NewHasher(4)

	hash, err := hasher.Hash("correct-horse")
	require.NoError(t, err)

	assert.False(t, hasher.Verify("battery-staple", hash))
	assert.False(t, hasher.Verify("", hash))
	assert.False(t, hasher.Verify("correct-horse", "not-a-bcrypt-hash"))
}

func TestHasherTruncatesBeyond72Bytes(t *testing.T) {
	hasher := NewHasher(4)

	long := strings.Repeat("a", 72) + "tail"
	hash, err := hasher.Hash(long)
	require.NoError(t, err)

	// Hashing is not injective past the bcrypt limit: any password
	// agreeing on the first 72 bytes verifies.
	assert.True(t, hasher.Verify(long, hash))
	assert.True(t, hasher.Verify(strings.Repeat("a", 72)+"other-tail", hash))
	assert.True(t, hasher.Verify(strings.Repeat("a", 72), hash))

	// Differences inside the first 72 bytes still matter.
	assert.False(t, hasher.Verify(strings.Repeat("b", 72), hash))
}

func TestNewHasherClampsCost(t *testing.T) {
	hasher := NewHasher(99)
	hash, err := hasher.Hash("secret1")
	require.NoError(t, err)
	assert.True(t, hasher.Verify("secret1", hash))
}
