package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, pw := range []string{"password1", "correct horse battery staple", "pässwörd", " "} {
		hash, err := h.Hash(pw)
		require.NoError(t, err)
		assert.NotContains(t, hash, pw)
		assert.True(t, h.Verify(pw, hash), "password %q", pw)
		assert.False(t, h.Verify(pw+"x", hash), "password %q", pw)
	}
}

func TestHasherSaltsEveryHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("password1")
	require.NoError(t, err)
	b, err := h.Hash("password1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("password1", a))
	assert.True(t, h.Verify("password1", b))
}

func TestHasherDifferentPasswordsDoNotVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hash, err := h.Hash("password2")
	require.NoError(t, err)
	assert.False(t, h.Verify("password1", hash))
}

func TestHasherMalformedHash(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	for _, bad := range []string{"", "not-a-hash", "$2a$04$short", "$2a$99$" + "abcdefghijklmnopqrstuvabcdefghijklmnopqrstuvwxyz12345"} {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("password1", bad))
		})
	}
}

func TestHasherEmbedsCost(t *testing.T) {
	h := NewHasher(bcrypt.MinCost + 1)

	hash, err := h.Hash("password1")
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestHasherCostFallback(t *testing.T) {
	assert.Equal(t, DefaultCost, NewHasher(0).Cost())
	assert.Equal(t, DefaultCost, NewHasher(bcrypt.MaxCost+1).Cost())
	assert.Equal(t, 10, NewHasher(10).Cost())
}

func TestHasherRejectsEmpty(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)
}
