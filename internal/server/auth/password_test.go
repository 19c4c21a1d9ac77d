package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_PHCFormat(t *testing.T) {
	h, err := HashPassword("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$argon2id$v=19$m=32768,t=4,p=1$"), h)
	assert.Len(t, strings.Split(h, "$"), 6)
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPassword(t *testing.T) {
	h, err := HashPassword("correct horse")
	require.NoError(t, err)

	ok, err := VerifyPassword("correct horse", h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong", h)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = VerifyPassword("", h)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyPassword_UsesEmbeddedParams(t *testing.T) {
	old := Params{Memory: 8 * 1024, Time: 1, Threads: 2, SaltLen: 8, KeyLen: 16}
	h, err := HashPasswordWithParams("pw", old)
	require.NoError(t, err)

	ok, err := VerifyPassword("pw", h)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	cases := []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=18$m=32768,t=4,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=x,t=4,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=0,t=4,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=32768,t=4,p=1$!!!$aGFzaA",
		"$argon2id$v=19$m=32768,t=4,p=1$c2FsdA$",
	}
	for _, c := range cases {
		ok, err := VerifyPassword("pw", c)
		assert.ErrorIs(t, err, ErrInvalidPasswordHash, c)
		assert.False(t, ok)
	}
}

func TestNeedsRehash(t *testing.T) {
	current, err := HashPassword("pw")
	require.NoError(t, err)
	assert.False(t, NeedsRehash(current))

	weaker, err := HashPasswordWithParams("pw", Params{Memory: 16 * 1024, Time: 2, Threads: 1, SaltLen: 16, KeyLen: 32})
	require.NoError(t, err)
	assert.True(t, NeedsRehash(weaker))

	shortKey, err := HashPasswordWithParams("pw", Params{Memory: 32 * 1024, Time: 4, Threads: 1, SaltLen: 16, KeyLen: 16})
	require.NoError(t, err)
	assert.True(t, NeedsRehash(shortKey))

	assert.True(t, NeedsRehash("garbage"))
}
