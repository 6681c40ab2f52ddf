package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSigner_RoundTrip(t *testing.T) {
	s := NewTokenSigner("secret", time.Hour)
	token, expires, err := s.Issue(Identity{ID: "u1", Email: "ana@x.io", Username: "ana"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expires, 5*time.Second)

	id, err := s.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "u1", Email: "ana@x.io", Username: "ana"}, id)
}

func TestTokenSigner_Expired(t *testing.T) {
	now := time.Now()
	s := NewTokenSigner("secret", time.Minute).WithClock(func() time.Time { return now })
	token, _, err := s.Issue(Identity{ID: "u1"})
	require.NoError(t, err)

	s.WithClock(func() time.Time { return now.Add(2 * time.Minute) })
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenSigner_Invalid(t *testing.T) {
	s := NewTokenSigner("secret", time.Hour)
	other := NewTokenSigner("other-secret", time.Hour)
	foreign, _, err := other.Issue(Identity{ID: "u1"})
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":       "not-a-token",
		"wrong secret":  foreign,
		"empty":         "",
		"none alg":      noneToken(t),
		"missing claim": signedWithout(t, "secret"),
	} {
		_, err := s.Parse(token)
		assert.ErrorIs(t, err, ErrTokenInvalid, name)
	}
}

func noneToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "u1"})
	s, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return s
}

func signedWithout(t *testing.T, secret string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}
