package utils

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=3,p=2$"))

	ok, err := VerifyPassword("Str0ng!Passw0rd", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPasswordUsesFreshSalt(t *testing.T) {
	a, err := HashPassword("Str0ng!Passw0rd")
	require.NoError(t, err)
	b, err := HashPassword("Str0ng!Passw0rd")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	for _, h := range []string{"", "plain", "$bcrypt$v=1$x$y$z", "$argon2id$v=19$garbage$c2FsdA$aGFzaA"} {
		ok, err := VerifyPassword("anything", h)
		assert.Error(t, err, h)
		assert.False(t, ok)
	}
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		ok       bool
	}{
		{"valid", "Str0ng!Passw0rd", true},
		{"too short", "Sh0rt!pass", false},
		{"no upper", "str0ng!passw0rd", false},
		{"no lower", "STR0NG!PASSW0RD", false},
		{"no digit", "Strong!Password", false},
		{"no symbol", "Str0ngPassw0rd1", false},
		{"space is not a symbol", "Str0ng Passw0rd", false},
		{"exactly twelve", "Abcdefgh1!xy", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))
			assert.Equal(t, WeakPasswordMessage, err.Error())
		})
	}
}
