// Package auth issues and verifies session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims carries the session identity alongside the registered claims.
type Claims struct {
	jwt.RegisteredClaims
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Identity is what a verified session token says about its bearer.
type Identity struct {
	ID       string
	Email    string
	Username string
}

type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (s *TokenSigner) WithClock(now func() time.Time) *TokenSigner {
	s.now = now
	return s
}

func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Issue signs an HS256 token for id valid for the signer TTL.
func (s *TokenSigner) Issue(id Identity) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		ID:       id.ID,
		Email:    id.Email,
		Username: id.Username,
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse verifies a token. Expired tokens yield ErrTokenExpired, every other
// failure ErrTokenInvalid.
func (s *TokenSigner) Parse(tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}
	if !token.Valid || claims.ID == "" {
		return Identity{}, ErrTokenInvalid
	}
	return Identity{ID: claims.ID, Email: claims.Email, Username: claims.Username}, nil
}
