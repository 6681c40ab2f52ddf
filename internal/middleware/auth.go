package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/repohub/repohub-backend/internal/auth"
)

type contextKey string

const userContextKey contextKey = "user"

// User is the authenticated caller attached to the request context.
type User struct {
	ID       primitive.ObjectID
	Email    string
	Username string
}

// WithUser returns ctx carrying u. Handlers tests use it to skip the token.
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}

// UserFromContext returns the caller set by RequireAuth.
func UserFromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(userContextKey).(User)
	return u, ok
}

type Authenticator struct {
	signer *auth.TokenSigner
}

func NewAuthenticator(signer *auth.TokenSigner) *Authenticator {
	return &Authenticator{signer: signer}
}

// Authenticate resolves a raw token into a User. The returned status is the
// one to answer with on failure.
func (a *Authenticator) Authenticate(token string) (User, int, string) {
	id, err := a.signer.Parse(token)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return User{}, http.StatusUnauthorized, "Token expirado"
	case err != nil:
		return User{}, http.StatusForbidden, "Token inválido"
	}
	oid, err := primitive.ObjectIDFromHex(id.ID)
	if err != nil {
		return User{}, http.StatusForbidden, "Token inválido"
	}
	return User{ID: oid, Email: id.Email, Username: id.Username}, 0, ""
}

// RequireAuth demands "Authorization: Bearer <token>".
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeError(w, http.StatusUnauthorized, "Token no proporcionado")
			return
		}
		user, status, msg := a.Authenticate(token)
		if status != 0 {
			writeError(w, status, msg)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}
