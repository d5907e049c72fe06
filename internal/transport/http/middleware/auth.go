package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/otp-auth-api/internal/application/session"
)

type contextKey string

const identityKey contextKey = "identity"

type tokenParser interface {
	Parse(token string) (*session.Identity, error)
}

// Auth returns middleware that verifies the session token and injects the identity into context.
// The token is read from the session cookie, falling back to a Bearer Authorization header.
func Auth(sessions tokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := tokenFromRequest(r)
			if tokenStr == "" {
				writeJSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			ident, err := sessions.Parse(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			ctx := context.WithValue(r.Context(), identityKey, ident)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(session.CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}

// IdentityFromContext extracts the verified session identity from the request context.
func IdentityFromContext(ctx context.Context) (*session.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*session.Identity)
	return id, ok
}
