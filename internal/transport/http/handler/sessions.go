package handler

import (
	"net/http"

	"github.com/otp-auth-api/internal/transport/http/middleware"
)

// SessionHandler exposes the current session cookie.
type SessionHandler struct {
	secure bool
}

func NewSessionHandler(secureCookies bool) *SessionHandler {
	return &SessionHandler{secure: secureCookies}
}

// Me is GET /user/me. It runs behind middleware.Auth.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// Logout is POST /user/logout. Tokens are stateless, so this only drops the cookie.
func (h *SessionHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	clearSessionCookie(w, h.secure)
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "Logged out"})
}
