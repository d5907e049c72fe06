package handler

import (
	"net/http"
	"time"

	"github.com/otp-auth-api/internal/application/session"
)

// oauthStateCookie carries the CSRF state between /auth/{provider} and its callback.
const oauthStateCookie = "oauthstate"

const oauthStateMaxAge = 10 * time.Minute

// setSessionCookie hands tok to the browser. MaxAge always equals the token lifetime.
func setSessionCookie(w http.ResponseWriter, tok *session.Token, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    tok.Value,
		Path:     "/",
		MaxAge:   int(tok.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func clearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     session.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// The state cookie is Lax so it survives the top-level redirect back from the provider.
func setStateCookie(w http.ResponseWriter, provider, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/" + provider,
		MaxAge:   int(oauthStateMaxAge / time.Second),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearStateCookie(w http.ResponseWriter, provider string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/auth/" + provider,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
