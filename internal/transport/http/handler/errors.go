package handler

import (
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/validate"
)

const msgInternal = "Internal Server Error"

// httpError maps a service error to a client response. Known sentinels become 400
// with a fixed public message; anything else is logged and hidden behind a 500.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *validate.Error
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusBadRequest, "User not found")
	case errors.Is(err, domain.ErrUsernameTaken):
		writeError(w, http.StatusBadRequest, "Username already taken")
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, domain.ErrInvalidOrExpired):
		writeError(w, http.StatusBadRequest, "Invalid or expired OTP")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "Bad request")
	default:
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", chimiddleware.GetReqID(r.Context()),
			"err", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal)
	}
}

// outcome is the metrics label for the result of an auth flow.
func outcome(err error) string {
	var ve *validate.Error
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &ve), errors.Is(err, domain.ErrBadRequest):
		return "bad_request"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, domain.ErrInvalidOrExpired):
		return "invalid_or_expired"
	case errors.Is(err, domain.ErrSignInFailed):
		return "sign_in_failed"
	default:
		return "error"
	}
}

// authRecorder receives one event per finished auth flow.
type authRecorder interface {
	AuthEvent(flow, outcome string)
}

func record(m authRecorder, flow string, err error) {
	if m != nil {
		m.AuthEvent(flow, outcome(err))
	}
}
