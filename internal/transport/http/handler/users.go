package handler

import (
	"net/http"

	"github.com/otp-auth-api/internal/application/auth"
	"github.com/otp-auth-api/internal/domain"
)

// UserHandler serves signup and login under /user.
type UserHandler struct {
	svc     auth.Service
	secure  bool
	metrics authRecorder
}

// NewUserHandler builds the handler. secureCookies sets the Secure attribute on session cookies;
// metrics may be nil.
func NewUserHandler(svc auth.Service, secureCookies bool, metrics authRecorder) *UserHandler {
	return &UserHandler{svc: svc, secure: secureCookies, metrics: metrics}
}

// RequestSignup is POST /user/signup.
func (h *UserHandler) RequestSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.svc.RequestSignup(r.Context(), req)
	record(h.metrics, "signup_request", err)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent successfully"})
}

// CompleteSignup is PUT /user/signup.
func (h *UserHandler) CompleteSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.CompleteSignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.CompleteSignup(r.Context(), req)
	record(h.metrics, "signup_complete", err)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.respondWithSession(w, http.StatusCreated, "User created successfully", res)
}

// Login is POST /user/login.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.PasswordLogin(r.Context(), req)
	record(h.metrics, "password_login", err)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.respondWithSession(w, http.StatusOK, "Login successful", res)
}

// RequestLoginOTP is POST /user/login/otp-request.
func (h *UserHandler) RequestLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.OTPLoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	err := h.svc.RequestLoginOTP(r.Context(), req)
	record(h.metrics, "otp_request", err)
	if err != nil {
		httpError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "OTP sent successfully"})
}

// VerifyLoginOTP is POST /user/login/otp-verify.
func (h *UserHandler) VerifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyOTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.VerifyLoginOTP(r.Context(), req)
	record(h.metrics, "otp_login", err)
	if err != nil {
		httpError(w, r, err)
		return
	}
	h.respondWithSession(w, http.StatusOK, "Login successful", res)
}

func (h *UserHandler) respondWithSession(w http.ResponseWriter, status int, msg string, res *auth.Result) {
	setSessionCookie(w, res.Session, h.secure)
	writeJSON(w, status, UserEnvelope{Message: msg, User: toSafeUser(res.User)})
}

func toSafeUser(u *domain.User) *SafeUser {
	if u == nil {
		return nil
	}
	return &SafeUser{ID: u.UserID, Username: u.Username, Email: u.Email}
}
