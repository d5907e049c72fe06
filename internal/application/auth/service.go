package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/otp-auth-api/internal/application/credential"
	"github.com/otp-auth-api/internal/application/session"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/id"
	"github.com/otp-auth-api/internal/pkg/validate"
)

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// CompleteSignupRequest repeats the signup fields; nothing is kept server-side between the two steps.
type CompleteSignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email,max=100"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
}

type LoginRequest struct {
	Email      string `json:"email" validate:"required,email,max=100"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"rememberMe"`
}

type OTPLoginRequest struct {
	Email string `json:"email" validate:"required,email,max=100"`
}

type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email,max=100"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// Result is a successful authentication: the user and the session to hand back as a cookie.
type Result struct {
	User    *domain.User
	Session *session.Token
}

type Service interface {
	RequestSignup(ctx context.Context, req SignupRequest) error
	CompleteSignup(ctx context.Context, req CompleteSignupRequest) (*Result, error)
	PasswordLogin(ctx context.Context, req LoginRequest) (*Result, error)
	RequestLoginOTP(ctx context.Context, req OTPLoginRequest) error
	VerifyLoginOTP(ctx context.Context, req VerifyOTPRequest) (*Result, error)
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
}

type otpIssuer interface {
	Issue(ctx context.Context, email string, purpose domain.OTPPurpose) error
	Check(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
	Consume(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
}

type credentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*domain.User, error)
}

type sessionMinter interface {
	Mint(u *domain.User, l session.Lifetime) (*session.Token, error)
}

type service struct {
	users    userStore
	otps     otpIssuer
	verifier credentialVerifier
	sessions sessionMinter
	hash     func(password string) (string, error)
	now      func() time.Time
}

type ServiceDeps struct {
	UserRepo   userStore
	OTPService otpIssuer
	Verifier   credentialVerifier
	Sessions   sessionMinter
}

func NewService(deps ServiceDeps) Service {
	return &service{
		users:    deps.UserRepo,
		otps:     deps.OTPService,
		verifier: deps.Verifier,
		sessions: deps.Sessions,
		hash:     credential.HashPassword,
		now:      time.Now,
	}
}

func (s *service) RequestSignup(ctx context.Context, req SignupRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return err
	}
	if err := s.requireAbsent(ctx, req.Email); err != nil {
		return err
	}
	return s.otps.Issue(ctx, req.Email, domain.OTPSignup)
}

// CompleteSignup checks the code, creates the user and only then consumes the code, so
// a failed insert leaves the code usable for a retry. The email guard in the user store
// keeps a code from creating more than one account.
func (s *service) CompleteSignup(ctx context.Context, req CompleteSignupRequest) (*Result, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	if err := s.otps.Check(ctx, req.Email, req.OTP, domain.OTPSignup); err != nil {
		return nil, err
	}
	hash, err := s.hash(req.Password)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	u := &domain.User{
		UserID:       id.New(),
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		Kind:         domain.AccountPassword,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.otps.Consume(ctx, req.Email, req.OTP, domain.OTPSignup); err != nil {
		slog.Warn("signup otp not consumed", "user_id", u.UserID, "err", err)
	}
	slog.Info("user signed up", "user_id", u.UserID)
	return s.mint(u, session.Extended)
}

func (s *service) PasswordLogin(ctx context.Context, req LoginRequest) (*Result, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	u, err := s.verifier.Verify(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	lifetime := session.Default
	if req.RememberMe {
		lifetime = session.Extended
	}
	return s.mint(u, lifetime)
}

func (s *service) RequestLoginOTP(ctx context.Context, req OTPLoginRequest) error {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return err
	}
	if _, err := s.users.GetByEmail(ctx, req.Email); err != nil {
		return err
	}
	return s.otps.Issue(ctx, req.Email, domain.OTPLogin)
}

func (s *service) VerifyLoginOTP(ctx context.Context, req VerifyOTPRequest) (*Result, error) {
	req.Email = domain.NormalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return nil, err
	}
	u, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, err
	}
	if err := s.otps.Consume(ctx, req.Email, req.OTP, domain.OTPLogin); err != nil {
		return nil, err
	}
	return s.mint(u, session.Default)
}

// requireAbsent fails with domain.ErrAlreadyExists when email is registered.
func (s *service) requireAbsent(ctx context.Context, email string) error {
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return domain.ErrEmailTaken
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *service) mint(u *domain.User, l session.Lifetime) (*Result, error) {
	tok, err := s.sessions.Mint(u, l)
	if err != nil {
		return nil, err
	}
	return &Result{User: u, Session: tok}, nil
}
