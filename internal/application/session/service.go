package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/otp-auth-api/internal/domain"
	jwtinfra "github.com/otp-auth-api/internal/infrastructure/jwt"
)

// Lifetime selects how long a minted session stays valid.
type Lifetime int

const (
	// Default is used for plain password and OTP logins.
	Default Lifetime = iota
	// Extended is used for remember-me, right after signup and for provider sign-in.
	Extended
)

// CookieName is the cookie a session token travels in.
const CookieName = "token"

// ErrInvalidToken is returned by Parse for any token that must not be trusted.
var ErrInvalidToken = errors.New("invalid or expired token")

// Token is a freshly minted session. MaxAge equals the token lifetime and is
// what the cookie writer uses.
type Token struct {
	Value     string
	ExpiresAt time.Time
	MaxAge    time.Duration
}

// Identity is what a verified token proves.
type Identity struct {
	UserID    string    `json:"id"`
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Service interface {
	Mint(u *domain.User, l Lifetime) (*Token, error)
	Parse(token string) (*Identity, error)
}

type tokenSigner interface {
	Sign(userID, email string, issuedAt, expiresAt time.Time) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type service struct {
	signer      tokenSigner
	defaultTTL  time.Duration
	extendedTTL time.Duration
	now         func() time.Time
}

type ServiceDeps struct {
	JWTProvider tokenSigner
	DefaultTTL  time.Duration
	ExtendedTTL time.Duration
}

type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(deps ServiceDeps, opts ...Option) Service {
	s := &service{
		signer:      deps.JWTProvider,
		defaultTTL:  deps.DefaultTTL,
		extendedTTL: deps.ExtendedTTL,
		now:         time.Now,
	}
	if s.defaultTTL <= 0 {
		s.defaultTTL = 24 * time.Hour
	}
	if s.extendedTTL <= 0 {
		s.extendedTTL = 30 * 24 * time.Hour
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Mint(u *domain.User, l Lifetime) (*Token, error) {
	ttl := s.defaultTTL
	if l == Extended {
		ttl = s.extendedTTL
	}
	now := s.now()
	exp := now.Add(ttl)
	value, err := s.signer.Sign(u.UserID, u.Email, now, exp)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}
	return &Token{Value: value, ExpiresAt: exp, MaxAge: ttl}, nil
}

func (s *service) Parse(token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := &Identity{UserID: claims.UserID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time
	}
	return id, nil
}
