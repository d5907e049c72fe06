package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldAuthProvider    = "auth_provider"
	fieldProviderSubject = "provider_subject"
)

// maxUsernameAttempts bounds how many suffixed usernames are tried for a new account.
const maxUsernameAttempts = 5

// Identity is what a third-party provider confirmed about the user.
type Identity struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Result is the local account a provider identity resolved to.
type Result struct {
	UserID   string
	Username string
	Email    string
	Created  bool
	User     *domain.User
}

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
}

// Bridge finds or creates the local user for a provider sign-in.
type Bridge struct {
	users  userStore
	suffix func() int
	now    func() time.Time
}

type Option func(*Bridge)

// WithSuffix replaces the random username suffix source.
func WithSuffix(f func() int) Option {
	return func(b *Bridge) { b.suffix = f }
}

func NewBridge(users userStore, opts ...Option) *Bridge {
	b := &Bridge{
		users:  users,
		suffix: func() int { return rand.Intn(1000) },
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// SignIn resolves ident to a local account. Every failure wraps domain.ErrSignInFailed.
func (b *Bridge) SignIn(ctx context.Context, ident Identity) (*Result, error) {
	email := domain.NormalizeEmail(ident.Email)
	if email == "" {
		return nil, fmt.Errorf("provider returned no email: %w", domain.ErrSignInFailed)
	}
	u, err := b.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		b.attach(ctx, u, ident)
		return result(u, false), nil
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("lookup %s: %v: %w", email, err, domain.ErrSignInFailed)
	}

	u, created, err := b.create(ctx, email, ident)
	if err != nil {
		return nil, fmt.Errorf("create account for %s: %v: %w", email, err, domain.ErrSignInFailed)
	}
	return result(u, created), nil
}

// attach records the provider identity on an existing account that has none yet.
// A failure here does not abort the sign-in.
func (b *Bridge) attach(ctx context.Context, u *domain.User, ident Identity) {
	if u.AuthProvider != "" || ident.Provider == "" {
		return
	}
	err := b.users.Update(ctx, u.UserID, map[string]interface{}{
		fieldAuthProvider:    ident.Provider,
		fieldProviderSubject: ident.Subject,
	})
	if err != nil {
		slog.Warn("failed to attach provider identity", "user_id", u.UserID, "provider", ident.Provider, "err", err)
		return
	}
	u.AuthProvider = ident.Provider
	u.ProviderSubject = ident.Subject
}

// create inserts a password-less account. It reports false when a concurrent
// sign-in won the race and the existing account is returned instead.
func (b *Bridge) create(ctx context.Context, email string, ident Identity) (*domain.User, bool, error) {
	base, _, _ := strings.Cut(email, "@")
	if base == "" {
		return nil, false, errors.New("email has no local part")
	}
	now := b.now().UTC()
	for attempt := 0; attempt < maxUsernameAttempts; attempt++ {
		username := base
		if attempt > 0 {
			username = base + strconv.Itoa(b.suffix())
		}
		_, err := b.users.GetByUsername(ctx, username)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
		u := &domain.User{
			UserID:          id.New(),
			Username:        username,
			Email:           email,
			Kind:            domain.AccountProvider,
			AuthProvider:    ident.Provider,
			ProviderSubject: ident.Subject,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		err = b.users.Create(ctx, u)
		switch {
		case err == nil:
			return u, true, nil
		case errors.Is(err, domain.ErrUsernameTaken):
			continue
		case errors.Is(err, domain.ErrEmailTaken):
			winner, err := b.users.GetByEmail(ctx, email)
			return winner, false, err
		default:
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("no free username after %d attempts", maxUsernameAttempts)
}

func result(u *domain.User, created bool) *Result {
	return &Result{UserID: u.UserID, Username: u.Username, Email: u.Email, Created: created, User: u}
}
