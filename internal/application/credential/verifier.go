package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/otp-auth-api/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

type userStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Verifier checks an email/password pair against the stored bcrypt hash.
type Verifier struct {
	users userStore
}

func NewVerifier(users userStore) *Verifier {
	return &Verifier{users: users}
}

// Verify returns the user when password matches. A mismatch is reported as
// domain.ErrInvalidCredentials whatever the reason, so callers cannot tell which factor failed.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := v.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, err
	}
	if password == "" {
		return nil, fmt.Errorf("password is required: %w", domain.ErrBadRequest)
	}
	if !u.HasPassword() {
		return nil, fmt.Errorf("account has no password: %w", domain.ErrInvalidCredentials)
	}
	if u.PasswordHash == "" {
		return nil, fmt.Errorf("stored password missing: %w", domain.ErrBadRequest)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("password mismatch: %w", domain.ErrInvalidCredentials)
	}
	return u, nil
}

// HashPassword returns the bcrypt hash stored for new password accounts.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
