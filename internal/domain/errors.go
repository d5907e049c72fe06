package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrBadRequest         = errors.New("bad request")
	ErrNotFound           = errors.New("user not found")
	ErrAlreadyExists      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidOrExpired   = errors.New("invalid or expired OTP")
	ErrSignInFailed       = errors.New("sign-in failed")
)

// Uniqueness violations reported by the user store. Both are ErrAlreadyExists.
var (
	ErrEmailTaken    = fmt.Errorf("email already registered: %w", ErrAlreadyExists)
	ErrUsernameTaken = fmt.Errorf("username already taken: %w", ErrAlreadyExists)
)
