package domain

import (
	"strings"
	"time"
)

// AccountKind tells how a user proves their identity.
type AccountKind string

const (
	// AccountPassword accounts were created through signup and hold a bcrypt hash.
	AccountPassword AccountKind = "password"
	// AccountProvider accounts were created by a third-party sign-in and have no password.
	AccountProvider AccountKind = "provider"
)

type User struct {
	UserID          string      `json:"id" dynamodbav:"user_id"`
	Username        string      `json:"username" dynamodbav:"username"`
	Email           string      `json:"email" dynamodbav:"email"`
	PasswordHash    string      `json:"-" dynamodbav:"password_hash,omitempty"`
	Kind            AccountKind `json:"account_kind" dynamodbav:"account_kind"`
	AuthProvider    string      `json:"auth_provider,omitempty" dynamodbav:"auth_provider,omitempty"` // "github" | "google"
	ProviderSubject string      `json:"-" dynamodbav:"provider_subject,omitempty"`
	CreatedAt       time.Time   `json:"created" dynamodbav:"created_at"`
	UpdatedAt       time.Time   `json:"updated" dynamodbav:"updated_at"`
}

// HasPassword reports whether the password login path applies to the account.
func (u *User) HasPassword() bool {
	return u.Kind != AccountProvider
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
