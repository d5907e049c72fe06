package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// NewState generates a URL-safe random value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
