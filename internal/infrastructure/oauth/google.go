package oauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/otp-auth-api/internal/config"
	googleinfra "github.com/otp-auth-api/internal/infrastructure/google"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type idTokenVerifier interface {
	Verify(ctx context.Context, token string) (*googleinfra.Payload, error)
}

// Google signs users in with Google's OpenID Connect flow. The identity comes from
// the id_token returned by the code exchange, verified against Google's keys.
type Google struct {
	cfg      oauth2.Config
	verifier idTokenVerifier
}

func NewGoogle(creds config.ProviderCredentials, redirectURL string, verifier idTokenVerifier) *Google {
	return &Google{
		cfg: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		verifier: verifier,
	}
}

func (g *Google) Name() string { return "google" }

func (g *Google) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

func (g *Google) Identify(ctx context.Context, code string) (*UserInfo, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("google code exchange: %w", err)
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return nil, errors.New("google token response has no id_token")
	}
	p, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, err
	}
	if p.Email == "" || !p.EmailVerified {
		return nil, ErrNoEmail
	}
	return &UserInfo{
		Provider: g.Name(),
		Subject:  p.Sub,
		Email:    p.Email,
		Name:     p.Name,
	}, nil
}
