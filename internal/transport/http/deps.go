package http

import (
	"context"

	"github.com/otp-auth-api/internal/application/auth"
	"github.com/otp-auth-api/internal/application/provider"
	"github.com/otp-auth-api/internal/application/session"
	"github.com/otp-auth-api/internal/infrastructure/metrics"
	"github.com/otp-auth-api/internal/infrastructure/oauth"
)

// ProviderBridge is the minimal interface the router requires to resolve provider identities.
type ProviderBridge interface {
	SignIn(ctx context.Context, ident provider.Identity) (*provider.Result, error)
}

// Deps holds the application services the router exposes.
type Deps struct {
	Auth      auth.Service
	Sessions  session.Service
	Bridge    ProviderBridge
	Providers *oauth.Registry
	Metrics   *metrics.Metrics // nil disables /metrics and request metrics
}
