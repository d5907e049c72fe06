package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/infrastructure/telemetry"
	"github.com/otp-auth-api/internal/transport/http/handler"
	appmiddleware "github.com/otp-auth-api/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

const serviceName = "otp-auth-api"

// NewRouter builds and returns the application router. ctx bounds the lifetime of
// background work owned by the router, such as rate limiter cleanup.
func NewRouter(ctx context.Context, cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(telemetry.Middleware(serviceName))
	if deps.Metrics != nil {
		r.Use(appmiddleware.Metrics(deps.Metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Sensitive public endpoints are throttled per client IP when RATE_LIMIT_RPS > 0.
	limit := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitRPS > 0 {
		limit = appmiddleware.NewRateLimiter(ctx, rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst).Limit
	}

	secure := cfg.IsProduction()

	healthH := handler.NewHealthHandler()
	userH := handler.NewUserHandler(deps.Auth, secure, deps.Metrics)
	sessionH := handler.NewSessionHandler(secure)
	providerH := handler.NewProviderHandler(handler.ProviderHandlerDeps{
		Providers:     deps.Providers,
		Bridge:        deps.Bridge,
		Sessions:      deps.Sessions,
		BaseURL:       cfg.PublicBaseURL,
		SecureCookies: secure,
		Metrics:       deps.Metrics,
	})

	r.Get("/health-check/{action}", healthH.Ping)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	r.Route("/user", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limit)
			r.Post("/signup", userH.RequestSignup)
			r.Put("/signup", userH.CompleteSignup)
			r.Post("/login", userH.Login)
			r.Post("/login/otp-request", userH.RequestLoginOTP)
			r.Post("/login/otp-verify", userH.VerifyLoginOTP)
		})
		r.Post("/logout", sessionH.Logout)
		r.With(appmiddleware.Auth(deps.Sessions)).Get("/me", sessionH.Me)
	})

	r.With(limit).Get("/auth/{provider}", providerH.Begin)
	r.With(limit).Get("/auth/{provider}/callback", providerH.Callback)

	return r
}
