package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/otp-auth-api/internal/application/auth"
	"github.com/otp-auth-api/internal/application/credential"
	"github.com/otp-auth-api/internal/application/otp"
	"github.com/otp-auth-api/internal/application/provider"
	"github.com/otp-auth-api/internal/application/session"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/otp-auth-api/internal/infrastructure/jwt"
	"github.com/otp-auth-api/internal/infrastructure/metrics"
	"github.com/otp-auth-api/internal/infrastructure/oauth"
	"github.com/otp-auth-api/internal/infrastructure/smtp"
	"github.com/otp-auth-api/internal/infrastructure/telemetry"
	transporthttp "github.com/otp-auth-api/internal/transport/http"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg := config.Load()
	setupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, "otp-auth-api", cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	m := metrics.New()

	// The handle connects on first use; Bootstrap is that first use.
	db := dynamo.Open(cfg)
	defer db.Close()
	if err := dynamo.Bootstrap(ctx, db, cfg.DynamoTables); err != nil {
		return fmt.Errorf("bootstrap dynamodb: %w", err)
	}
	userRepo := dynamo.NewUserRepo(db, cfg.DynamoTables.Users)
	otpRepo := dynamo.NewOTPRepo(db, cfg.DynamoTables.OTPs)

	jwtProvider, err := jwtinfra.NewProvider(cfg.SessionSecret)
	if err != nil {
		return err
	}

	otpSvc := otp.NewService(otp.ServiceDeps{
		OTPRepo: otpRepo,
		Mailer:  smtp.NewMailer(cfg),
		Metrics: m,
		TTL:     cfg.OTPTTL,
	})
	sessionSvc := session.NewService(session.ServiceDeps{
		JWTProvider: jwtProvider,
		DefaultTTL:  cfg.SessionTTL,
		ExtendedTTL: cfg.SessionRememberTTL,
	})
	authSvc := auth.NewService(auth.ServiceDeps{
		UserRepo:   userRepo,
		OTPService: otpSvc,
		Verifier:   credential.NewVerifier(userRepo),
		Sessions:   sessionSvc,
	})
	providers := oauth.NewRegistry(cfg)
	slog.Info("sign-in providers", "enabled", providers.Names())

	go otpSvc.RunSweeper(ctx, cfg.OTPSweepInterval)

	router := transporthttp.NewRouter(ctx, cfg, &transporthttp.Deps{
		Auth:      authSvc,
		Sessions:  sessionSvc,
		Bridge:    provider.NewBridge(userRepo),
		Providers: providers,
		Metrics:   m,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		slog.Warn("tracing shutdown", "err", err)
	}
	slog.Info("server stopped")
	return nil
}

// setupLogger emits JSON in production and text elsewhere.
func setupLogger(cfg *config.Config) {
	var h slog.Handler
	if cfg.IsProduction() {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		h = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	slog.SetDefault(slog.New(h))
}
