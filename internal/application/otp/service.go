package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/id"
)

// Codes are drawn uniformly from [codeMin, codeMax].
const (
	codeMin = 100000
	codeMax = 999999
)

// DefaultTTL is how long an issued code stays valid.
const DefaultTTL = 10 * time.Minute

type Service interface {
	// Issue generates a code for email, stores it and mails it. The code is never returned.
	Issue(ctx context.Context, email string, purpose domain.OTPPurpose) error
	// Check reports whether code matches the newest unexpired record for email issued for
	// purpose, without using it up. A mismatch is domain.ErrInvalidOrExpired.
	Check(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
	// Consume accepts code iff it matches the newest unexpired record for email issued for
	// purpose, deleting that record. Anything else is domain.ErrInvalidOrExpired.
	Consume(ctx context.Context, email, code string, purpose domain.OTPPurpose) error
	// Sweep deletes all expired records and returns how many were removed.
	Sweep(ctx context.Context) (int, error)
	// RunSweeper calls Sweep every interval until ctx is done.
	RunSweeper(ctx context.Context, interval time.Duration)
}

type otpStore interface {
	Put(ctx context.Context, rec *domain.OTPRecord) error
	Latest(ctx context.Context, email string) (*domain.OTPRecord, error)
	ConsumeLatest(ctx context.Context, email, code string, purpose domain.OTPPurpose, now time.Time) (bool, error)
	PurgeExpiredFor(ctx context.Context, email string, now time.Time) (int, error)
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

type mailer interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) error
}

type sweepRecorder interface {
	OTPSwept(n int)
}

type service struct {
	repo    otpStore
	mailer  mailer
	metrics sweepRecorder
	ttl     time.Duration
	now     func() time.Time
}

type ServiceDeps struct {
	OTPRepo otpStore
	Mailer  mailer
	Metrics sweepRecorder // optional
	TTL     time.Duration
}

type Option func(*service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

func NewService(deps ServiceDeps, opts ...Option) Service {
	s := &service{
		repo:    deps.OTPRepo,
		mailer:  deps.Mailer,
		metrics: deps.Metrics,
		ttl:     deps.TTL,
		now:     time.Now,
	}
	if s.ttl <= 0 {
		s.ttl = DefaultTTL
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) Issue(ctx context.Context, email string, purpose domain.OTPPurpose) error {
	code, err := generateCode()
	if err != nil {
		return err
	}
	now := s.now().UTC()
	expiry := now.Add(s.ttl)
	rec := &domain.OTPRecord{
		Email:       email,
		OTPID:       id.NewAt(now),
		Code:        code,
		Purpose:     purpose,
		ExpiresAt:   expiry.Unix(),
		ExpiresAtMs: expiry.UnixMilli(),
		CreatedAt:   now,
	}
	if err := s.repo.Put(ctx, rec); err != nil {
		return fmt.Errorf("store otp: %w", err)
	}
	subject, body := message(purpose, code, s.ttl)
	if err := s.mailer.SendEmail(ctx, email, subject, body); err != nil {
		return fmt.Errorf("send otp email: %w", err)
	}
	return nil
}

func (s *service) Check(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	rec, err := s.repo.Latest(ctx, email)
	if err != nil {
		return err
	}
	if rec.Code != code || rec.Purpose != purpose || rec.Expired(s.now()) {
		return domain.ErrInvalidOrExpired
	}
	return nil
}

func (s *service) Consume(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	now := s.now()
	ok, err := s.repo.ConsumeLatest(ctx, email, code, purpose, now)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if n, err := s.repo.PurgeExpiredFor(ctx, email, now); err != nil {
		slog.Warn("failed to purge expired otps", "email", email, "err", err)
	} else if n > 0 {
		slog.Debug("purged expired otps", "email", email, "count", n)
	}
	return domain.ErrInvalidOrExpired
}

func (s *service) Sweep(ctx context.Context) (int, error) {
	return s.repo.PurgeExpired(ctx, s.now())
}

func (s *service) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				slog.Error("otp sweep failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("otp sweep", "deleted", n)
			}
			if s.metrics != nil {
				s.metrics.OTPSwept(n)
			}
		}
	}
}

// generateCode returns a uniformly random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+codeMin), nil
}

func message(purpose domain.OTPPurpose, code string, ttl time.Duration) (subject, body string) {
	minutes := int(ttl.Round(time.Minute) / time.Minute)
	if purpose == domain.OTPSignup {
		return "Your OTP for Signup",
			fmt.Sprintf("<p>Your OTP is: <strong>%s</strong>. It will expire in %d minutes.</p>", code, minutes)
	}
	return "Your Login OTP",
		fmt.Sprintf("<p>Your OTP for login is: <strong>%s</strong>. It will expire in %d minutes.</p>", code, minutes)
}
