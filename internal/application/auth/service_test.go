package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/otp-auth-api/internal/application/credential"
	"github.com/otp-auth-api/internal/application/session"
	"github.com/otp-auth-api/internal/domain"
	jwtinfra "github.com/otp-auth-api/internal/infrastructure/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- fakes & mocks ---

// memUsers is an in-memory user store with the same uniqueness rules as DynamoDB.
type memUsers struct {
	mu        sync.Mutex
	users     []*domain.User
	createErr error
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	for _, e := range m.users {
		if e.Email == u.Email {
			return domain.ErrEmailTaken
		}
		if e.Username == u.Username {
			return domain.ErrUsernameTaken
		}
	}
	cp := *u
	m.users = append(m.users, &cp)
	return nil
}

func (m *memUsers) withEmail(email string) []*domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		if u.Email == email {
			out = append(out, u)
		}
	}
	return out
}

type memCode struct {
	code    string
	purpose domain.OTPPurpose
}

// memOTPs keeps the newest code per email and accepts it once for the purpose it was issued for.
type memOTPs struct {
	mu     sync.Mutex
	codes  map[string]memCode
	issued []domain.OTPPurpose
}

func newMemOTPs() *memOTPs { return &memOTPs{codes: map[string]memCode{}} }

func (m *memOTPs) Issue(_ context.Context, email string, purpose domain.OTPPurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = memCode{code: "123456", purpose: purpose}
	m.issued = append(m.issued, purpose)
	return nil
}

func (m *memOTPs) Check(_ context.Context, email, code string, purpose domain.OTPPurpose) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.codes[email]; !ok || c.code != code || c.purpose != purpose {
		return domain.ErrInvalidOrExpired
	}
	return nil
}

func (m *memOTPs) Consume(ctx context.Context, email, code string, purpose domain.OTPPurpose) error {
	if err := m.Check(ctx, email, code, purpose); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.codes, email)
	return nil
}

func (m *memOTPs) pending(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.codes[email]
	return ok
}

type mockMinter struct{ mock.Mock }

func (m *mockMinter) Mint(u *domain.User, l session.Lifetime) (*session.Token, error) {
	args := m.Called(u, l)
	if t, _ := args.Get(0).(*session.Token); t != nil {
		return t, args.Error(1)
	}
	return nil, args.Error(1)
}

type fixture struct {
	svc   Service
	users *memUsers
	otps  *memOTPs
}

func newFixture(t *testing.T, seed ...*domain.User) *fixture {
	t.Helper()
	users := &memUsers{users: seed}
	otps := newMemOTPs()
	jp, err := jwtinfra.NewProvider("test-secret")
	require.NoError(t, err)
	svc := NewService(ServiceDeps{
		UserRepo:   users,
		OTPService: otps,
		Verifier:   credential.NewVerifier(users),
		Sessions:   session.NewService(session.ServiceDeps{JWTProvider: jp, DefaultTTL: 24 * time.Hour, ExtendedTTL: 30 * 24 * time.Hour}),
	})
	return &fixture{svc: svc, users: users, otps: otps}
}

func passwordUser(t *testing.T, email, password string) *domain.User {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{UserID: "u-" + email, Username: "user-" + email, Email: email, Kind: domain.AccountPassword, PasswordHash: string(h)}
}

var signup = SignupRequest{Username: "alice", Email: "alice@x.com", Password: "password123"}

func complete(otp string) CompleteSignupRequest {
	return CompleteSignupRequest{Username: signup.Username, Email: signup.Email, Password: signup.Password, OTP: otp}
}

// --- Signup ---

func TestSignup_FullFlowCreatesExactlyOneUser(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.RequestSignup(context.Background(), signup))
	res, err := f.svc.CompleteSignup(context.Background(), complete("123456"))

	require.NoError(t, err)
	created := f.users.withEmail("alice@x.com")
	require.Len(t, created, 1)
	assert.NotEqual(t, "password123", created[0].PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(created[0].PasswordHash), []byte("password123")))
	assert.Equal(t, domain.AccountPassword, created[0].Kind)
	assert.Equal(t, 30*24*time.Hour, res.Session.MaxAge)
	assert.Equal(t, []domain.OTPPurpose{domain.OTPSignup}, f.otps.issued)
}

func TestRequestSignup_ShortPasswordFailsBeforeOTP(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestSignup(context.Background(), SignupRequest{Username: "alice", Email: "alice@x.com", Password: "short"})

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.EqualError(t, err, "Password must be at least 8 characters long")
	assert.Empty(t, f.otps.issued)
}

func TestRequestSignup_ValidationReportsFirstField(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestSignup(context.Background(), SignupRequest{Username: "al", Email: "bad", Password: "short"})

	assert.EqualError(t, err, "Username must be at least 3 characters long")
}

func TestRequestSignup_EmailAlreadyRegistered(t *testing.T) {
	f := newFixture(t, passwordUser(t, "alice@x.com", "password123"))

	err := f.svc.RequestSignup(context.Background(), signup)

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	assert.Empty(t, f.otps.issued)
}

func TestCompleteSignup_WrongOTP(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestSignup(context.Background(), signup))

	_, err := f.svc.CompleteSignup(context.Background(), complete("654321"))

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	assert.Empty(t, f.users.withEmail("alice@x.com"))

	// The client can retry with the right code without starting over.
	_, err = f.svc.CompleteSignup(context.Background(), complete("123456"))
	assert.NoError(t, err)
}

func TestCompleteSignup_OTPIsSingleUse(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestSignup(context.Background(), signup))
	_, err := f.svc.CompleteSignup(context.Background(), complete("123456"))
	require.NoError(t, err)

	_, err = f.svc.CompleteSignup(context.Background(), complete("123456"))
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	assert.Len(t, f.users.withEmail("alice@x.com"), 1)
}

func TestCompleteSignup_UsernameTakenMeanwhile(t *testing.T) {
	other := passwordUser(t, "bob@x.com", "password123")
	other.Username = "alice"
	f := newFixture(t, other)
	require.NoError(t, f.svc.RequestSignup(context.Background(), signup))

	_, err := f.svc.CompleteSignup(context.Background(), complete("123456"))

	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestCompleteSignup_RetryWithNewUsernameKeepsCode(t *testing.T) {
	other := passwordUser(t, "bob@x.com", "password123")
	other.Username = "alice"
	f := newFixture(t, other)
	require.NoError(t, f.svc.RequestSignup(context.Background(), signup))

	_, err := f.svc.CompleteSignup(context.Background(), complete("123456"))
	require.ErrorIs(t, err, domain.ErrUsernameTaken)
	assert.True(t, f.otps.pending("alice@x.com"))

	retry := complete("123456")
	retry.Username = "alice2"
	res, err := f.svc.CompleteSignup(context.Background(), retry)

	require.NoError(t, err)
	assert.Equal(t, "alice2", res.User.Username)
	assert.False(t, f.otps.pending("alice@x.com"))
}

func TestCompleteSignup_StoreFailureKeepsCode(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.svc.RequestSignup(context.Background(), signup))
	f.users.createErr = errors.New("throttled")

	_, err := f.svc.CompleteSignup(context.Background(), complete("123456"))
	require.ErrorContains(t, err, "throttled")
	assert.True(t, f.otps.pending("alice@x.com"))

	f.users.createErr = nil
	_, err = f.svc.CompleteSignup(context.Background(), complete("123456"))
	assert.NoError(t, err)
	assert.Len(t, f.users.withEmail("alice@x.com"), 1)
}

func TestCompleteSignup_RejectsLoginCode(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.otps.Issue(context.Background(), "alice@x.com", domain.OTPLogin))

	_, err := f.svc.CompleteSignup(context.Background(), complete("123456"))

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	assert.Empty(t, f.users.withEmail("alice@x.com"))
}

func TestCompleteSignup_InvalidOTPFormat(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompleteSignup(context.Background(), complete("12ab56"))

	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

// --- Password login ---

func TestPasswordLogin_DefaultAndRemembered(t *testing.T) {
	f := newFixture(t, passwordUser(t, "a@x.com", "password123"))

	res, err := f.svc.PasswordLogin(context.Background(), LoginRequest{Email: "a@x.com", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, res.Session.MaxAge)
	assert.NotEmpty(t, res.Session.Value)

	res, err = f.svc.PasswordLogin(context.Background(), LoginRequest{Email: "A@x.com", Password: "password123", RememberMe: true})
	require.NoError(t, err)
	assert.Equal(t, 30*24*time.Hour, res.Session.MaxAge)
}

func TestPasswordLogin_WrongPassword(t *testing.T) {
	f := newFixture(t, passwordUser(t, "a@x.com", "password123"))

	_, err := f.svc.PasswordLogin(context.Background(), LoginRequest{Email: "a@x.com", Password: "nope-nope"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestPasswordLogin_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.PasswordLogin(context.Background(), LoginRequest{Email: "x@x.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPasswordLogin_ProviderAccountRejected(t *testing.T) {
	f := newFixture(t, &domain.User{UserID: "u1", Username: "a", Email: "a@x.com", Kind: domain.AccountProvider})

	_, err := f.svc.PasswordLogin(context.Background(), LoginRequest{Email: "a@x.com", Password: "password123"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestPasswordLogin_MintFailure(t *testing.T) {
	users := &memUsers{users: []*domain.User{passwordUser(t, "a@x.com", "password123")}}
	mm := &mockMinter{}
	mm.On("Mint", mock.Anything, session.Default).Return(nil, errors.New("signing failed"))
	svc := NewService(ServiceDeps{UserRepo: users, OTPService: newMemOTPs(), Verifier: credential.NewVerifier(users), Sessions: mm})

	_, err := svc.PasswordLogin(context.Background(), LoginRequest{Email: "a@x.com", Password: "password123"})
	assert.ErrorContains(t, err, "signing failed")
}

// --- OTP login ---

func TestOTPLogin_FullFlow(t *testing.T) {
	f := newFixture(t, passwordUser(t, "a@x.com", "password123"))

	require.NoError(t, f.svc.RequestLoginOTP(context.Background(), OTPLoginRequest{Email: "a@x.com"}))
	res, err := f.svc.VerifyLoginOTP(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: "123456"})

	require.NoError(t, err)
	assert.Equal(t, "u-a@x.com", res.User.UserID)
	assert.Equal(t, 24*time.Hour, res.Session.MaxAge)
	assert.Equal(t, []domain.OTPPurpose{domain.OTPLogin}, f.otps.issued)

	_, err = f.svc.VerifyLoginOTP(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
}

func TestVerifyLoginOTP_RejectsSignupCode(t *testing.T) {
	f := newFixture(t, passwordUser(t, "a@x.com", "password123"))
	require.NoError(t, f.otps.Issue(context.Background(), "a@x.com", domain.OTPSignup))

	_, err := f.svc.VerifyLoginOTP(context.Background(), VerifyOTPRequest{Email: "a@x.com", OTP: "123456"})

	assert.ErrorIs(t, err, domain.ErrInvalidOrExpired)
	assert.True(t, f.otps.pending("a@x.com"))
}

func TestRequestLoginOTP_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestLoginOTP(context.Background(), OTPLoginRequest{Email: "x@x.com"})

	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Empty(t, f.otps.issued)
}

func TestVerifyLoginOTP_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VerifyLoginOTP(context.Background(), VerifyOTPRequest{Email: "x@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRequestLoginOTP_InvalidEmail(t *testing.T) {
	f := newFixture(t)

	err := f.svc.RequestLoginOTP(context.Background(), OTPLoginRequest{Email: "not-an-email"})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	assert.EqualError(t, err, "Invalid email address")
}
