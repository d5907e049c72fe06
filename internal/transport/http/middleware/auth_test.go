package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/otp-auth-api/internal/application/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockParser struct{ mock.Mock }

func (m *mockParser) Parse(token string) (*session.Identity, error) {
	args := m.Called(token)
	if id, _ := args.Get(0).(*session.Identity); id != nil {
		return id, args.Error(1)
	}
	return nil, args.Error(1)
}

func okHandler(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestAuth_MissingToken(t *testing.T) {
	p := new(mockParser)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())
	p.AssertNotCalled(t, "Parse", mock.Anything)
}

func TestAuth_BadToken(t *testing.T) {
	p := new(mockParser)
	p.On("Parse", "not-a-real-token").Return(nil, errors.New("malformed"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "not-a-real-token"})
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	p.AssertExpectations(t)
}

func TestAuth_CookieInjectsIdentity(t *testing.T) {
	p := new(mockParser)
	p.On("Parse", "cookie-token").Return(&session.Identity{UserID: "u1", Email: "a@x.com"}, nil)

	var got *session.Identity
	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "cookie-token"})
	req.Header.Set("Authorization", "Bearer header-token")
	rr := httptest.NewRecorder()
	Auth(p)(capture).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	p.AssertExpectations(t)
}

func TestAuth_BearerFallback(t *testing.T) {
	p := new(mockParser)
	p.On("Parse", "header-token").Return(&session.Identity{UserID: "u2"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	rr := httptest.NewRecorder()
	Auth(p)(http.HandlerFunc(okHandler)).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	p.AssertExpectations(t)
}

func TestIdentityFromContext_Missing(t *testing.T) {
	_, ok := IdentityFromContext(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	assert.False(t, ok)
}
