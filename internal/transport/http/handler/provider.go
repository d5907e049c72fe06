package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otp-auth-api/internal/application/provider"
	"github.com/otp-auth-api/internal/application/session"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/infrastructure/oauth"
	"github.com/otp-auth-api/internal/pkg/token"
)

type providerRegistry interface {
	Get(name string) (oauth.Provider, bool)
}

type signInBridge interface {
	SignIn(ctx context.Context, ident provider.Identity) (*provider.Result, error)
}

type sessionMinter interface {
	Mint(u *domain.User, l session.Lifetime) (*session.Token, error)
}

// ProviderHandler runs the GitHub/Google authorization-code flow under /auth/{provider}.
type ProviderHandler struct {
	providers providerRegistry
	bridge    signInBridge
	sessions  sessionMinter
	baseURL   string
	secure    bool
	metrics   authRecorder
}

type ProviderHandlerDeps struct {
	Providers     providerRegistry
	Bridge        signInBridge
	Sessions      sessionMinter
	BaseURL       string // where the browser lands after the callback
	SecureCookies bool
	Metrics       authRecorder // optional
}

func NewProviderHandler(deps ProviderHandlerDeps) *ProviderHandler {
	return &ProviderHandler{
		providers: deps.Providers,
		bridge:    deps.Bridge,
		sessions:  deps.Sessions,
		baseURL:   deps.BaseURL,
		secure:    deps.SecureCookies,
		metrics:   deps.Metrics,
	}
}

// Begin is GET /auth/{provider}: it stores a fresh state and redirects to the consent page.
func (h *ProviderHandler) Begin(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	p, ok := h.providers.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	state, err := token.NewState()
	if err != nil {
		httpError(w, r, err)
		return
	}
	setStateCookie(w, name, state, h.secure)
	http.Redirect(w, r, p.AuthCodeURL(state), http.StatusFound)
}

// Callback is GET /auth/{provider}/callback. Every failure lands on the login page
// with error=SignInFailed; success lands on the site root with a session cookie.
func (h *ProviderHandler) Callback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	p, ok := h.providers.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}
	q := r.URL.Query()
	c, err := r.Cookie(oauthStateCookie)
	clearStateCookie(w, name, h.secure)
	if err != nil || c.Value == "" || q.Get("state") != c.Value {
		h.fail(w, r, name, "state mismatch", nil)
		return
	}
	if e := q.Get("error"); e != "" {
		h.fail(w, r, name, "provider returned error", nil, "provider_error", e)
		return
	}
	info, err := p.Identify(r.Context(), q.Get("code"))
	if err != nil {
		h.fail(w, r, name, "identify", err)
		return
	}
	res, err := h.bridge.SignIn(r.Context(), provider.Identity{
		Provider: info.Provider,
		Subject:  info.Subject,
		Email:    info.Email,
		Name:     info.Name,
	})
	if err != nil {
		h.fail(w, r, name, "sign in", err)
		return
	}
	tok, err := h.sessions.Mint(res.User, session.Extended)
	if err != nil {
		h.fail(w, r, name, "mint session", err)
		return
	}
	record(h.metrics, "provider_"+name, nil)
	slog.Info("provider sign-in", "provider", name, "user_id", res.UserID, "created", res.Created)
	setSessionCookie(w, tok, h.secure)
	http.Redirect(w, r, h.baseURL+"/", http.StatusFound)
}

func (h *ProviderHandler) fail(w http.ResponseWriter, r *http.Request, name, stage string, err error, attrs ...any) {
	record(h.metrics, "provider_"+name, domain.ErrSignInFailed)
	args := append([]any{"provider", name, "stage", stage}, attrs...)
	if err != nil {
		args = append(args, "err", err)
	}
	slog.Warn("provider sign-in failed", args...)
	http.Redirect(w, r, h.baseURL+"/login?error=SignInFailed", http.StatusFound)
}
