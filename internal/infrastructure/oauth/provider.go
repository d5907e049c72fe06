package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/otp-auth-api/internal/config"
	googleinfra "github.com/otp-auth-api/internal/infrastructure/google"
)

// ErrNoEmail means the provider authenticated the user but disclosed no verified email.
var ErrNoEmail = errors.New("provider returned no verified email")

// UserInfo is the identity a provider confirmed.
type UserInfo struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

// Provider is one OAuth2 identity provider.
type Provider interface {
	Name() string
	// AuthCodeURL is the consent page the browser is redirected to.
	AuthCodeURL(state string) string
	// Identify exchanges the callback code and returns the confirmed identity.
	Identify(ctx context.Context, code string) (*UserInfo, error)
}

// Registry holds the providers that have credentials configured.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a provider for every configured client id/secret pair.
// Callback URLs are PUBLIC_BASE_URL/auth/{provider}/callback.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for name, creds := range cfg.Providers {
		redirect := cfg.PublicBaseURL + "/auth/" + name + "/callback"
		switch name {
		case "github":
			r.providers[name] = NewGitHub(creds, redirect)
		case "google":
			r.providers[name] = NewGoogle(creds, redirect, googleinfra.NewVerifier(creds.ClientID))
		}
	}
	return r
}

// NewStaticRegistry wraps already constructed providers.
func NewStaticRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

func (r *Registry) Get(name string) (Provider, bool) {
	if r == nil {
		return nil, false
	}
	p, ok := r.providers[name]
	return p, ok
}

// Names lists the enabled providers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// getJSON fetches url with client and decodes a 200 response into v.
func getJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("get %s: status %d: %s", url, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
