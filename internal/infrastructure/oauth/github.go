package oauth

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otp-auth-api/internal/config"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const githubAPI = "https://api.github.com"

// GitHub signs users in with a GitHub OAuth app.
type GitHub struct {
	cfg     oauth2.Config
	apiBase string
}

func NewGitHub(creds config.ProviderCredentials, redirectURL string) *GitHub {
	return &GitHub{
		cfg: oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		apiBase: githubAPI,
	}
}

func (g *GitHub) Name() string { return "github" }

func (g *GitHub) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state)
}

type githubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type githubEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

func (g *GitHub) Identify(ctx context.Context, code string) (*UserInfo, error) {
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github code exchange: %w", err)
	}
	client := g.cfg.Client(ctx, tok)

	var u githubUser
	if err := getJSON(ctx, client, g.apiBase+"/user", &u); err != nil {
		return nil, err
	}
	// The public profile email may be hidden; fall back to the verified address list.
	email := u.Email
	if email == "" {
		var emails []githubEmail
		if err := getJSON(ctx, client, g.apiBase+"/user/emails", &emails); err != nil {
			return nil, err
		}
		email = pickGitHubEmail(emails)
	}
	if email == "" {
		return nil, ErrNoEmail
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &UserInfo{
		Provider: g.Name(),
		Subject:  strconv.FormatInt(u.ID, 10),
		Email:    email,
		Name:     name,
	}, nil
}

// pickGitHubEmail prefers the primary verified address, then any verified one.
func pickGitHubEmail(emails []githubEmail) string {
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	for _, e := range emails {
		if e.Verified {
			return e.Email
		}
	}
	return ""
}
