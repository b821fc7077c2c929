package httphandler

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	githubep "golang.org/x/oauth2/github"
	googleep "golang.org/x/oauth2/google"

	"github.com/agentvault/agentvault/internal/config"
	"github.com/agentvault/agentvault/internal/schema"
)

// OAuthProvider exchanges an authorization code for the credential fields of
// one provider's record. The state parameter carries the user id on whose
// behalf the exchange runs.
type OAuthProvider interface {
	// Name is the provider key in the schema registry.
	Name() string
	// Configured reports whether the provider's OAuth client credentials
	// are present. Unconfigured providers are not offered at all.
	Configured() bool
	// Exchange trades the authorization code for credential fields keyed
	// by schema field name, ready for the token store.
	Exchange(ctx context.Context, code, redirectURI string) (map[string]string, error)
}

// driveScopes are the read-only scopes the document toolkits need.
var driveScopes = []string{
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/documents.readonly",
	"https://www.googleapis.com/auth/spreadsheets.readonly",
	"https://www.googleapis.com/auth/presentations.readonly",
}

// githubOAuth implements OAuthProvider for GitHub.
type githubOAuth struct {
	client config.OAuthClient
}

// NewGitHubOAuth creates the GitHub OAuth provider from app credentials.
func NewGitHubOAuth(client config.OAuthClient) OAuthProvider {
	return &githubOAuth{client: client}
}

func (p *githubOAuth) Name() string     { return schema.ProviderGitHub }
func (p *githubOAuth) Configured() bool { return p.client.Configured() }

func (p *githubOAuth) Exchange(ctx context.Context, code, redirectURI string) (map[string]string, error) {
	conf := &oauth2.Config{
		ClientID:     p.client.ClientID,
		ClientSecret: p.client.ClientSecret,
		Endpoint:     githubep.Endpoint,
		RedirectURL:  redirectURI,
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("github code exchange: %w", err)
	}

	return map[string]string{
		schema.FieldAccessToken: token.AccessToken,
	}, nil
}

// gdriveOAuth implements OAuthProvider for Google Drive.
type gdriveOAuth struct {
	client config.OAuthClient
}

// NewGDriveOAuth creates the Google Drive OAuth provider from app credentials.
func NewGDriveOAuth(client config.OAuthClient) OAuthProvider {
	return &gdriveOAuth{client: client}
}

func (p *gdriveOAuth) Name() string     { return schema.ProviderGDrive }
func (p *gdriveOAuth) Configured() bool { return p.client.Configured() }

func (p *gdriveOAuth) Exchange(ctx context.Context, code, redirectURI string) (map[string]string, error) {
	conf := &oauth2.Config{
		ClientID:     p.client.ClientID,
		ClientSecret: p.client.ClientSecret,
		Endpoint:     googleep.Endpoint,
		RedirectURL:  redirectURI,
		Scopes:       driveScopes,
	}

	token, err := conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("gdrive code exchange: %w", err)
	}

	fields := map[string]string{
		schema.FieldAccessToken: token.AccessToken,
	}
	if token.RefreshToken != "" {
		fields[schema.FieldRefreshToken] = token.RefreshToken
	}
	if !token.Expiry.IsZero() {
		fields[schema.FieldExpiry] = token.Expiry.UTC().Format(time.RFC3339)
	}
	return fields, nil
}

// OAuthRegistry maps provider names to their OAuth implementations.
type OAuthRegistry struct {
	providers map[string]OAuthProvider
	order     []string
}

// NewOAuthRegistry builds a registry from the given providers, preserving order.
func NewOAuthRegistry(providers ...OAuthProvider) *OAuthRegistry {
	r := &OAuthRegistry{providers: make(map[string]OAuthProvider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
		r.order = append(r.order, p.Name())
	}
	return r
}

// Get returns the provider implementation by name.
func (r *OAuthRegistry) Get(name string) (OAuthProvider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// All returns every registered provider name.
func (r *OAuthRegistry) All() []string {
	return append([]string(nil), r.order...)
}

// Configured returns the names of providers whose OAuth client credentials
// are present.
func (r *OAuthRegistry) Configured() []string {
	var names []string
	for _, name := range r.order {
		if r.providers[name].Configured() {
			names = append(names, name)
		}
	}
	return names
}
