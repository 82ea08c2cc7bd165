package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/hego/internal/models"
	"github.com/desertthunder/hego/internal/shared"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	appleAuthURL  = "https://appleid.apple.com/auth/authorize"
	appleTokenURL = "https://appleid.apple.com/auth/token"

	defaultRedirectURI = "http://127.0.0.1:3000/callback"
)

// Provider turns a third-party sign-in into a [models.ProviderAssertion] the backend can exchange.
type Provider interface {
	Name() string
	AuthURL(state string) string
	Assertion(ctx context.Context, params models.CallbackParams) (models.ProviderAssertion, error)
}

// GoogleProvider runs the Google authorization code flow and extracts the id token.
type GoogleProvider struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewGoogleProvider creates a [GoogleProvider] from client credentials.
//
// client is used for the code exchange; nil falls back to [http.DefaultClient].
func NewGoogleProvider(cfg shared.GoogleConfig, client *http.Client) (*GoogleProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: google client_id", shared.ErrMissingCredentials)
	}
	if cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: google client_secret", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  redirectURI,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		httpClient: client,
	}, nil
}

func (p *GoogleProvider) Name() string { return string(models.ProviderGoogle) }

// AuthURL returns the consent page URL for state
func (p *GoogleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Assertion exchanges the authorization code and returns the id token it yields.
//
// A callback that already carries an id token skips the exchange.
func (p *GoogleProvider) Assertion(ctx context.Context, params models.CallbackParams) (models.ProviderAssertion, error) {
	assertion := models.ProviderAssertion{Provider: models.ProviderGoogle, IDToken: params.IDToken}
	if assertion.IDToken != "" {
		return assertion, nil
	}
	if params.Code == "" {
		return assertion, fmt.Errorf("%w: google callback carried no code", shared.ErrProviderFailed)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	token, err := p.config.Exchange(ctx, params.Code)
	if err != nil {
		return assertion, fmt.Errorf("%w: failed to exchange auth code: %w", shared.ErrProviderFailed, err)
	}

	idToken, _ := token.Extra("id_token").(string)
	if idToken == "" {
		return assertion, fmt.Errorf("%w: google token response carried no id_token", shared.ErrProviderFailed)
	}
	assertion.IDToken = idToken
	return assertion, nil
}

// AppleProvider runs Sign in with Apple with form_post callbacks. The backend performs the code
// exchange, so no client secret is held here.
type AppleProvider struct {
	config *oauth2.Config
}

// NewAppleProvider creates an [AppleProvider] for the given service id
func NewAppleProvider(cfg shared.AppleConfig) (*AppleProvider, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: apple client_id", shared.ErrMissingCredentials)
	}

	redirectURI := cfg.RedirectURI
	if redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	return &AppleProvider{
		config: &oauth2.Config{
			ClientID:    cfg.ClientID,
			RedirectURL: redirectURI,
			Scopes:      []string{"name", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  appleAuthURL,
				TokenURL: appleTokenURL,
			},
		},
	}, nil
}

func (p *AppleProvider) Name() string { return string(models.ProviderApple) }

// AuthURL returns the Apple authorization URL. Apple posts the result back as a form.
func (p *AppleProvider) AuthURL(state string) string {
	return p.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_type", "code id_token"),
		oauth2.SetAuthURLParam("response_mode", "form_post"),
	)
}

// Assertion forwards the id token and authorization code from the callback.
func (p *AppleProvider) Assertion(_ context.Context, params models.CallbackParams) (models.ProviderAssertion, error) {
	assertion := models.ProviderAssertion{
		Provider: models.ProviderApple,
		IDToken:  params.IDToken,
		Code:     params.Code,
	}
	if err := assertion.Validate(); err != nil {
		return assertion, fmt.Errorf("%w: %w", shared.ErrProviderFailed, err)
	}
	return assertion, nil
}

// NewProviders builds every provider that has credentials configured, keyed by name.
func NewProviders(cfg shared.ProvidersConfig, client *http.Client) map[string]Provider {
	providers := map[string]Provider{}
	if g, err := NewGoogleProvider(cfg.Google, client); err == nil {
		providers[g.Name()] = g
	}
	if a, err := NewAppleProvider(cfg.Apple); err == nil {
		providers[a.Name()] = a
	}
	return providers
}
