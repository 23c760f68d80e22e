package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	xoauth2 "golang.org/x/oauth2"

	apperrors "github.com/TechQuilaMx/kestra-rbac-oauth/internal/errors"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/utils"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

const providerTimeout = 10 * time.Second

// ProviderOptions describes the OIDC provider the proxy talks to.
type ProviderOptions struct {
	Settings oauth2.ProviderSettings
	// Issuer enables discovery; discovered endpoints fill the empty ones in
	// Settings.
	Issuer        string
	RoleClaimPath string
	HTTPClient    *http.Client
}

// Provider performs the confidential-client calls to the OIDC provider: code
// exchange, refresh and userinfo.
type Provider struct {
	settings      oauth2.ProviderSettings
	oauth         *xoauth2.Config
	oidc          *oidc.Provider
	roleClaimPath string
	httpClient    *http.Client
}

func NewProvider(ctx context.Context, opts ProviderOptions) (*Provider, error) {
	if !opts.Settings.Enabled() {
		return nil, apperrors.ErrOAuth2NotConfigured
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: providerTimeout}
	}
	ctx = oidc.ClientContext(ctx, httpClient)

	settings := opts.Settings
	if opts.Issuer != "" {
		p, err := oidc.NewProvider(ctx, opts.Issuer)
		if err != nil {
			return nil, fmt.Errorf("[server NewProvider] failed to create OIDC provider: %w", err)
		}
		var discovered struct {
			UserInfoURL string `json:"userinfo_endpoint"`
			LogoutURL   string `json:"end_session_endpoint"`
		}
		if err := p.Claims(&discovered); err != nil {
			return nil, fmt.Errorf("[server NewProvider] failed to read discovery document: %w", err)
		}
		settings.AuthEndpoint = firstNonEmpty(settings.AuthEndpoint, p.Endpoint().AuthURL)
		settings.TokenEndpoint = firstNonEmpty(settings.TokenEndpoint, p.Endpoint().TokenURL)
		settings.UserInfoEndpoint = firstNonEmpty(settings.UserInfoEndpoint, discovered.UserInfoURL)
		settings.LogoutEndpoint = firstNonEmpty(settings.LogoutEndpoint, discovered.LogoutURL)
	}
	if settings.TokenEndpoint == "" {
		return nil, fmt.Errorf("[server NewProvider] %w: token endpoint is required", apperrors.ErrOAuth2NotConfigured)
	}
	provider := (&oidc.ProviderConfig{
		IssuerURL:   opts.Issuer,
		AuthURL:     settings.AuthEndpoint,
		TokenURL:    settings.TokenEndpoint,
		UserInfoURL: settings.UserInfoEndpoint,
	}).NewProvider(ctx)

	return &Provider{
		settings: settings,
		oauth: &xoauth2.Config{
			ClientID:     settings.ClientID,
			ClientSecret: settings.ClientSecret,
			Endpoint: xoauth2.Endpoint{
				AuthURL:   settings.AuthEndpoint,
				TokenURL:  settings.TokenEndpoint,
				AuthStyle: xoauth2.AuthStyleInParams,
			},
			Scopes: strings.Fields(settings.Scope),
		},
		oidc:          provider,
		roleClaimPath: opts.RoleClaimPath,
		httpClient:    httpClient,
	}, nil
}

// Settings returns the resolved provider settings.
func (p *Provider) Settings() oauth2.ProviderSettings {
	return p.settings
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, xoauth2.HTTPClient, p.httpClient)
}

// Exchange trades an authorization code for tokens.
func (p *Provider) Exchange(ctx context.Context, code, redirectURI string) (*oauth2.TokenResponse, error) {
	cfg := *p.oauth
	cfg.RedirectURL = redirectURI
	tok, err := cfg.Exchange(p.clientContext(ctx), code)
	if err != nil {
		return nil, providerError("[Provider Exchange]", err)
	}
	return tokenResponseFrom(tok, time.Now()), nil
}

// Refresh trades a refresh token for a new access token. When the provider
// does not rotate the refresh token, the one given is returned.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	tok, err := p.oauth.TokenSource(p.clientContext(ctx), &xoauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, providerError("[Provider Refresh]", err)
	}
	return tokenResponseFrom(tok, time.Now()), nil
}

// UserClaims validates accessToken against the userinfo endpoint and returns
// its claims.
func (p *Provider) UserClaims(ctx context.Context, accessToken string) (map[string]any, error) {
	if p.settings.UserInfoEndpoint == "" {
		return nil, fmt.Errorf("[Provider UserClaims] %w: userinfo endpoint not configured", apperrors.ErrOAuth2NotConfigured)
	}
	ts := xoauth2.StaticTokenSource(&xoauth2.Token{AccessToken: accessToken, TokenType: oauth2.DefaultTokenType})
	info, err := p.oidc.UserInfo(oidc.ClientContext(ctx, p.httpClient), ts)
	if err != nil {
		return nil, fmt.Errorf("[Provider UserClaims] %w: %w", apperrors.ErrInvalidToken, err)
	}
	claims := map[string]any{}
	if err := info.Claims(&claims); err != nil {
		return nil, fmt.Errorf("[Provider UserClaims] %w", err)
	}
	return claims, nil
}

// providerError separates provider rejections from transport failures.
func providerError(prefix string, err error) error {
	var re *xoauth2.RetrieveError
	if errors.As(err, &re) {
		body := strings.TrimSpace(string(re.Body))
		if body == "" {
			body = re.Error()
		}
		return fmt.Errorf("%s %w: %s", prefix, apperrors.ErrInvalidGrant, body)
	}
	return fmt.Errorf("%s %w: %w", prefix, apperrors.ErrProviderUnavailable, err)
}

func tokenResponseFrom(tok *xoauth2.Token, now time.Time) *oauth2.TokenResponse {
	tr := &oauth2.TokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.TokenType,
	}
	if tok.RefreshToken != "" {
		tr.RefreshToken = utils.Ptr(tok.RefreshToken)
	}
	if id, ok := tok.Extra("id_token").(string); ok && id != "" {
		tr.IDToken = utils.Ptr(id)
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		tr.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		tr.ExpiresIn = int64(math.Round(tok.Expiry.Sub(now).Seconds()))
		if tr.ExpiresIn < 0 {
			tr.ExpiresIn = 0
		}
	}
	return tr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
