package auth

import (
	"context"

	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

// TokenBackend is the trusted backend that talks to the provider's token
// endpoint on the console's behalf.
type TokenBackend interface {
	ExchangeCode(ctx context.Context, req oauth2.ExchangeRequest) (*oauth2.TokenResponse, error)
	RefreshToken(ctx context.Context, req oauth2.RefreshRequest) (*oauth2.TokenResponse, error)
}

// Navigator performs a full navigation away from the console, to the
// provider's authorize or logout endpoint.
type Navigator interface {
	Navigate(ctx context.Context, url string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, url string) error

func (f NavigatorFunc) Navigate(ctx context.Context, url string) error {
	return f(ctx, url)
}
