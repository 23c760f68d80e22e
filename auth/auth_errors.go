package auth

import "errors"

var (
	ErrConfigMissing  = errors.New("oauth2 client id is not configured")
	ErrCsrfValidation = errors.New("invalid state parameter, possible CSRF attack")
	ErrTokenExchange  = errors.New("token exchange failed")
	ErrTokenRefresh   = errors.New("token refresh failed")
	ErrNoRefreshToken = errors.New("no refresh token available")
	ErrProfileFetch   = errors.New("failed to fetch user info")
	ErrNotInitialized = errors.New("oauth2 manager not initialized")
)
