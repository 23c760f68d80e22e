package oauth2

// TokenResponse is the provider token endpoint response (RFC 6749 §5.1).
// The backend proxy forwards it verbatim, JSON-encoded as a string inside
// TokenEnvelope.
type TokenResponse struct {
	// AccessToken is used as "Authorization: Bearer <access_token>".
	AccessToken string `json:"access_token"`

	// RefreshToken is optional. When a refresh response omits it, the
	// previous refresh token stays valid and is reused.
	RefreshToken *string `json:"refresh_token,omitempty"`

	// IDToken is the OIDC ID token, present when "openid" was requested.
	IDToken *string `json:"id_token,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int64 `json:"expires_in"`

	// TokenType defaults to "Bearer" when empty.
	TokenType string `json:"token_type,omitempty"`

	Scope string `json:"scope,omitempty"`
}

// TokenEnvelope is the body returned by the backend's token and refresh
// endpoints. Exactly one of TokenResponse or Error is set.
type TokenEnvelope struct {
	TokenResponse string `json:"tokenResponse,omitempty"`
	Error         string `json:"error,omitempty"`
	Message       string `json:"message,omitempty"`
}

// ExchangeRequest is sent to POST /api/v1/oauth2/token.
type ExchangeRequest struct {
	Code        string `json:"code"`
	RedirectURI string `json:"redirectUri"`
	State       string `json:"state,omitempty"`
}

// RefreshRequest is sent to POST /api/v1/oauth2/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}
