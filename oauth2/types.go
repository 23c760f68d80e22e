package oauth2

// ResponseType represents the OAuth 2.0 response type requested from the
// provider's authorization endpoint.
type ResponseType string

const (
	// CodeResponseType indicates the authorization code flow.
	// The provider redirects back with ?code=...&state=... which the console
	// hands to the backend for exchange.
	CodeResponseType ResponseType = "code"
)

// GrantType represents the OAuth 2.0 grant type used at the token endpoint.
type GrantType string

const (
	// AuthorizationCodeGrant exchanges an authorization code for tokens.
	// Token request includes: code, client_id, client_secret, redirect_uri
	AuthorizationCodeGrant GrantType = "authorization_code"

	// RefreshTokenGrant exchanges a refresh token for a new access token.
	// Token request includes: refresh_token, client_id, client_secret
	RefreshTokenGrant GrantType = "refresh_token"
)

// DefaultScope is requested when the backend does not configure one.
const DefaultScope = "openid profile email"

// DefaultTokenType is assumed when the provider omits token_type.
const DefaultTokenType = "Bearer"

// Console route conventions for the provider redirects.
const (
	CallbackPath   = "/ui/oauth2-callback"
	LoginPath      = "/ui/login"
	QueryParamFrom = "from"
)
