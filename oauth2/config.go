package oauth2

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ProviderSettings is the OAuth2 part of the backend's /configs document.
type ProviderSettings struct {
	ClientID         string `json:"oauth2ClientId,omitempty"`
	AuthEndpoint     string `json:"oauth2AuthEndpoint,omitempty"`
	TokenEndpoint    string `json:"oauth2TokenEndpoint,omitempty"`
	UserInfoEndpoint string `json:"oauth2UserInfoEndpoint,omitempty"`
	LogoutEndpoint   string `json:"oauth2LogoutEndpoint,omitempty"`
	Scope            string `json:"oauth2Scope,omitempty"`
	ClientSecret     string `json:"oauth2ClientSecret,omitempty"`
}

// Enabled reports whether the backend has OAuth2 configured.
func (p ProviderSettings) Enabled() bool {
	return strings.TrimSpace(p.ClientID) != ""
}

// Config is the immutable client configuration of the protocol engine.
type Config struct {
	ClientID              string       `validate:"required"`
	RedirectURI           string       `validate:"required,url"`
	PostLogoutRedirectURI string       `validate:"omitempty,url"`
	AuthorizationEndpoint string       `validate:"required,url"`
	TokenEndpoint         string       `validate:"omitempty,url"`
	UserInfoEndpoint      string       `validate:"omitempty,url"`
	LogoutEndpoint        string       `validate:"omitempty,url"`
	Scope                 string       `validate:"required"`
	ResponseType          ResponseType `validate:"required"`
	GrantType             GrantType    `validate:"required"`
	// ClientSecret is carried for completeness; the engine never sends it,
	// the backend proxy holds its own copy.
	ClientSecret string
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// WithDefaults fills ResponseType, GrantType and Scope when unset.
func (c Config) WithDefaults() Config {
	if c.ResponseType == "" {
		c.ResponseType = CodeResponseType
	}
	if c.GrantType == "" {
		c.GrantType = AuthorizationCodeGrant
	}
	if strings.TrimSpace(c.Scope) == "" {
		c.Scope = DefaultScope
	}
	return c
}

// Validate checks required fields and URL shapes.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid oauth2 config: %w", err)
	}
	return nil
}

// Scopes splits the space-separated scope string.
func (c Config) Scopes() []string {
	return strings.Fields(c.Scope)
}

// ConfigFromSettings resolves the engine configuration from backend settings.
// origin is the console's scheme://host[:port] without trailing slash.
func ConfigFromSettings(s ProviderSettings, origin string) Config {
	origin = strings.TrimRight(origin, "/")
	return Config{
		ClientID:              s.ClientID,
		RedirectURI:           origin + CallbackPath,
		PostLogoutRedirectURI: origin + LoginPath,
		AuthorizationEndpoint: s.AuthEndpoint,
		TokenEndpoint:         s.TokenEndpoint,
		UserInfoEndpoint:      s.UserInfoEndpoint,
		LogoutEndpoint:        s.LogoutEndpoint,
		Scope:                 s.Scope,
		ResponseType:          CodeResponseType,
		GrantType:             AuthorizationCodeGrant,
		ClientSecret:          s.ClientSecret,
	}.WithDefaults()
}
