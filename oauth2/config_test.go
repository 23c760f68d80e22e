package oauth2_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

func TestConfigFromSettings(t *testing.T) {
	cfg := oauth2.ConfigFromSettings(oauth2.ProviderSettings{
		ClientID:       "kestra",
		AuthEndpoint:   "https://idp.example.com/auth",
		TokenEndpoint:  "https://idp.example.com/token",
		LogoutEndpoint: "https://idp.example.com/logout",
	}, "https://kestra.example.com/")

	require.Equal(t, "https://kestra.example.com/ui/oauth2-callback", cfg.RedirectURI)
	require.Equal(t, "https://kestra.example.com/ui/login", cfg.PostLogoutRedirectURI)
	require.Equal(t, oauth2.DefaultScope, cfg.Scope)
	require.Equal(t, oauth2.CodeResponseType, cfg.ResponseType)
	require.Equal(t, oauth2.AuthorizationCodeGrant, cfg.GrantType)
	require.Equal(t, []string{"openid", "profile", "email"}, cfg.Scopes())
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := oauth2.Config{
		ClientID:              "kestra",
		RedirectURI:           "http://localhost:8080/ui/oauth2-callback",
		AuthorizationEndpoint: "http://idp/auth",
	}.WithDefaults()

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, valid.Validate())
	})

	t.Run("missing client id", func(t *testing.T) {
		c := valid
		c.ClientID = ""
		require.Error(t, c.Validate())
	})

	t.Run("bad authorization endpoint", func(t *testing.T) {
		c := valid
		c.AuthorizationEndpoint = "not a url"
		require.Error(t, c.Validate())
	})

	t.Run("defaults keep explicit values", func(t *testing.T) {
		c := oauth2.Config{Scope: "openid", ResponseType: "code id_token"}.WithDefaults()
		require.Equal(t, "openid", c.Scope)
		require.Equal(t, oauth2.ResponseType("code id_token"), c.ResponseType)
	})
}

func TestProviderSettings_Enabled(t *testing.T) {
	require.False(t, oauth2.ProviderSettings{}.Enabled())
	require.False(t, oauth2.ProviderSettings{ClientID: "  "}.Enabled())
	require.True(t, oauth2.ProviderSettings{ClientID: "kestra"}.Enabled())
}
