package config

import "github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"

type Provider struct{}

var _ ProviderConfig = Provider{}

// GetProviderSettings reads the OAUTH2_* variables. OAuth2 is disabled while
// OAUTH2_CLIENT_ID is empty.
func (Provider) GetProviderSettings() oauth2.ProviderSettings {
	return oauth2.ProviderSettings{
		ClientID:         GetEnv("OAUTH2_CLIENT_ID", ""),
		ClientSecret:     GetEnv("OAUTH2_CLIENT_SECRET", ""),
		AuthEndpoint:     GetEnv("OAUTH2_AUTH_ENDPOINT", ""),
		TokenEndpoint:    GetEnv("OAUTH2_TOKEN_ENDPOINT", ""),
		UserInfoEndpoint: GetEnv("OAUTH2_USERINFO_ENDPOINT", ""),
		LogoutEndpoint:   GetEnv("OAUTH2_LOGOUT_ENDPOINT", ""),
		Scope:            GetEnv("OAUTH2_SCOPE", oauth2.DefaultScope),
	}
}

// GetIssuer enables OIDC discovery when set.
func (Provider) GetIssuer() string {
	return GetEnv("OAUTH2_ISSUER", "")
}

// GetRoleClaimPath is a dot separated claim path, e.g. "resource_access.kestra.roles".
func (Provider) GetRoleClaimPath() string {
	return GetEnv("OAUTH2_ROLE_CLAIM_PATH", "")
}
