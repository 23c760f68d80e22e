package config

import (
	"time"

	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

type Config interface {
	EnvConfig
	CorsConfig
	ProviderConfig
	BasicAuthConfig
	StorageConfig
	AuthorizationConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetPublicOrigin() string
	GetBackendURL() string
	GetDataFolder() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type ProviderConfig interface {
	GetProviderSettings() oauth2.ProviderSettings
	GetIssuer() string
	GetRoleClaimPath() string
}

type BasicAuthConfig interface {
	GetBasicAuthUsername() string
	GetBasicAuthPassword() string
}

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisPrefix() string
	GetTokenFile() string
	GetSessionTTL() time.Duration
}

type AuthorizationConfig interface {
	GetRolePermissionsFile() string
}

type mainConfig struct {
	EnvVars
	Cors
	Provider
	BasicAuth
	Storage
	Authorization
}

func New() Config {
	return mainConfig{}
}
