package config

import (
	"os"
	"strings"
)

const (
	portEnvVar         = "PORT"
	appNameVar         = "APP_NAME"
	folderEnvVar       = "FOLDER"
	publicOriginEnvVar = "PUBLIC_ORIGIN"
	backendURLEnvVar   = "KESTRA_URL"
)

// Environment names accepted by ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Kestra Auth")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(folderEnvVar, "./data")
}

func (EnvVars) GetEnv() string {
	return strings.ToLower(GetEnv("ENV", EnvDevelopment))
}

// GetPublicOrigin is the scheme://host[:port] the console is served from. The
// OAuth2 redirect URIs are derived from it.
func (e EnvVars) GetPublicOrigin() string {
	return strings.TrimRight(GetEnv(publicOriginEnvVar, "http://localhost"+e.GetPort()), "/")
}

// GetBackendURL is the base URL of the backend API used by the console.
func (EnvVars) GetBackendURL() string {
	return strings.TrimRight(GetEnv(backendURLEnvVar, "http://localhost:8080"), "/")
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
