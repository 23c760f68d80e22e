package config

type BasicAuth struct{}

var _ BasicAuthConfig = BasicAuth{}

func (BasicAuth) GetBasicAuthUsername() string {
	return GetEnv("BASIC_AUTH_USERNAME", "")
}

func (BasicAuth) GetBasicAuthPassword() string {
	return GetEnv("BASIC_AUTH_PASSWORD", "")
}

type Authorization struct{}

var _ AuthorizationConfig = Authorization{}

// GetRolePermissionsFile points to the YAML role to permission table. Empty
// keeps the built-in operator permissions.
func (Authorization) GetRolePermissionsFile() string {
	return GetEnv("ROLE_PERMISSIONS_FILE", "")
}
