package users

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultOperatorPermissions is granted to operators unless overridden.
var DefaultOperatorPermissions = []Permission{
	FlowsView,
	ExecutionsView,
	ExecutionsCreate,
	TemplatesView,
	NamespacesView,
	KVView,
	SettingsView,
}

// Authorization maps roles to permissions. Admins always hold the whole
// catalogue; operators hold OperatorPermissions.
type Authorization struct {
	OperatorPermissions []Permission `yaml:"operatorPermissions"`
}

// DefaultAuthorization returns the built-in role table.
func DefaultAuthorization() *Authorization {
	return &Authorization{OperatorPermissions: append([]Permission(nil), DefaultOperatorPermissions...)}
}

type authorizationFile struct {
	Authorization struct {
		OperatorPermissions []string `yaml:"operatorPermissions"`
	} `yaml:"authorization"`
}

// LoadAuthorization reads a YAML role table:
//
//	authorization:
//	  operatorPermissions: [flows.view, executions.view]
//
// An empty path returns the defaults. Unknown permission keys are rejected.
func LoadAuthorization(path string) (*Authorization, error) {
	if path == "" {
		return DefaultAuthorization(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("[users LoadAuthorization] %w", err)
	}

	var f authorizationFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("[users LoadAuthorization] %w", err)
	}
	if f.Authorization.OperatorPermissions == nil {
		return DefaultAuthorization(), nil
	}

	a := &Authorization{OperatorPermissions: make([]Permission, 0, len(f.Authorization.OperatorPermissions))}
	for _, raw := range f.Authorization.OperatorPermissions {
		p, ok := ParsePermission(raw)
		if !ok {
			return nil, fmt.Errorf("[users LoadAuthorization] unknown permission %q", raw)
		}
		a.OperatorPermissions = append(a.OperatorPermissions, p)
	}
	return a, nil
}

// PermissionsForRole returns the permissions granted by a single role.
func (a *Authorization) PermissionsForRole(role RoleType) []Permission {
	switch role {
	case RoleAdmin:
		return append([]Permission(nil), AllPermissions...)
	case RoleOperator:
		return append([]Permission(nil), a.OperatorPermissions...)
	default:
		return nil
	}
}

// PermissionsForRoles returns the union for roles in catalogue order.
func (a *Authorization) PermissionsForRoles(roles []RoleType) []Permission {
	granted := make(map[Permission]struct{})
	for _, r := range roles {
		for _, p := range a.PermissionsForRole(r) {
			granted[p] = struct{}{}
		}
	}
	out := make([]Permission, 0, len(granted))
	for _, p := range AllPermissions {
		if _, ok := granted[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
