package permissions

import (
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

// Source answers permission questions for the current user. The console
// session implements it.
type Source interface {
	HasPermission(permission string) bool
	HasRole(role string) bool
	IsAdmin() bool
	UserInfo() *users.UserInfo
}

// ProfileSource adapts a fixed profile to Source.
type ProfileSource struct {
	Profile *users.UserInfo
}

func (p ProfileSource) HasPermission(permission string) bool { return p.Profile.HasPermission(permission) }
func (p ProfileSource) HasRole(role string) bool { return p.Profile.HasRole(role) }
func (p ProfileSource) IsAdmin() bool { return p.Profile.Admin() }
func (p ProfileSource) UserInfo() *users.UserInfo { return p.Profile.Clone() }

// Gate exposes the permission predicates used to show or hide features.
type Gate struct {
	src Source
}

func NewGate(src Source) *Gate {
	return &Gate{src: src}
}

func (g *Gate) HasPermission(permission string) bool {
	return g.src.HasPermission(permission)
}

// HasAnyPermission is false when called without permissions.
func (g *Gate) HasAnyPermission(permissions ...string) bool {
	for _, p := range permissions {
		if g.src.HasPermission(p) {
			return true
		}
	}
	return false
}

// HasAllPermissions is true when called without permissions.
func (g *Gate) HasAllPermissions(permissions ...string) bool {
	for _, p := range permissions {
		if !g.src.HasPermission(p) {
			return false
		}
	}
	return true
}

func (g *Gate) HasRole(role string) bool {
	return g.src.HasRole(role)
}

func (g *Gate) IsAdmin() bool {
	return g.src.IsAdmin()
}

func (g *Gate) has(p users.Permission) bool {
	return g.src.HasPermission(string(p))
}

func (g *Gate) CanCreateFlows() bool { return g.has(users.FlowsCreate) }
func (g *Gate) CanEditFlows() bool { return g.has(users.FlowsEdit) }
func (g *Gate) CanDeleteFlows() bool { return g.has(users.FlowsDelete) }
func (g *Gate) CanViewFlows() bool { return g.has(users.FlowsView) }
func (g *Gate) CanCreateExecutions() bool { return g.has(users.ExecutionsCreate) }
func (g *Gate) CanRestartExecutions() bool { return g.has(users.ExecutionsRestart) }
func (g *Gate) CanKillExecutions() bool { return g.has(users.ExecutionsKill) }
func (g *Gate) CanViewExecutions() bool { return g.has(users.ExecutionsView) }
func (g *Gate) CanAccessAdmin() bool { return g.has(users.AdminAccess) }
func (g *Gate) CanEditSettings() bool { return g.has(users.SettingsEdit) }
