package permissions

// DirectiveKind selects what a Directive checks.
type DirectiveKind string

const (
	PermissionDirective DirectiveKind = "permission"
	RoleDirective       DirectiveKind = "role"
	AdminDirective      DirectiveKind = "admin"
)

// Directive guards the visibility of a UI element. Values are matched
// any-of; an empty list leaves permission and role directives visible.
type Directive struct {
	Kind   DirectiveKind
	Values []string
}

func RequirePermission(permissions ...string) Directive {
	return Directive{Kind: PermissionDirective, Values: permissions}
}

func RequireRole(roles ...string) Directive {
	return Directive{Kind: RoleDirective, Values: roles}
}

func RequireAdmin() Directive {
	return Directive{Kind: AdminDirective}
}

// Visible reports whether an element guarded by d is shown.
func (g *Gate) Visible(d Directive) bool {
	switch d.Kind {
	case AdminDirective:
		return g.IsAdmin()
	case PermissionDirective:
		if len(d.Values) == 0 {
			return true
		}
		return g.HasAnyPermission(d.Values...)
	case RoleDirective:
		if len(d.Values) == 0 {
			return true
		}
		for _, r := range d.Values {
			if g.HasRole(r) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
