package permissions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

var (
	ErrUnmappedAction = errors.New("no permission mapped for resource action")
	ErrInvalidMapping = errors.New("invalid legacy permission mapping")
)

// Resource is a legacy permission resource.
type Resource string

const (
	ResourceFlow          Resource = "FLOW"
	ResourceExecution     Resource = "EXECUTION"
	ResourceTemplate      Resource = "TEMPLATE"
	ResourceNamespace     Resource = "NAMESPACE"
	ResourceNamespaceFile Resource = "NAMESPACE_FILE"
	ResourceKV            Resource = "KV"
	ResourceSecret        Resource = "SECRET"
	ResourceDashboard     Resource = "DASHBOARD"
	ResourcePlugin        Resource = "PLUGIN"
	ResourceGroup         Resource = "GROUP"
	ResourceSetting       Resource = "SETTING"
)

var resources = []Resource{
	ResourceFlow, ResourceExecution, ResourceTemplate, ResourceNamespace,
	ResourceNamespaceFile, ResourceKV, ResourceSecret, ResourceDashboard,
	ResourcePlugin, ResourceGroup, ResourceSetting,
}

// Action is a legacy permission action.
type Action string

const (
	ActionRead   Action = "READ"
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

var actions = []Action{ActionRead, ActionCreate, ActionUpdate, ActionDelete}

func ParseResource(s string) (Resource, bool) {
	r := Resource(strings.ToUpper(s))
	for _, known := range resources {
		if r == known {
			return r, true
		}
	}
	return "", false
}

func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToUpper(s))
	for _, known := range actions {
		if a == known {
			return a, true
		}
	}
	return "", false
}

// MappingTable maps legacy resource/action pairs to permission keys.
type MappingTable map[Resource]map[Action]users.Permission

func crud(view, create, edit, del users.Permission) map[Action]users.Permission {
	return map[Action]users.Permission{
		ActionRead:   view,
		ActionCreate: create,
		ActionUpdate: edit,
		ActionDelete: del,
	}
}

// DefaultMappings returns the built-in legacy table.
func DefaultMappings() MappingTable {
	return MappingTable{
		ResourceFlow:          crud(users.FlowsView, users.FlowsCreate, users.FlowsEdit, users.FlowsDelete),
		ResourceExecution:     crud(users.ExecutionsView, users.ExecutionsCreate, users.ExecutionsRestart, users.ExecutionsKill),
		ResourceTemplate:      crud(users.TemplatesView, users.TemplatesCreate, users.TemplatesEdit, users.TemplatesDelete),
		ResourceNamespace:     crud(users.NamespacesView, users.NamespacesCreate, users.NamespacesEdit, users.NamespacesDelete),
		ResourceNamespaceFile: crud(users.NamespaceFilesView, users.NamespaceFilesCreate, users.NamespaceFilesEdit, users.NamespaceFilesDelete),
		ResourceKV:            crud(users.KVView, users.KVCreate, users.KVEdit, users.KVDelete),
		ResourceSecret:        crud(users.SecretsView, users.SecretsCreate, users.SecretsEdit, users.SecretsDelete),
		ResourceDashboard:     crud(users.AdminDashboard, users.AdminDashboard, users.AdminDashboard, users.AdminDashboard),
		ResourcePlugin:        {ActionRead: users.AdminPlugins},
		ResourceGroup:         crud(users.AdminGroups, users.AdminGroups, users.AdminGroups, users.AdminGroups),
		ResourceSetting:       {ActionRead: users.SettingsView, ActionUpdate: users.SettingsEdit},
	}
}

// Validate checks that every resource is mapped and that every mapped key
// is a known permission.
func (t MappingTable) Validate() error {
	for _, r := range resources {
		if len(t[r]) == 0 {
			return fmt.Errorf("%w: resource %s has no actions", ErrInvalidMapping, r)
		}
	}
	for r, byAction := range t {
		if _, ok := ParseResource(string(r)); !ok {
			return fmt.Errorf("%w: unknown resource %q", ErrInvalidMapping, r)
		}
		for a, p := range byAction {
			if _, ok := ParseAction(string(a)); !ok {
				return fmt.Errorf("%w: unknown action %q on %s", ErrInvalidMapping, a, r)
			}
			if _, ok := users.ParsePermission(string(p)); !ok {
				return fmt.Errorf("%w: %s/%s maps to unknown permission %q", ErrInvalidMapping, r, a, p)
			}
		}
	}
	return nil
}

// LegacyAuthorizer answers resource/action questions from older screens in
// terms of permission keys. Namespaces are accepted but not scoped on;
// holding a permission grants it everywhere.
// Pairs missing from the table are denied and logged.
type LegacyAuthorizer struct {
	gate   *Gate
	table  MappingTable
	logger zerolog.Logger
}

// NewLegacyAuthorizer validates table, or DefaultMappings when nil. A nil
// logger uses the global one.
func NewLegacyAuthorizer(gate *Gate, table MappingTable, logger *zerolog.Logger) (*LegacyAuthorizer, error) {
	if table == nil {
		table = DefaultMappings()
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}
	return &LegacyAuthorizer{
		gate:   gate,
		table:  table,
		logger: logging.OrDefault(logger).With().Str("component", "permissions").Logger(),
	}, nil
}

// Mapping returns the permission key for r and a.
func (l *LegacyAuthorizer) Mapping(r Resource, a Action) (users.Permission, error) {
	p, ok := l.table[r][a]
	if !ok {
		return "", fmt.Errorf("%w: %s/%s", ErrUnmappedAction, r, a)
	}
	return p, nil
}

func (l *LegacyAuthorizer) allowed(r Resource, a Action) bool {
	if l.gate.IsAdmin() {
		return true
	}
	p, err := l.Mapping(r, a)
	if err != nil {
		l.logger.Warn().Err(err).Str("resource", string(r)).Str("action", string(a)).Msg("legacy permission check denied")
		return false
	}
	return l.gate.HasPermission(string(p))
}

// HasAny is true for admins and for any user holding at least one role.
func (l *LegacyAuthorizer) HasAny(_ Resource, _ string) bool {
	if l.gate.IsAdmin() {
		return true
	}
	return l.HasAnyRole()
}

func (l *LegacyAuthorizer) HasAnyAction(r Resource, a Action, _ string) bool {
	return l.allowed(r, a)
}

func (l *LegacyAuthorizer) IsAllowed(r Resource, a Action, _ string) bool {
	return l.allowed(r, a)
}

func (l *LegacyAuthorizer) IsAllowedGlobal(r Resource, a Action) bool {
	return l.allowed(r, a)
}

func (l *LegacyAuthorizer) HasAnyActionOnAnyNamespace(r Resource, a Action) bool {
	return l.allowed(r, a)
}

func (l *LegacyAuthorizer) HasAnyRole() bool {
	u := l.gate.src.UserInfo()
	return u != nil && len(u.Roles) > 0
}

// NamespacesForAction returns ["*"] when the action is allowed and an empty
// list otherwise.
func (l *LegacyAuthorizer) NamespacesForAction(r Resource, a Action) []string {
	if l.allowed(r, a) {
		return []string{"*"}
	}
	return []string{}
}
