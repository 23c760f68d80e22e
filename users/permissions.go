package users

// Permission is a fine-grained capability key such as "flows.create".
type Permission string

const (
	FlowsView   Permission = "flows.view"
	FlowsCreate Permission = "flows.create"
	FlowsEdit   Permission = "flows.edit"
	FlowsDelete Permission = "flows.delete"

	ExecutionsView    Permission = "executions.view"
	ExecutionsCreate  Permission = "executions.create"
	ExecutionsRestart Permission = "executions.restart"
	ExecutionsKill    Permission = "executions.kill"

	TemplatesView   Permission = "templates.view"
	TemplatesCreate Permission = "templates.create"
	TemplatesEdit   Permission = "templates.edit"
	TemplatesDelete Permission = "templates.delete"

	NamespacesView   Permission = "namespaces.view"
	NamespacesCreate Permission = "namespaces.create"
	NamespacesEdit   Permission = "namespaces.edit"
	NamespacesDelete Permission = "namespaces.delete"

	NamespaceFilesView   Permission = "namespaceFiles.view"
	NamespaceFilesCreate Permission = "namespaceFiles.create"
	NamespaceFilesEdit   Permission = "namespaceFiles.edit"
	NamespaceFilesDelete Permission = "namespaceFiles.delete"

	KVView   Permission = "kv.view"
	KVCreate Permission = "kv.create"
	KVEdit   Permission = "kv.edit"
	KVDelete Permission = "kv.delete"

	SecretsView   Permission = "secrets.view"
	SecretsCreate Permission = "secrets.create"
	SecretsEdit   Permission = "secrets.edit"
	SecretsDelete Permission = "secrets.delete"

	AdminAccess    Permission = "admin.access"
	AdminStats     Permission = "admin.stats"
	AdminTriggers  Permission = "admin.triggers"
	AdminDashboard Permission = "admin.dashboard"
	AdminPlugins   Permission = "admin.plugins"
	AdminGroups    Permission = "admin.groups"

	SettingsView Permission = "settings.view"
	SettingsEdit Permission = "settings.edit"
)

// AllPermissions lists the catalogue in a stable order.
var AllPermissions = []Permission{
	FlowsView, FlowsCreate, FlowsEdit, FlowsDelete,
	ExecutionsView, ExecutionsCreate, ExecutionsRestart, ExecutionsKill,
	TemplatesView, TemplatesCreate, TemplatesEdit, TemplatesDelete,
	NamespacesView, NamespacesCreate, NamespacesEdit, NamespacesDelete,
	NamespaceFilesView, NamespaceFilesCreate, NamespaceFilesEdit, NamespaceFilesDelete,
	KVView, KVCreate, KVEdit, KVDelete,
	SecretsView, SecretsCreate, SecretsEdit, SecretsDelete,
	AdminAccess, AdminStats, AdminTriggers, AdminDashboard, AdminPlugins, AdminGroups,
	SettingsView, SettingsEdit,
}

var knownPermissions = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(AllPermissions))
	for _, p := range AllPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// ParsePermission reports whether value is a catalogue key.
func ParsePermission(value string) (Permission, bool) {
	p := Permission(value)
	_, ok := knownPermissions[p]
	return p, ok
}
