package users_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

func TestAuthorization_PermissionsForRoles(t *testing.T) {
	a := users.DefaultAuthorization()

	t.Run("admin holds the whole catalogue", func(t *testing.T) {
		require.Equal(t, users.AllPermissions, a.PermissionsForRoles([]users.RoleType{users.RoleAdmin}))
	})

	t.Run("operator holds defaults", func(t *testing.T) {
		require.Equal(t, users.DefaultOperatorPermissions, a.PermissionsForRoles([]users.RoleType{users.RoleOperator}))
	})

	t.Run("union keeps catalogue order without duplicates", func(t *testing.T) {
		got := a.PermissionsForRoles([]users.RoleType{users.RoleOperator, users.RoleAdmin, users.RoleOperator})
		require.Equal(t, users.AllPermissions, got)
	})

	t.Run("no roles grants nothing", func(t *testing.T) {
		require.Empty(t, a.PermissionsForRoles(nil))
	})
}

func TestLoadAuthorization(t *testing.T) {
	write := func(t *testing.T, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "roles.yaml")
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return path
	}

	t.Run("empty path returns defaults", func(t *testing.T) {
		a, err := users.LoadAuthorization("")
		require.NoError(t, err)
		require.Equal(t, users.DefaultOperatorPermissions, a.OperatorPermissions)
	})

	t.Run("overrides operator permissions", func(t *testing.T) {
		path := write(t, "authorization:\n  operatorPermissions:\n    - flows.view\n    - flows.edit\n")
		a, err := users.LoadAuthorization(path)
		require.NoError(t, err)
		require.Equal(t, []users.Permission{users.FlowsView, users.FlowsEdit}, a.OperatorPermissions)
	})

	t.Run("missing section keeps defaults", func(t *testing.T) {
		a, err := users.LoadAuthorization(write(t, "other: true\n"))
		require.NoError(t, err)
		require.Equal(t, users.DefaultOperatorPermissions, a.OperatorPermissions)
	})

	t.Run("rejects unknown permission", func(t *testing.T) {
		_, err := users.LoadAuthorization(write(t, "authorization:\n  operatorPermissions: [flows.fly]\n"))
		require.ErrorContains(t, err, "flows.fly")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := users.LoadAuthorization(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}
