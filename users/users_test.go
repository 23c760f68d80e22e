package users_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

func TestParseRole(t *testing.T) {
	tests := []struct {
		in   string
		want users.RoleType
		ok   bool
	}{
		{"admin", users.RoleAdmin, true},
		{"ADMIN", users.RoleAdmin, true},
		{"kestra-admin", users.RoleAdmin, true},
		{"Kestra-Operator", users.RoleOperator, true},
		{" operator ", users.RoleOperator, true},
		{"viewer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := users.ParseRole(tt.in)
			require.Equal(t, tt.ok, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestUserInfo_Predicates(t *testing.T) {
	u := &users.UserInfo{
		Authenticated: true,
		Username:      "jane",
		Roles:         []string{"operator"},
		Permissions:   []string{"flows.view"},
	}

	t.Run("roles are case-insensitive", func(t *testing.T) {
		require.True(t, u.HasRole("OPERATOR"))
		require.False(t, u.HasRole("admin"))
	})

	t.Run("permissions are case-sensitive", func(t *testing.T) {
		require.True(t, u.HasPermission("flows.view"))
		require.False(t, u.HasPermission("FLOWS.VIEW"))
	})

	t.Run("admin flag is not derived from roles", func(t *testing.T) {
		require.False(t, u.Admin())
		withRole := &users.UserInfo{Roles: []string{"admin"}}
		require.False(t, withRole.Admin())
	})

	t.Run("nil profile denies everything", func(t *testing.T) {
		var none *users.UserInfo
		require.False(t, none.HasRole("operator"))
		require.False(t, none.HasPermission("flows.view"))
		require.False(t, none.Admin())
		require.Nil(t, none.Clone())
	})

	t.Run("clone is independent", func(t *testing.T) {
		c := u.Clone()
		c.Roles[0] = "admin"
		require.Equal(t, "operator", u.Roles[0])
	})
}

func TestValidatePasswordStrength(t *testing.T) {
	require.NoError(t, users.ValidatePasswordStrength("Passw0rdX"))
	require.Error(t, users.ValidatePasswordStrength("short1A"))
	require.Error(t, users.ValidatePasswordStrength("alllowercase1"))
	require.Error(t, users.ValidatePasswordStrength("ALLUPPERCASE1"))
	require.Error(t, users.ValidatePasswordStrength("NoNumbersHere"))
}

func TestHashPassword(t *testing.T) {
	hash, err := users.HashPassword("Passw0rdX")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("Passw0rdX", hash))
	require.False(t, users.CheckPasswordHash("wrong", hash))
}
