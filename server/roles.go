package server

import (
	"maps"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/utils"
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

// ExtractRoles collects console roles from provider claims. It looks at the
// Keycloak realm roles, a top level "roles" claim, Keycloak client roles
// (any client when clientID has none), "groups" and finally customPath.
// Unknown role names are ignored.
func ExtractRoles(claims map[string]any, clientID, customPath string) []users.RoleType {
	var found []users.RoleType

	if realm, ok := claims["realm_access"].(map[string]any); ok {
		found = append(found, parseRoleList(realm["roles"])...)
	}
	found = append(found, parseRoleList(claims["roles"])...)

	if resources, ok := claims["resource_access"].(map[string]any); ok {
		if clientID != "" {
			if client, ok := resources[clientID].(map[string]any); ok {
				found = append(found, parseRoleList(client["roles"])...)
			}
		}
		if len(found) == 0 {
			for _, name := range slices.Sorted(maps.Keys(resources)) {
				if client, ok := resources[name].(map[string]any); ok {
					found = append(found, parseRoleList(client["roles"])...)
				}
			}
		}
	}

	found = append(found, parseRoleList(claims["groups"])...)

	if customPath != "" {
		found = append(found, parseRoleList(nestedClaim(claims, customPath))...)
	}

	return distinctRoles(found)
}

// claimsFromAccessToken decodes a JWT access token without checking its
// signature. The token has already been accepted by the userinfo endpoint.
func claimsFromAccessToken(accessToken string) map[string]any {
	if strings.Count(accessToken, ".") != 2 {
		return nil
	}
	tok, _, err := jwt.NewParser().ParseUnverified(accessToken, jwt.MapClaims{})
	if err != nil {
		return nil
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}
	return claims
}

// nestedClaim follows a dot separated path, e.g. "resource_access.kestra.roles".
func nestedClaim(claims map[string]any, path string) any {
	var current any = claims
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if current, ok = m[part]; !ok {
			return nil
		}
	}
	return current
}

func parseRoleList(v any) []users.RoleType {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	var roles []users.RoleType
	for _, name := range utils.ToStringSlice(list) {
		if r, ok := users.ParseRole(name); ok {
			roles = append(roles, r)
		}
	}
	return roles
}

func distinctRoles(in []users.RoleType) []users.RoleType {
	out := make([]users.RoleType, 0, len(in))
	for _, r := range in {
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out
}
