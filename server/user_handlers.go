package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

// UserMe returns the profile of the bearer token owner. Callers without a
// bearer token, e.g. basic-auth users, get {"authenticated": false}.
func (s *Server) UserMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || s.provider == nil {
			writeJSON(w, http.StatusOK, map[string]bool{"authenticated": false})
			return
		}

		profile, err := s.profileFor(r.Context(), token)
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("user info lookup failed")
			writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// profileFor validates token against the userinfo endpoint and resolves the
// console roles and permissions of its owner. Results are cached briefly.
func (s *Server) profileFor(ctx context.Context, token string) (*users.UserInfo, error) {
	key := tokenDigest(token)
	if cached, ok := s.profiles.Get(key); ok {
		return cached.(*users.UserInfo).Clone(), nil
	}

	claims, err := s.provider.UserClaims(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("[Server profileFor] %w", err)
	}

	settings := s.provider.Settings()
	roles := ExtractRoles(claims, settings.ClientID, s.provider.roleClaimPath)
	if len(roles) == 0 {
		roles = ExtractRoles(claimsFromAccessToken(token), settings.ClientID, s.provider.roleClaimPath)
	}
	if len(roles) == 0 {
		zerolog.Ctx(ctx).Warn().Msg("no roles found in token claims, defaulting to operator")
		roles = []users.RoleType{users.RoleOperator}
	}

	profile := &users.UserInfo{
		Authenticated: true,
		Username:      usernameFromClaims(claims),
		Email:         stringClaim(claims, "email"),
		Name:          stringClaim(claims, "name"),
		Roles:         make([]string, 0, len(roles)),
		Permissions:   []string{},
	}
	for _, role := range roles {
		profile.Roles = append(profile.Roles, string(role))
		if role == users.RoleAdmin {
			profile.IsAdmin = true
		}
	}
	for _, p := range s.authorization.PermissionsForRoles(roles) {
		profile.Permissions = append(profile.Permissions, string(p))
	}

	s.profiles.SetDefault(key, profile)
	return profile.Clone(), nil
}

func usernameFromClaims(claims map[string]any) string {
	for _, key := range []string{"preferred_username", "email", "sub"} {
		if v := stringClaim(claims, key); v != "" {
			return v
		}
	}
	return ""
}

func stringClaim(claims map[string]any, key string) string {
	v, _ := claims[key].(string)
	return v
}
