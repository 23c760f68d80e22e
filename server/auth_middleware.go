package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const (
	// ContextKeyUsername stores the authenticated username
	ContextKeyUsername ContextKey = "username"
)

// bearerToken extracts the token of an "Authorization: Bearer" header.
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

// authOpen reports whether no authentication is configured at all.
func (s *Server) authOpen() bool {
	return s.provider == nil && !s.basicAuth.Initialized()
}

// RequireAuth accepts a valid basic-auth user or a bearer token accepted by
// the provider. Without any configured authentication every caller passes.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if s.authOpen() {
				next(w, r)
				return
			}

			if username, password, ok := r.BasicAuth(); ok {
				if !s.basicAuth.Authenticate(username, password) {
					writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid credentials")
					return
				}
				next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyUsername, username)))
				return
			}

			if token, ok := bearerToken(r); ok && s.provider != nil {
				profile, err := s.profileFor(r.Context(), token)
				if err != nil {
					zerolog.Ctx(r.Context()).Warn().Err(err).Msg("bearer token rejected")
					writeError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
					return
				}
				next(w, r.WithContext(context.WithValue(r.Context(), ContextKeyUsername, profile.Username)))
				return
			}

			writeError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
		}
	}
}

func usernameFrom(ctx context.Context) string {
	u, _ := ctx.Value(ContextKeyUsername).(string)
	return u
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
