package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/TechQuilaMx/kestra-rbac-oauth/api"
	"github.com/TechQuilaMx/kestra-rbac-oauth/basicauth"
)

// Configs serves the settings the console needs before authenticating. The
// client secret stays on the server.
func (s *Server) Configs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings := api.Settings{
			IsBasicAuthInitialized: s.basicAuth.Initialized(),
			Version:                s.version,
		}
		if s.provider != nil {
			settings.ProviderSettings = s.provider.Settings()
			settings.ClientSecret = ""
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

func (s *Server) BasicAuthValidationErrors() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.basicAuth.ValidationErrors())
	}
}

// BasicAuthSetup stores the basic-auth user chosen on the setup screen. Once
// a user exists, replacing it requires its credentials.
func (s *Server) BasicAuthSetup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.basicAuth.Initialized() {
			username, password, ok := r.BasicAuth()
			if !ok || !s.basicAuth.Authenticate(username, password) {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Basic authentication is already configured")
				return
			}
		}

		var creds basicauth.Credentials
		if err := decodeJSON(r, &creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
			return
		}
		if err := s.basicAuth.Save(creds); err != nil {
			if errors.Is(err, basicauth.ErrInvalidCredentials) {
				writeJSON(w, http.StatusBadRequest, map[string]any{
					"error":   "invalid_credentials",
					"message": "Invalid basic authentication credentials",
					"errors":  creds.Validate(),
				})
				return
			}
			zerolog.Ctx(r.Context()).Err(err).Msg("saving basic auth credentials failed")
			writeError(w, http.StatusInternalServerError, "server_error", "Failed to save credentials")
			return
		}
		zerolog.Ctx(r.Context()).Info().Str("username", creds.Username).Msg("basic auth user configured")
		w.WriteHeader(http.StatusNoContent)
	}
}
