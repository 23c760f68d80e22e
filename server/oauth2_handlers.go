package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	apperrors "github.com/TechQuilaMx/kestra-rbac-oauth/internal/errors"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
)

// Token exchanges an authorization code on behalf of the console, which
// never holds the client secret.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.provider == nil {
			writeEnvelopeError(w, http.StatusInternalServerError, apperrors.ErrOAuth2NotConfigured.Error())
			return
		}

		var req oauth2.ExchangeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeEnvelopeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.Code) == "" {
			writeEnvelopeError(w, http.StatusBadRequest, "Authorization code is required")
			return
		}
		if strings.TrimSpace(req.RedirectURI) == "" {
			writeEnvelopeError(w, http.StatusBadRequest, "Redirect URI is required")
			return
		}

		tr, err := s.provider.Exchange(r.Context(), req.Code, req.RedirectURI)
		s.metrics.observeToken(string(oauth2.AuthorizationCodeGrant), err)
		if err != nil {
			writeProviderError(w, r, "Token exchange", err)
			return
		}
		zerolog.Ctx(r.Context()).Info().Msg("exchanged authorization code for access token")
		writeEnvelope(w, tr)
	}
}

// Refresh trades a refresh token for a new access token.
func (s *Server) Refresh() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.provider == nil {
			writeEnvelopeError(w, http.StatusInternalServerError, apperrors.ErrOAuth2NotConfigured.Error())
			return
		}

		var req oauth2.RefreshRequest
		if err := decodeJSON(r, &req); err != nil {
			writeEnvelopeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if strings.TrimSpace(req.RefreshToken) == "" {
			writeEnvelopeError(w, http.StatusBadRequest, "Refresh token is required")
			return
		}

		tr, err := s.provider.Refresh(r.Context(), req.RefreshToken)
		s.metrics.observeToken(string(oauth2.RefreshTokenGrant), err)
		if err != nil {
			writeProviderError(w, r, "Token refresh", err)
			return
		}
		writeEnvelope(w, tr)
	}
}

func writeEnvelope(w http.ResponseWriter, tr *oauth2.TokenResponse) {
	data, err := json.Marshal(tr)
	if err != nil {
		writeEnvelopeError(w, http.StatusInternalServerError, "Failed to encode token response")
		return
	}
	writeJSON(w, http.StatusOK, oauth2.TokenEnvelope{TokenResponse: string(data)})
}

func writeEnvelopeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, oauth2.TokenEnvelope{Error: message})
}

// writeProviderError maps a provider rejection to 401 and anything else to
// 500.
func writeProviderError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	zerolog.Ctx(r.Context()).Err(err).Msg(strings.ToLower(operation) + " failed")
	if errors.Is(err, apperrors.ErrInvalidGrant) {
		writeEnvelopeError(w, http.StatusUnauthorized, operation+" failed: "+err.Error())
		return
	}
	writeEnvelopeError(w, http.StatusInternalServerError, operation+" error: "+err.Error())
}
