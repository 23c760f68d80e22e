package server

import (
	"net/http"
)

func (s *Server) initRoutes() {
	// OAuth2 token proxy
	s.RegisterRouteHandler("POST "+RouteOAuth2Token, ChainMiddleware(s.Token(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteOAuth2Refresh, ChainMiddleware(s.Refresh(), s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteUserMe, ChainMiddleware(s.UserMe(), s.APIMiddleware()...))

	// Configuration and basic auth setup
	s.RegisterRouteHandler("GET "+RouteConfigs, ChainMiddleware(s.Configs(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteBasicAuthValidationErrors, ChainMiddleware(s.BasicAuthValidationErrors(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteBasicAuth, ChainMiddleware(s.BasicAuthSetup(), s.APIMiddleware()...))

	// Workspace counts (require an authenticated caller)
	for _, route := range []string{RouteFlowsSearch, RouteTenantFlowsSearch} {
		s.RegisterRouteHandler("GET "+route, ChainMiddleware(s.SearchFlows(), s.APIMiddleware(s.RequireAuth())...))
	}
	for _, route := range []string{RouteExecutionsSearch, RouteTenantExecutionsSearch} {
		s.RegisterRouteHandler("GET "+route, ChainMiddleware(s.SearchExecutions(), s.APIMiddleware(s.RequireAuth())...))
	}

	// CORS preflight for every API route
	s.RegisterRouteHandler("OPTIONS /api/", ChainMiddleware(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}, s.APIMiddleware()...))

	s.RegisterRouteHandler("GET "+RouteMetrics, s.metrics.handler())
	s.RegisterRouteFunc("GET "+RouteHealth, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "UP"})
	})
}
