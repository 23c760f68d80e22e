package server

// Route path constants
// All backend routes are defined here to ensure consistency and prevent typos
const (
	// OAuth2 token proxy
	RouteOAuth2Token   = "/api/v1/oauth2/token"
	RouteOAuth2Refresh = "/api/v1/oauth2/refresh"

	// Current user
	RouteUserMe = "/api/v1/user/me"

	// Console configuration
	RouteConfigs                   = "/api/v1/configs"
	RouteBasicAuth                 = "/api/v1/basicAuth"
	RouteBasicAuthValidationErrors = "/api/v1/basicAuthValidationErrors"

	// Workspace counts, with and without tenant
	RouteFlowsSearch            = "/api/v1/flows/search"
	RouteExecutionsSearch       = "/api/v1/executions/search"
	RouteTenantFlowsSearch      = "/api/v1/{tenant}/flows/search"
	RouteTenantExecutionsSearch = "/api/v1/{tenant}/executions/search"

	// Operations
	RouteMetrics = "/metrics"
	RouteHealth  = "/health"
)
