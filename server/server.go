package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/TechQuilaMx/kestra-rbac-oauth/basicauth"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

const profileCacheTTL = 30 * time.Second

// Deps are the collaborators of the backend server. Provider is nil when
// OAuth2 is not configured.
type Deps struct {
	Provider      *Provider
	BasicAuth     *basicauth.Service
	Authorization *users.Authorization
	Workspace     Workspace
	Logger        *zerolog.Logger
	Version       string
}

type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	config config.Config

	provider      *Provider
	basicAuth     *basicauth.Service
	authorization *users.Authorization
	workspace     Workspace
	version       string

	// profiles caches /user/me results by access token digest.
	profiles *gocache.Cache
	metrics  *metrics
	logger   zerolog.Logger
}

func New(cfg config.Config, deps Deps) (*Server, error) {
	if cfg == nil || deps.BasicAuth == nil || deps.Workspace == nil {
		return nil, errors.New("[Server New] config, basic auth and workspace are required")
	}
	authorization := deps.Authorization
	if authorization == nil {
		authorization = users.DefaultAuthorization()
	}

	s := &Server{
		env:           cfg.GetEnv(),
		mux:           http.NewServeMux(),
		config:        cfg,
		provider:      deps.Provider,
		basicAuth:     deps.BasicAuth,
		authorization: authorization,
		workspace:     deps.Workspace,
		version:       deps.Version,
		profiles:      gocache.New(profileCacheTTL, time.Minute),
		metrics:       newMetrics(),
		logger:        logging.OrDefault(deps.Logger).With().Str("component", "server").Logger(),
	}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if s.env != config.EnvDevelopment {
		return
	}
	for _, route := range s.routes {
		method, path, found := strings.Cut(route, " ")
		if !found {
			method, path = "", route
		}
		s.logger.Debug().Str("method", method).Str("path", path).Msg("route registered")
	}
}
