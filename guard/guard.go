package guard

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
	"github.com/TechQuilaMx/kestra-rbac-oauth/sessions"
)

// SessionStore is the part of the console session the guard drives.
type SessionStore interface {
	Initialize(ctx context.Context, cfg oauth2.Config) error
	Initialized() bool
	IsAuthenticated() bool
	HasTokens() bool
	Verify(ctx context.Context) (sessions.AuthState, error)
}

// BasicAuth is the legacy basic-auth login state.
type BasicAuth interface {
	IsLoggedIn(ctx context.Context) bool
	SetupInProgress(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error
}

// Deps holds the collaborators of a Guard.
type Deps struct {
	Configs   ConfigLoader
	Session   SessionStore
	BasicAuth BasicAuth
	Counter   Counter
	Logger    *zerolog.Logger
}

// Options tune a Guard.
type Options struct {
	Origin          string   // console origin used for the OAuth2 redirect URIs
	DashboardRoutes []string // defaults to DefaultDashboardRoutes
}

// Guard decides, before each navigation, whether to allow it or where to
// redirect instead.
type Guard struct {
	configs *ConfigCache
	loader  ConfigLoader
	session SessionStore
	basic   BasicAuth
	welcome *WelcomeChecker
	origin  string
	logger  zerolog.Logger
}

func New(deps Deps, opts Options) (*Guard, error) {
	if deps.Configs == nil || deps.Session == nil || deps.BasicAuth == nil || deps.Counter == nil {
		return nil, errors.New("[guard New] configs, session, basic auth and counter are required")
	}
	return &Guard{
		configs: NewConfigCache(deps.Configs),
		loader:  deps.Configs,
		session: deps.Session,
		basic:   deps.BasicAuth,
		welcome: NewWelcomeChecker(deps.Counter, opts.DashboardRoutes...),
		origin:  opts.Origin,
		logger:  logging.OrDefault(deps.Logger).With().Str("component", "guard").Logger(),
	}, nil
}

// Configs exposes the settings cache.
func (g *Guard) Configs() *ConfigCache {
	return g.configs
}

// Evaluate returns the decision for navigating from from to to. Errors never
// escape: they resolve to a login or setup redirect.
func (g *Guard) Evaluate(ctx context.Context, to, from Route) Decision {
	if to.Path == from.Path && sameQuery(to.Query, from.Query) {
		return Allow()
	}

	d, err := g.evaluate(ctx, to)
	if err != nil {
		g.logger.Err(err).Str("route", to.Name).Msg("error during authentication check")
		return g.handleError(ctx, err, to)
	}
	return d
}

func (g *Guard) evaluate(ctx context.Context, to Route) (Decision, error) {
	settings, err := g.configs.Load(ctx)
	if err != nil {
		return Decision{}, err
	}

	if settings.Enabled() {
		if err := g.session.Initialize(ctx, oauth2.ConfigFromSettings(settings.ProviderSettings, g.origin)); err != nil {
			return Decision{}, err
		}
		if g.session.Initialized() {
			return g.evaluateOAuth2(ctx, to)
		}
	}
	return g.evaluateBasicAuth(ctx, to, settings.IsBasicAuthInitialized)
}

func (g *Guard) evaluateOAuth2(ctx context.Context, to Route) (Decision, error) {
	if to.Anonymous {
		return Allow(), nil
	}

	authenticated := g.session.IsAuthenticated()
	hasTokens := g.session.HasTokens()
	if !authenticated && !hasTokens {
		return RedirectTo(loginTarget(to)), nil
	}

	if !authenticated {
		state, err := g.session.Verify(ctx)
		if err != nil {
			return Decision{}, err
		}
		if state != sessions.Authenticated {
			return RedirectTo(loginTarget(to)), nil
		}
	}

	return g.welcomeOrAllow(ctx, to)
}

func (g *Guard) evaluateBasicAuth(ctx context.Context, to Route, initialized bool) (Decision, error) {
	if !initialized {
		validationErrors, err := g.loader.BasicAuthValidationErrors(ctx)
		if err != nil {
			return Decision{}, err
		}
		// Credentials configured but rejected: login shows the errors.
		if len(validationErrors) > 0 {
			if to.Name == RouteLogin {
				return Allow(), nil
			}
			return RedirectTo(Target{Name: RouteLogin}), nil
		}
		if to.Name == RouteSetup {
			return Allow(), nil
		}
		return RedirectTo(Target{Name: RouteSetup}), nil
	}

	if to.Anonymous {
		if to.Name == RouteSetup {
			return RedirectTo(Target{Name: RouteLogin}), nil
		}
		return Allow(), nil
	}

	if !g.basic.IsLoggedIn(ctx) {
		return RedirectTo(loginTarget(to)), nil
	}

	inProgress, err := g.basic.SetupInProgress(ctx)
	if err != nil {
		return Decision{}, err
	}
	if inProgress {
		return RedirectTo(Target{Name: RouteSetup}), nil
	}

	return g.welcomeOrAllow(ctx, to)
}

func (g *Guard) welcomeOrAllow(ctx context.Context, to Route) (Decision, error) {
	if !g.welcome.IsDashboardRoute(to.Name) {
		return Allow(), nil
	}
	tenant := to.Params["tenant"]
	show, err := g.welcome.ShouldShowWelcome(ctx, tenant)
	if err != nil {
		return Decision{}, err
	}
	if show {
		return RedirectTo(Target{Name: RouteWelcome, Params: map[string]string{"tenant": tenant}}), nil
	}
	return Allow(), nil
}

func (g *Guard) handleError(ctx context.Context, err error, to Route) Decision {
	if strings.Contains(err.Error(), "401") {
		if logoutErr := g.basic.Logout(ctx); logoutErr != nil {
			g.logger.Err(logoutErr).Msg("basic auth logout failed")
		}
		return RedirectTo(loginTarget(to))
	}
	return RedirectTo(Target{Name: RouteSetup})
}
