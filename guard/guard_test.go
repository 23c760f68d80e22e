package guard_test

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TechQuilaMx/kestra-rbac-oauth/api"
	"github.com/TechQuilaMx/kestra-rbac-oauth/guard"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
	"github.com/TechQuilaMx/kestra-rbac-oauth/sessions"
)

type fakeLoader struct {
	settings         *api.Settings
	err              error
	validationErrors []string
	calls            atomic.Int32
}

func (f *fakeLoader) Configs(context.Context) (*api.Settings, error) {
	f.calls.Add(1)
	return f.settings, f.err
}

func (f *fakeLoader) BasicAuthValidationErrors(context.Context) ([]string, error) {
	return f.validationErrors, nil
}

// gatedLoader holds Configs until gate is closed and fails when its context
// was cancelled meanwhile.
type gatedLoader struct {
	fakeLoader
	started chan struct{}
	gate    chan struct{}
}

func (g *gatedLoader) Configs(ctx context.Context) (*api.Settings, error) {
	select {
	case g.started <- struct{}{}:
	default:
	}
	<-g.gate
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return g.fakeLoader.Configs(ctx)
}

type fakeSession struct {
	initialized   bool
	authenticated bool
	hasTokens     bool
	verifyResult  sessions.AuthState
	verifyCalls   int
	cfg           oauth2.Config
}

func (f *fakeSession) Initialize(_ context.Context, cfg oauth2.Config) error {
	f.cfg = cfg
	f.initialized = true
	return nil
}
func (f *fakeSession) Initialized() bool     { return f.initialized }
func (f *fakeSession) IsAuthenticated() bool { return f.authenticated }
func (f *fakeSession) HasTokens() bool       { return f.hasTokens }
func (f *fakeSession) Verify(context.Context) (sessions.AuthState, error) {
	f.verifyCalls++
	f.authenticated = f.verifyResult == sessions.Authenticated
	return f.verifyResult, nil
}

type fakeBasicAuth struct {
	loggedIn        bool
	setupInProgress bool
	logouts         int
}

func (f *fakeBasicAuth) IsLoggedIn(context.Context) bool { return f.loggedIn }
func (f *fakeBasicAuth) SetupInProgress(context.Context) (bool, error) {
	return f.setupInProgress, nil
}
func (f *fakeBasicAuth) Logout(context.Context) error {
	f.logouts++
	f.loggedIn = false
	return nil
}

type fakeCounter struct {
	flows, executions int64
	err               error
}

func (f *fakeCounter) CountFlows(context.Context, string) (int64, error) {
	return f.flows, f.err
}

func (f *fakeCounter) CountExecutions(context.Context, string) (int64, error) {
	return f.executions, f.err
}

type testFixture struct {
	loader  *fakeLoader
	session *fakeSession
	basic   *fakeBasicAuth
	counter *fakeCounter
	guard   *guard.Guard
}

func oauth2Settings() *api.Settings {
	return &api.Settings{ProviderSettings: oauth2.ProviderSettings{
		ClientID:     "kestra-ui",
		AuthEndpoint: "https://idp.example.com/auth",
	}}
}

func setupTestFixture(t *testing.T, settings *api.Settings) *testFixture {
	t.Helper()
	f := &testFixture{
		loader:  &fakeLoader{settings: settings},
		session: &fakeSession{},
		basic:   &fakeBasicAuth{},
		counter: &fakeCounter{flows: 1, executions: 1},
	}
	g, err := guard.New(guard.Deps{
		Configs:   f.loader,
		Session:   f.session,
		BasicAuth: f.basic,
		Counter:   f.counter,
	}, guard.Options{Origin: "http://localhost:8080"})
	require.NoError(t, err)
	f.guard = g
	return f
}

func route(name, fullPath string) guard.Route {
	u, _ := url.Parse(fullPath)
	return guard.Route{Name: name, Path: u.Path, FullPath: fullPath, Query: u.Query()}
}

var fromNowhere = guard.Route{}

func requireLogin(t *testing.T, d guard.Decision, from string) {
	t.Helper()
	require.NotNil(t, d.Redirect)
	require.Equal(t, guard.RouteLogin, d.Redirect.Name)
	require.Equal(t, from, d.Redirect.Query.Get(oauth2.QueryParamFrom))
}

func TestGuard_NoopNavigation(t *testing.T) {
	f := setupTestFixture(t, oauth2Settings())
	a := route("flows/list", "/ui/flows?page=2")
	b := route("flows/list", "/ui/flows?page=2")

	require.True(t, f.guard.Evaluate(context.Background(), a, b).Allowed())
	require.Zero(t, f.loader.calls.Load())

	c := route("flows/list", "/ui/flows?page=3")
	requireLogin(t, f.guard.Evaluate(context.Background(), c, b), "/ui/flows?page=3")
}

func TestGuard_OAuth2(t *testing.T) {
	ctx := context.Background()

	t.Run("initializes the session with derived config", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere)
		require.Equal(t, "kestra-ui", f.session.cfg.ClientID)
		require.Equal(t, "http://localhost:8080/ui/oauth2-callback", f.session.cfg.RedirectURI)
	})

	t.Run("anonymous route is allowed while unauthenticated", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		to := route("login", "/ui/login")
		to.Anonymous = true
		require.True(t, f.guard.Evaluate(ctx, to, fromNowhere).Allowed())
	})

	t.Run("unauthenticated goes to login with from", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		requireLogin(t, f.guard.Evaluate(ctx, route("flows/list", "/ui/flows?q=a"), fromNowhere), "/ui/flows?q=a")
	})

	t.Run("from is omitted for the login page", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		d := f.guard.Evaluate(ctx, route("login", "/ui/login"), fromNowhere)
		requireLogin(t, d, "")
		require.NotContains(t, d.Redirect.Query, oauth2.QueryParamFrom)
	})

	t.Run("pending session is verified before continuing", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		f.session.hasTokens = true
		f.session.verifyResult = sessions.Authenticated
		require.True(t, f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere).Allowed())
		require.Equal(t, 1, f.session.verifyCalls)
	})

	t.Run("failed verification goes to login", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		f.session.hasTokens = true
		f.session.verifyResult = sessions.Unauthenticated
		requireLogin(t, f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere), "/ui/flows")
	})

	t.Run("empty workspace dashboard goes to welcome", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		f.session.authenticated = true
		f.counter.flows, f.counter.executions = 0, 0
		to := route("dashboard", "/ui/main/dashboard")
		to.Params = map[string]string{"tenant": "main"}

		d := f.guard.Evaluate(ctx, to, fromNowhere)
		require.NotNil(t, d.Redirect)
		require.Equal(t, guard.RouteWelcome, d.Redirect.Name)
		require.Equal(t, "main", d.Redirect.Params["tenant"])
	})

	t.Run("dashboard with content is allowed", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		f.session.authenticated = true
		f.counter.flows, f.counter.executions = 0, 4
		require.True(t, f.guard.Evaluate(ctx, route("home", "/ui/main"), fromNowhere).Allowed())
	})

	t.Run("configs are loaded once", func(t *testing.T) {
		f := setupTestFixture(t, oauth2Settings())
		f.session.authenticated = true
		f.guard.Evaluate(ctx, route("a", "/ui/a"), fromNowhere)
		f.guard.Evaluate(ctx, route("b", "/ui/b"), fromNowhere)
		require.Equal(t, int32(1), f.loader.calls.Load())
	})
}

func TestGuard_BasicAuth(t *testing.T) {
	ctx := context.Background()
	initialized := &api.Settings{IsBasicAuthInitialized: true}

	t.Run("validation errors send to login", func(t *testing.T) {
		f := setupTestFixture(t, &api.Settings{})
		f.loader.validationErrors = []string{"bad"}
		d := f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere)
		require.Equal(t, guard.RouteLogin, d.Redirect.Name)
		require.True(t, f.guard.Evaluate(ctx, route("login", "/ui/login"), fromNowhere).Allowed())
	})

	t.Run("no credentials configured sends to setup", func(t *testing.T) {
		f := setupTestFixture(t, &api.Settings{})
		d := f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere)
		require.Equal(t, guard.RouteSetup, d.Redirect.Name)
		require.True(t, f.guard.Evaluate(ctx, route("setup", "/ui/setup"), fromNowhere).Allowed())
	})

	t.Run("anonymous setup goes to login once initialized", func(t *testing.T) {
		f := setupTestFixture(t, initialized)
		to := route("setup", "/ui/setup")
		to.Anonymous = true
		require.Equal(t, guard.RouteLogin, f.guard.Evaluate(ctx, to, fromNowhere).Redirect.Name)

		other := route("login", "/ui/login")
		other.Anonymous = true
		require.True(t, f.guard.Evaluate(ctx, other, fromNowhere).Allowed())
	})

	t.Run("not logged in goes to login with from", func(t *testing.T) {
		f := setupTestFixture(t, initialized)
		requireLogin(t, f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere), "/ui/flows")
	})

	t.Run("setup in progress", func(t *testing.T) {
		f := setupTestFixture(t, initialized)
		f.basic.loggedIn = true
		f.basic.setupInProgress = true
		require.Equal(t, guard.RouteSetup, f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere).Redirect.Name)
	})

	t.Run("logged in empty workspace goes to welcome", func(t *testing.T) {
		f := setupTestFixture(t, initialized)
		f.basic.loggedIn = true
		f.counter.flows, f.counter.executions = 0, 0
		require.Equal(t, guard.RouteWelcome, f.guard.Evaluate(ctx, route("home", "/ui/main"), fromNowhere).Redirect.Name)
		require.True(t, f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere).Allowed())
	})
}

func TestGuard_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("401 logs out and goes to login", func(t *testing.T) {
		f := setupTestFixture(t, &api.Settings{IsBasicAuthInitialized: true})
		f.basic.loggedIn = true
		f.counter.err = &api.HTTPError{StatusCode: 401}

		requireLogin(t, f.guard.Evaluate(ctx, route("home", "/ui/main"), fromNowhere), "/ui/main")
		require.Equal(t, 1, f.basic.logouts)
	})

	t.Run("other errors go to setup", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		f.loader.err = errors.New("connection refused")
		d := f.guard.Evaluate(ctx, route("flows/list", "/ui/flows"), fromNowhere)
		require.Equal(t, guard.RouteSetup, d.Redirect.Name)
		require.Zero(t, f.basic.logouts)
	})

	t.Run("failed config load is retried", func(t *testing.T) {
		f := setupTestFixture(t, nil)
		f.loader.err = errors.New("boom")
		f.guard.Evaluate(ctx, route("a", "/ui/a"), fromNowhere)
		f.loader.err = nil
		f.loader.settings = &api.Settings{}
		f.guard.Evaluate(ctx, route("b", "/ui/b"), fromNowhere)
		require.Equal(t, int32(2), f.loader.calls.Load())
	})
}

func TestWelcomeChecker(t *testing.T) {
	w := guard.NewWelcomeChecker(&fakeCounter{}, "overview")
	require.True(t, w.IsDashboardRoute("overview"))
	require.False(t, w.IsDashboardRoute("home"))

	show, err := w.ShouldShowWelcome(context.Background(), "main")
	require.NoError(t, err)
	require.True(t, show)

	_, err = guard.NewWelcomeChecker(&fakeCounter{err: errors.New("down")}).ShouldShowWelcome(context.Background(), "")
	require.Error(t, err)
}

func TestConfigCache_Load(t *testing.T) {
	t.Run("cancelled caller does not fail joined callers", func(t *testing.T) {
		loader := &gatedLoader{
			fakeLoader: fakeLoader{settings: &api.Settings{IsBasicAuthInitialized: true}},
			started:    make(chan struct{}, 1),
			gate:       make(chan struct{}),
		}
		cache := guard.NewConfigCache(loader)

		ctx, cancel := context.WithCancel(context.Background())
		first := make(chan error, 1)
		go func() {
			_, err := cache.Load(ctx)
			first <- err
		}()
		<-loader.started

		type result struct {
			settings *api.Settings
			err      error
		}
		second := make(chan result, 1)
		go func() {
			s, err := cache.Load(context.Background())
			second <- result{s, err}
		}()

		cancel()
		require.ErrorIs(t, <-first, context.Canceled)

		time.Sleep(20 * time.Millisecond)
		close(loader.gate)
		res := <-second
		require.NoError(t, res.err)
		require.True(t, res.settings.IsBasicAuthInitialized)

		s, err := cache.Load(context.Background())
		require.NoError(t, err)
		require.Same(t, res.settings, s)
	})
}
