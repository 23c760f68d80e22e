package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TechQuilaMx/kestra-rbac-oauth/api"
	"github.com/TechQuilaMx/kestra-rbac-oauth/auth"
	"github.com/TechQuilaMx/kestra-rbac-oauth/basicauth"
	"github.com/TechQuilaMx/kestra-rbac-oauth/guard"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
	"github.com/TechQuilaMx/kestra-rbac-oauth/oauth2"
	"github.com/TechQuilaMx/kestra-rbac-oauth/sessions"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage/file"
	"github.com/TechQuilaMx/kestra-rbac-oauth/storage/memory"
	redisstore "github.com/TechQuilaMx/kestra-rbac-oauth/storage/redis"
)

// app wires one console session for the duration of a command.
type app struct {
	out       io.Writer
	logger    zerolog.Logger
	origin    string
	noBrowser bool
	navigator auth.Navigator

	store   storage.Storage
	closeFn func() error
	client  *api.Client
	basic   *basicauth.CredentialStore
	session *sessions.Session
	guard   *guard.Guard
}

func newApp(ctx context.Context, cmd *cobra.Command, ro *rootOptions, cfg config.Config) (*app, error) {
	logger := logging.New(cfg.GetEnv(), cmd.ErrOrStderr())
	if !ro.verbose {
		logger = logger.Level(zerolog.WarnLevel)
	}

	a := &app{
		out:       cmd.OutOrStdout(),
		logger:    logger,
		origin:    strings.TrimRight(ro.origin, "/"),
		noBrowser: ro.noBrowser,
		navigator: ro.navigator,
	}

	store, closeFn, err := openStorage(ctx, cfg, config.ParseStorageBackend(ro.storage))
	if err != nil {
		return nil, err
	}
	a.store, a.closeFn = store, closeFn
	a.basic = basicauth.NewCredentialStore(store)
	a.client = api.New(ro.backendURL, api.WithAuthorization(a.authorization))

	a.session, err = sessions.New(sessions.Deps{
		Storage:   store,
		Backend:   a.client,
		Profiles:  a.client,
		Navigator: auth.NavigatorFunc(a.navigate),
		Logger:    &a.logger,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	a.guard, err = guard.New(guard.Deps{
		Configs:   a.client,
		Session:   a.session,
		BasicAuth: a.basic,
		Counter:   a.client,
		Logger:    &a.logger,
	}, guard.Options{Origin: a.origin})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func openStorage(ctx context.Context, cfg config.StorageConfig, backend config.StorageBackend) (storage.Storage, func() error, error) {
	switch backend {
	case config.StorageMemory:
		return memory.New(cfg.GetSessionTTL()), nil, nil
	case config.StorageRedis:
		s, err := redisstore.New(ctx, redisstore.Config{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.GetRedisPassword(),
			Prefix:   cfg.GetRedisPrefix(),
			TTL:      cfg.GetSessionTTL(),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("[console openStorage] %w", err)
		}
		return s, s.Close, nil
	default:
		s, err := file.New(cfg.GetTokenFile())
		if err != nil {
			return nil, nil, fmt.Errorf("[console openStorage] %w", err)
		}
		return s, nil, nil
	}
}

// Close releases the session and the storage.
func (a *app) Close() {
	if a.session != nil {
		a.session.Close()
	}
	if a.closeFn != nil {
		if err := a.closeFn(); err != nil {
			a.logger.Err(err).Msg("failed to close storage")
		}
	}
}

// authorization prefers a valid access token over basic credentials. It never
// refreshes, as it also serves the refresh request itself.
func (a *app) authorization(ctx context.Context) string {
	if engine := a.session.Engine(); engine != nil {
		if t := engine.GetAccessToken(); t != "" {
			return api.BearerAuthorization(t)
		}
	}
	return a.basic.Authorization(ctx)
}

func (a *app) navigate(ctx context.Context, target string) error {
	if a.navigator != nil {
		return a.navigator.Navigate(ctx, target)
	}
	fmt.Fprintf(a.out, "%s\n  %s\n", text.FgHiBlack.Sprint("Open in your browser:"), target)
	if a.noBrowser {
		return nil
	}
	if err := openBrowser(target); err != nil {
		a.logger.Debug().Err(err).Msg("browser not opened")
	}
	return nil
}

// settings loads the backend configuration through the guard cache.
func (a *app) settings(ctx context.Context) (*api.Settings, error) {
	s, err := a.guard.Configs().Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load backend configuration: %w", err)
	}
	return s, nil
}

// initOAuth2 creates the engine for settings. It reports false when the
// backend has no usable OAuth2 client.
func (a *app) initOAuth2(ctx context.Context, settings *api.Settings, origin string) (bool, error) {
	if !settings.Enabled() {
		return false, nil
	}
	if err := a.session.Initialize(ctx, oauth2.ConfigFromSettings(settings.ProviderSettings, origin)); err != nil {
		return false, err
	}
	return a.session.Initialized(), nil
}
