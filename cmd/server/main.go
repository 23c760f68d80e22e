package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/TechQuilaMx/kestra-rbac-oauth/basicauth"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/logging"
	"github.com/TechQuilaMx/kestra-rbac-oauth/server"
	"github.com/TechQuilaMx/kestra-rbac-oauth/users"
)

var version = "dev"

func main() {
	_ = godotenv.Load()
	c := config.New()
	logging.SetGlobal(logging.New(c.GetEnv(), os.Stderr))

	if err := run(c); err != nil {
		log.Fatal().Err(err).Msg("error running server")
	}
	log.Info().Msg("server stopped")
}

func run(c config.Config) (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			returnError = errors.New("panic recovered")
		}
	}()

	displayAppname(c.GetAppName())

	handler, err := newHandler(context.Background(), c)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.GetPort(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- listenAndServe(srv) }()

	select {
	case err := <-errCh:
		return err
	case <-waitForStopSignal():
	}
	return shutdown(srv)
}

func newHandler(ctx context.Context, c config.Config) (http.Handler, error) {
	basic, err := basicauth.NewService(basicauth.Credentials{
		Username: c.GetBasicAuthUsername(),
		Password: c.GetBasicAuthPassword(),
	})
	if err != nil {
		return nil, fmt.Errorf("[newHandler] basic auth: %w", err)
	}
	if errs := basic.ValidationErrors(); len(errs) > 0 {
		log.Warn().Strs("errors", errs).Msg("basic auth credentials are invalid")
	}

	authorization, err := users.LoadAuthorization(c.GetRolePermissionsFile())
	if err != nil {
		return nil, fmt.Errorf("[newHandler] %w", err)
	}

	deps := server.Deps{
		BasicAuth:     basic,
		Authorization: authorization,
		Workspace:     server.NewMemoryWorkspace(),
		Version:       version,
	}

	if settings := c.GetProviderSettings(); settings.Enabled() {
		provider, err := server.NewProvider(ctx, server.ProviderOptions{
			Settings:      settings,
			Issuer:        c.GetIssuer(),
			RoleClaimPath: c.GetRoleClaimPath(),
		})
		if err != nil {
			return nil, fmt.Errorf("[newHandler] %w", err)
		}
		deps.Provider = provider
		log.Info().Str("client_id", settings.ClientID).Msg("oauth2 enabled")
	}

	return server.New(c, deps)
}

func listenAndServe(srv *http.Server) error {
	log.Info().Str("addr", srv.Addr).Msg("server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.ListenAndServe %w", err)
	}
	return nil
}

func waitForStopSignal() <-chan os.Signal {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	return stop
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
