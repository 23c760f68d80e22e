package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/TechQuilaMx/kestra-rbac-oauth/api"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
)

const defaultLoginWait = 5 * time.Minute

type loginOptions struct {
	username string
	password string
	wait     time.Duration
}

func newLoginCmd(ro *rootOptions, cfg config.Config) *cobra.Command {
	lo := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the Kestra backend",
		Long: `Log in to the Kestra backend.

When the backend has an OAuth2 client configured, the provider's login page
is opened and the redirect is received on the console origin. Otherwise the
legacy basic-auth credentials are checked against the backend and stored.

Examples:
  kestra-console login
  kestra-console login --no-browser --origin http://localhost:9000
  kestra-console login --username admin@example.com --password 'Secret123'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(ctx, cmd, ro, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.login(ctx, ro.timeout, lo)
		},
	}

	cmd.Flags().StringVarP(&lo.username, "username", "u", "", "basic-auth username")
	cmd.Flags().StringVarP(&lo.password, "password", "p", "", "basic-auth password")
	cmd.Flags().DurationVar(&lo.wait, "wait", defaultLoginWait, "how long to wait for the provider redirect")
	return cmd
}

func (a *app) login(ctx context.Context, timeout time.Duration, lo *loginOptions) error {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	settings, err := a.settings(reqCtx)
	cancel()
	if err != nil {
		return err
	}

	if settings.Enabled() {
		return a.loginOAuth2(ctx, settings, lo.wait)
	}
	return a.loginBasic(ctx, lo.username, lo.password)
}

func (a *app) loginOAuth2(ctx context.Context, settings *api.Settings, wait time.Duration) error {
	cb, err := listenCallback(a.origin)
	if err != nil {
		return err
	}
	defer func() {
		if err := cb.Close(); err != nil {
			a.logger.Debug().Err(err).Msg("callback listener shutdown")
		}
	}()

	ok, err := a.initOAuth2(ctx, settings, cb.Origin())
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: the backend OAuth2 client is not usable", errAuthFailed)
	}

	if err := a.session.Login(ctx); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	res, err := cb.Wait(waitCtx)
	if err != nil {
		if abandonErr := a.session.AbandonLogin(context.WithoutCancel(ctx)); abandonErr != nil {
			a.logger.Err(abandonErr).Msg("failed to clear login state")
		}
		return fmt.Errorf("%w: %w", errAuthFailed, err)
	}
	if err := a.session.HandleCallback(ctx, res.code, res.state); err != nil {
		return fmt.Errorf("%w: %w", errAuthFailed, err)
	}

	who := "unknown user"
	if u := a.session.UserInfo(); u != nil && u.Username != "" {
		who = u.Username
	}
	fmt.Fprintf(a.out, "%s as %s\n", text.FgGreen.Sprint("Logged in"), who)
	return nil
}

// loginBasic stores the credentials once the backend accepts them.
func (a *app) loginBasic(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("basic auth login needs --username and --password")
	}
	if err := a.basic.Login(ctx, username, password); err != nil {
		return err
	}

	if _, err := a.client.CountFlows(ctx, ""); err != nil {
		var httpErr *api.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsUnauthorized() {
			if logoutErr := a.basic.Logout(ctx); logoutErr != nil {
				a.logger.Err(logoutErr).Msg("failed to forget rejected credentials")
			}
			return fmt.Errorf("%w: invalid username or password", errAuthFailed)
		}
		return err
	}

	fmt.Fprintf(a.out, "%s as %s (basic auth)\n", text.FgGreen.Sprint("Logged in"), username)
	return nil
}
