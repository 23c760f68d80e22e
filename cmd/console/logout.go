package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
)

func newLogoutCmd(ro *rootOptions, cfg config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the console session",
		Long: `End the console session.

Stored tokens and basic-auth credentials are removed. With OAuth2 the
provider's logout page is opened as well, so the provider session ends too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.timeout)
			defer cancel()

			a, err := newApp(ctx, cmd, ro, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.logout(ctx)
		},
	}
}

// logout always clears local state, even when the backend cannot be reached.
func (a *app) logout(ctx context.Context) error {
	if settings, err := a.settings(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("logging out without backend configuration")
	} else if _, err := a.initOAuth2(ctx, settings, a.origin); err != nil {
		a.logger.Warn().Err(err).Msg("oauth2 engine unavailable")
	}

	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	if err := a.basic.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, text.FgGreen.Sprint("Logged out"))
	return nil
}
