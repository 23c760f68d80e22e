package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
)

func newSetupCmd(ro *rootOptions, cfg config.Config) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the basic-auth user of the backend",
		Long: `Create the basic-auth user of a backend without OAuth2.

Replacing an existing user requires being logged in as that user.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.timeout)
			defer cancel()

			a, err := newApp(ctx, cmd, ro, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.setup(ctx, username, password)
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "email address of the user")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password of the user")
	return cmd
}

// setup creates the user, then logs in with it. The setup flag keeps the
// guard on the setup page until the login is stored.
func (a *app) setup(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("setup needs --username and --password")
	}
	if err := a.basic.SetSetupInProgress(ctx, true); err != nil {
		return err
	}
	if err := a.client.SetupBasicAuth(ctx, username, password); err != nil {
		return err
	}
	if err := a.basic.Login(ctx, username, password); err != nil {
		return err
	}
	if err := a.basic.SetSetupInProgress(ctx, false); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s for %s\n", text.FgGreen.Sprint("Basic auth configured"), username)
	return nil
}
