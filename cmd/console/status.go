package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/TechQuilaMx/kestra-rbac-oauth/api"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
	"github.com/TechQuilaMx/kestra-rbac-oauth/permissions"
	"github.com/TechQuilaMx/kestra-rbac-oauth/sessions"
	"github.com/TechQuilaMx/kestra-rbac-oauth/token"
)

func newStatusCmd(ro *rootOptions, cfg config.Config) *cobra.Command {
	var showPermissions bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the authentication status of the console session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.timeout)
			defer cancel()

			a, err := newApp(ctx, cmd, ro, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.status(ctx, ro.backendURL, showPermissions)
		},
	}
	cmd.Flags().BoolVar(&showPermissions, "permissions", false, "list the console capabilities of the current user")
	return cmd
}

func (a *app) status(ctx context.Context, backendURL string, showPermissions bool) error {
	fmt.Fprintln(a.out, "Kestra Backend")
	fmt.Fprintf(a.out, "  Endpoint:  %s\n", backendURL)

	settings, err := a.settings(ctx)
	if err != nil {
		fmt.Fprintf(a.out, "  Status:    %s\n", text.FgRed.Sprint("Unreachable"))
		return err
	}

	ok, err := a.initOAuth2(ctx, settings, a.origin)
	if err != nil {
		return err
	}
	if ok {
		return a.statusOAuth2(ctx, settings, showPermissions)
	}
	return a.statusBasic(ctx, settings)
}

func (a *app) statusOAuth2(ctx context.Context, settings *api.Settings, showPermissions bool) error {
	fmt.Fprintf(a.out, "  Mode:      OAuth2 (client %s)\n", settings.ClientID)

	if !a.session.HasTokens() {
		fmt.Fprintf(a.out, "  Status:    %s\n", text.FgYellow.Sprint("Not authenticated"))
		fmt.Fprintln(a.out, "             Run: kestra-console login")
		return nil
	}

	state, err := a.session.Verify(ctx)
	if err != nil {
		return err
	}
	if state != sessions.Authenticated {
		fmt.Fprintf(a.out, "  Status:    %s\n", text.FgYellow.Sprint("Session expired"))
		fmt.Fprintln(a.out, "             Run: kestra-console login")
		return nil
	}

	fmt.Fprintf(a.out, "  Status:    %s\n", text.FgGreen.Sprint("Authenticated"))
	if engine := a.session.Engine(); engine != nil {
		if ts := engine.Tokens(); ts != nil {
			fmt.Fprintf(a.out, "  Expires:   %s\n", formatExpiry(ts.Expiry()))
			if ts.HasRefreshToken() {
				fmt.Fprintf(a.out, "  Refresh:   %s\n", text.FgGreen.Sprint("Available"))
			} else {
				fmt.Fprintf(a.out, "  Refresh:   %s\n", text.FgYellow.Sprint("Not available (login required on expiry)"))
			}
		}
	}

	profile := a.session.UserInfo()
	if profile == nil {
		fmt.Fprintf(a.out, "  Profile:   %s\n", text.FgYellow.Sprint("Unavailable"))
		return nil
	}
	fmt.Fprintf(a.out, "  User:      %s\n", profile.Username)
	fmt.Fprintf(a.out, "  Roles:     %s\n", strings.Join(profile.Roles, ", "))
	if a.session.IsAdmin() {
		fmt.Fprintf(a.out, "  Admin:     %s\n", text.FgGreen.Sprint("yes"))
	}

	if showPermissions {
		a.renderCapabilities(permissions.NewGate(a.session))
	}
	return nil
}

func (a *app) statusBasic(ctx context.Context, settings *api.Settings) error {
	fmt.Fprintln(a.out, "  Mode:      Basic auth")
	switch {
	case !settings.IsBasicAuthInitialized:
		fmt.Fprintf(a.out, "  Status:    %s\n", text.FgYellow.Sprint("Setup required"))
		fmt.Fprintln(a.out, "             Run: kestra-console setup")
	case !a.basic.IsLoggedIn(ctx):
		fmt.Fprintf(a.out, "  Status:    %s\n", text.FgYellow.Sprint("Not authenticated"))
		fmt.Fprintln(a.out, "             Run: kestra-console login --username <user> --password <password>")
	default:
		fmt.Fprintf(a.out, "  Status:    %s\n", text.FgGreen.Sprint("Logged in"))
	}
	return nil
}

type capability struct {
	name    string
	allowed func(*permissions.Gate) bool
}

var capabilities = []capability{
	{"View flows", (*permissions.Gate).CanViewFlows},
	{"Create flows", (*permissions.Gate).CanCreateFlows},
	{"Edit flows", (*permissions.Gate).CanEditFlows},
	{"Delete flows", (*permissions.Gate).CanDeleteFlows},
	{"View executions", (*permissions.Gate).CanViewExecutions},
	{"Create executions", (*permissions.Gate).CanCreateExecutions},
	{"Restart executions", (*permissions.Gate).CanRestartExecutions},
	{"Kill executions", (*permissions.Gate).CanKillExecutions},
	{"Access administration", (*permissions.Gate).CanAccessAdmin},
	{"Edit settings", (*permissions.Gate).CanEditSettings},
}

func (a *app) renderCapabilities(gate *permissions.Gate) {
	t := table.NewWriter()
	t.SetOutputMirror(a.out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{text.FgHiCyan.Sprint("CAPABILITY"), text.FgHiCyan.Sprint("ALLOWED")})
	for _, c := range capabilities {
		allowed := text.FgRed.Sprint("no")
		if c.allowed(gate) {
			allowed = text.FgGreen.Sprint("yes")
		}
		t.AppendRow(table.Row{c.name, allowed})
	}
	fmt.Fprintln(a.out)
	t.Render()
}

func formatExpiry(expiry time.Time) string {
	if expiry.IsZero() {
		return "unknown"
	}
	d := expiry.Sub(token.NowTimeFunc()).Round(time.Second)
	if d <= 0 {
		return text.FgYellow.Sprintf("%s (expired %s ago)", expiry.Format(time.RFC3339), -d)
	}
	return fmt.Sprintf("%s (in %s)", expiry.Format(time.RFC3339), d)
}
