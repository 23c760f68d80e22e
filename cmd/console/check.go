package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/TechQuilaMx/kestra-rbac-oauth/guard"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
)

func newCheckCmd(ro *rootOptions, cfg config.Config) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "check <path>",
		Short: "Show where the console would send you for a route",
		Long: `Run the navigation guard for a console route with the current session.

The command prints "allow" or the redirect target. It exits with code 2 when
the route needs a login.

Examples:
  kestra-console check /ui/main/flows
  kestra-console check /ui/main --from /ui/login`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), ro.timeout)
			defer cancel()

			a, err := newApp(ctx, cmd, ro, cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.check(ctx, args[0], from)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "route the navigation starts from")
	return cmd
}

func (a *app) check(ctx context.Context, to, from string) error {
	toRoute, err := parseRoute(to)
	if err != nil {
		return err
	}
	fromRoute, err := parseRoute(from)
	if err != nil {
		return err
	}

	d := a.guard.Evaluate(ctx, toRoute, fromRoute)
	if d.Allowed() {
		fmt.Fprintf(a.out, "%s %s (%s)\n", text.FgGreen.Sprint("allow"), toRoute.FullPath, toRoute.Name)
		return nil
	}

	fmt.Fprintf(a.out, "%s %s\n", text.FgYellow.Sprint("redirect"), describeTarget(*d.Redirect))
	if d.Redirect.Name == guard.RouteLogin {
		return errAuthRequired
	}
	return nil
}

func describeTarget(t guard.Target) string {
	var b strings.Builder
	b.WriteString(t.Name)
	if tenant := t.Params["tenant"]; tenant != "" {
		b.WriteString(" [tenant=" + tenant + "]")
	}
	if len(t.Query) > 0 {
		b.WriteString("?" + t.Query.Encode())
	}
	return b.String()
}
