package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/TechQuilaMx/kestra-rbac-oauth/auth"
	"github.com/TechQuilaMx/kestra-rbac-oauth/internal/config"
)

const (
	defaultOrigin  = "http://localhost:8085"
	defaultTimeout = 30 * time.Second
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	backendURL string
	storage    string
	origin     string
	noBrowser  bool
	verbose    bool
	timeout    time.Duration

	// navigator replaces the browser when set.
	navigator auth.Navigator
}

func newRootCmd(navigator auth.Navigator) *cobra.Command {
	cfg := config.New()
	ro := &rootOptions{navigator: navigator}

	cmd := &cobra.Command{
		Use:   "kestra-console",
		Short: "Authenticate against a Kestra backend from the terminal",
		Long: `kestra-console drives the console authentication flow from a terminal.

It logs in through the backend's OAuth2 provider (or legacy basic auth),
keeps the session in the configured storage, and shows which console
routes the current session may open.`,
		SilenceUsage: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&ro.backendURL, "server", cfg.GetBackendURL(), "Kestra backend URL")
	flags.StringVar(&ro.storage, "storage", string(cfg.GetStorageBackend()), "session storage: file, memory or redis")
	flags.StringVar(&ro.origin, "origin", defaultOrigin, "console origin; the OAuth2 callback listens on its host")
	flags.BoolVar(&ro.noBrowser, "no-browser", false, "print provider URLs instead of opening a browser")
	flags.BoolVarP(&ro.verbose, "verbose", "v", false, "log debug output to stderr")
	flags.DurationVar(&ro.timeout, "timeout", defaultTimeout, "timeout for backend requests")

	cmd.AddCommand(
		newLoginCmd(ro, cfg),
		newLogoutCmd(ro, cfg),
		newStatusCmd(ro, cfg),
		newCheckCmd(ro, cfg),
		newSetupCmd(ro, cfg),
	)
	return cmd
}
