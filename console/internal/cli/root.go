package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"vpn-console/console/internal/config"
	"vpn-console/console/internal/session"
)

// Runtime carries flag values and, once PersistentPreRunE has run, the App.
type Runtime struct {
	opts Options

	configPath     string
	apiURL         string
	sessionBackend string
	sessionPath    string
	output         string

	App *App
}

func NewRootCommand(opts Options) *cobra.Command {
	rt := &Runtime{opts: opts}

	root := &cobra.Command{
		Use:           "vpnconsole",
		Short:         "Administration console for the VPN provisioning backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return rt.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if rt.App == nil {
				return nil
			}
			return rt.App.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&rt.configPath, "config", "", "path to config file (default "+config.DefaultPath()+")")
	flags.StringVar(&rt.apiURL, "api-url", "", "backend base URL (overrides VPNCONSOLE_API_URL)")
	flags.StringVar(&rt.sessionBackend, "session-backend", "", "session storage: file, sqlite or memory")
	flags.StringVar(&rt.sessionPath, "session-path", "", "session storage path")
	flags.StringVarP(&rt.output, "output", "o", formatTable, "output format: table, json or yaml")

	root.AddCommand(
		NewLoginCommand(rt),
		NewLogoutCommand(rt),
		NewWhoamiCommand(rt),
		NewHealthCommand(rt),
		NewDevicesCommand(rt),
		NewTrafficCommand(rt),
		NewSummaryCommand(rt),
		NewAccessCommand(rt),
		NewPeersCommand(rt),
		NewAdminCommand(rt),
		NewDashboardCommand(rt),
	)
	return root
}

func (rt *Runtime) setup(cmd *cobra.Command) error {
	path, explicit := rt.configPath, rt.configPath != ""
	if !explicit {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path, explicit)
	if err != nil {
		return err
	}
	if rt.apiURL != "" {
		cfg.APIURL = rt.apiURL
	}
	if rt.sessionBackend != "" {
		cfg.Session.Backend = rt.sessionBackend
	}
	if rt.sessionPath != "" {
		cfg.Session.Path = rt.sessionPath
	}
	cfg.ApplyDefaults()

	switch rt.output {
	case formatTable, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown output format %q", rt.output)
	}

	app, err := NewApp(cfg, cmd.OutOrStdout(), rt.opts)
	if err != nil {
		return err
	}
	app.Format = rt.output
	rt.App = app
	return app.Initialize(cmd.Context())
}

// guarded replaces the root pre-run for a command subtree: it sets up the
// App as usual and then applies guard.
func (rt *Runtime) guarded(guard func() error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := rt.setup(cmd); err != nil {
			return err
		}
		return guard()
	}
}

// requireUser is the guard for commands that need any signed-in user.
func (rt *Runtime) requireUser() error {
	return guardError(rt.App.Session.RequireAuthenticated())
}

// requireAdmin is the guard for admin commands.
func (rt *Runtime) requireAdmin() error {
	return guardError(rt.App.Session.RequireAdmin())
}

func guardError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNotAuthenticated):
		return fmt.Errorf("%w; run `vpnconsole login` first", err)
	case errors.Is(err, session.ErrForbidden):
		return fmt.Errorf("%w for this command", err)
	default:
		return err
	}
}
