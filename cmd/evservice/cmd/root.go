// Package cmd provides the evservice command line: the web portal server and
// account commands that keep their session in a local state file.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/evservice/core/authapi"
	"github.com/dmitrymomot/evservice/core/clientstore"
	"github.com/dmitrymomot/evservice/core/config"
	"github.com/dmitrymomot/evservice/core/session"
)

// ErrNotLoggedIn is returned by commands that need a stored session.
var ErrNotLoggedIn = errors.New("not logged in: run \"evservice login\" first")

// options are the persistent flags shared by the account commands.
type options struct {
	statePath  string
	backendURL string
	timeout    time.Duration
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "evservice",
		Short: "EV service center portal",
		Long: `evservice runs the EV service center web portal and provides account
commands against the same backend.

Commands:
  serve       Start the web portal
  login       Log in and store the session locally
  logout      End the stored session
  whoami      Show the stored session's user
  password    Password recovery and account verification

The account commands keep their session in a JSON state file, by default
$XDG_CONFIG_HOME/evservice/session.json. The backend URL is read from
--backend-url or BACKEND_URL.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.statePath, "state", "", "path to the session state file (default: $XDG_CONFIG_HOME/evservice/session.json)")
	root.PersistentFlags().StringVar(&opts.backendURL, "backend-url", "", "backend API base URL (default: $BACKEND_URL)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 0, "backend request timeout (default: $BACKEND_TIMEOUT)")

	root.AddCommand(
		newServeCmd(),
		newLoginCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newPasswordCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locating config directory: %w", err)
	}
	return filepath.Join(dir, "evservice", "session.json"), nil
}

// client builds the auth client from flags, falling back to the environment.
func (o *options) client() (*authapi.Client, error) {
	var cfg authapi.Config
	if o.backendURL == "" || o.timeout == 0 {
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
	}
	if o.backendURL != "" {
		cfg.BaseURL = o.backendURL
	}
	if o.timeout > 0 {
		cfg.Timeout = o.timeout
	}
	return authapi.NewFromConfig(cfg), nil
}

// store opens the file-backed session and restores it.
func (o *options) store(ctx context.Context) (*session.Store, error) {
	path := o.statePath
	if path == "" {
		p, err := defaultStatePath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	gw, err := o.client()
	if err != nil {
		return nil, err
	}
	s := session.NewStore(clientstore.NewFile(path), gw)
	s.Hydrate(ctx)
	return s, nil
}
