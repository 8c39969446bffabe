package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/evservice/core/account"
	"github.com/dmitrymomot/evservice/core/authapi"
	"github.com/dmitrymomot/evservice/core/guard"
)

func newLoginCmd(opts *options) *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session locally",
		Long: `Log in with a username and password. Missing values are read from stdin,
one per line. The session is written to the state file and reused by later
commands until "evservice logout".

Examples:
  evservice login --username lan@example.com
  printf 'lan@example.com\nsecret\n' | evservice login`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := bufio.NewReader(cmd.InOrStdin())
			var err error
			if username == "" {
				if username, err = prompt(cmd.ErrOrStderr(), in, "Username: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = prompt(cmd.ErrOrStderr(), in, "Password: "); err != nil {
					return err
				}
			}

			store, err := opts.store(cmd.Context())
			if err != nil {
				return err
			}
			identity, err := store.Login(cmd.Context(), account.Credentials{Username: username, Password: password})
			if err != nil {
				return fmt.Errorf("login failed: %s", authapi.Message(err))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", identity.DisplayName(), identity.Role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username or email")
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store(cmd.Context())
			if err != nil {
				return err
			}
			// Storage is cleared even when nothing was restored: the state
			// file may exist but be unreadable.
			wasAuthenticated := store.IsAuthenticated()
			store.Logout(cmd.Context())
			if !wasAuthenticated {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session's user",
		Long: `Show the user of the stored session. With --refresh the profile is
fetched from the backend first; a rejected token ends the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.store(cmd.Context())
			if err != nil {
				return err
			}
			if !store.IsAuthenticated() {
				return ErrNotLoggedIn
			}

			if refresh {
				if _, err := store.Refresh(cmd.Context()); err != nil {
					if errors.Is(err, authapi.ErrInvalidCredentials) {
						return fmt.Errorf("session expired: %w", ErrNotLoggedIn)
					}
					return fmt.Errorf("refresh failed: %s", authapi.Message(err))
				}
			}

			s, _ := store.Current()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:    %s\n", s.Identity.DisplayName())
			fmt.Fprintf(out, "Email:   %s\n", s.Identity.Email)
			if s.Identity.Phone != "" {
				fmt.Fprintf(out, "Phone:   %s\n", s.Identity.Phone)
			}
			fmt.Fprintf(out, "Role:    %s\n", s.Identity.Role)
			fmt.Fprintf(out, "Landing: %s\n", guard.Landing(s.Identity.Role))
			return nil
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "fetch the profile from the backend")
	return cmd
}

func prompt(w io.Writer, in *bufio.Reader, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}
