package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/Sternrassler/branchdesk/pkg/auth"
	"github.com/Sternrassler/branchdesk/pkg/client"
	"github.com/Sternrassler/branchdesk/pkg/config"
	"github.com/spf13/cobra"
)

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var creds auth.Credentials

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and keep the session in the token store",
		Long: `Login exchanges email and password for an access and a refresh
token and stores both. Without --password the password is read from the
first line of stdin.`,
		Example: `  branchctl login --email admin@example.com
  echo "$PASSWORD" | branchctl login --email admin@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if creds.Password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("no password given (use --password or stdin)")
				}
				creds.Password = strings.TrimRight(line, "\r\n")
			}

			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Auth.Store == config.StoreMemory {
				a.logger.Warn().Msg("Token store is memory - the session ends with this command")
			}

			resp, err := a.session.Login(cmd.Context(), creds)
			if err != nil {
				apiErr := client.AsAPIError(err)
				for _, fe := range apiErr.FieldErrors {
					fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
				}
				return fmt.Errorf("login failed: %s", apiErr.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>.\n", resp.User.Name, resp.User.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.session.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("clear tokens: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user and permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := checkFormat(opts.output); err != nil {
				return err
			}
			a, err := newApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if err := a.session.CheckAuth(ctx); err != nil {
				return sessionError(err)
			}
			if !a.session.IsAuthenticated() {
				if err := a.session.FetchUser(ctx); err != nil {
					return sessionError(err)
				}
			}
			return printUser(cmd.OutOrStdout(), opts.output, a.session.User())
		},
	}
}

func sessionError(err error) error {
	if client.IsUnauthorized(err) || errors.Is(err, auth.ErrNoRefreshToken) {
		return errNotLoggedIn
	}
	return err
}
