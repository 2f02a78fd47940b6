package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/refitt/refitt-api/internal/domain/auth"
)

// withAuth opens a session for the duration of fn.
func withAuth(ctx context.Context, lifetime time.Duration, fn func(*auth.Service) error) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	svc, err := s.auth(lifetime)
	if err != nil {
		return err
	}
	return fn(svc)
}

func printCredentials(cmd *cobra.Command, creds auth.Credentials) {
	fmt.Fprintf(cmd.OutOrStdout(), "key:    %s\nsecret: %s\n", creds.Key, creds.Secret)
}

func newClientCommand() *cobra.Command {
	var userID int64
	cmd := &cobra.Command{
		Use:   "client",
		Short: "Manage API client credentials",
	}
	cmd.PersistentFlags().Int64Var(&userID, "user-id", 0, "User the client belongs to")
	_ = cmd.MarkPersistentFlagRequired("user-id")

	var level int
	create := &cobra.Command{
		Use:   "new",
		Short: "Create a client and print its key and secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAuth(cmd.Context(), 0, func(svc *auth.Service) error {
				creds, _, err := svc.NewClient(cmd.Context(), userID, level)
				if err != nil {
					return err
				}
				printCredentials(cmd, creds)
				return nil
			})
		},
	}
	create.Flags().IntVar(&level, "level", -1, "Access level, 0 for admin (default: configured client level)")

	rotate := func(use, short string, fn func(*auth.Service) func(context.Context, int64) (auth.Credentials, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withAuth(cmd.Context(), 0, func(svc *auth.Service) error {
					creds, err := fn(svc)(cmd.Context(), userID)
					if err != nil {
						return err
					}
					printCredentials(cmd, creds)
					return nil
				})
			},
		}
	}

	access := func(use, short string, valid bool) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withAuth(cmd.Context(), 0, func(svc *auth.Service) error {
					c, err := svc.SetAccess(cmd.Context(), userID, valid)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "client %d of user %d valid: %t\n", c.ID, c.UserID, c.Valid)
					return nil
				})
			},
		}
	}

	cmd.AddCommand(
		create,
		rotate("secret", "Regenerate the client secret, keeping the key",
			func(svc *auth.Service) func(context.Context, int64) (auth.Credentials, error) { return svc.RotateSecret }),
		rotate("key", "Regenerate both key and secret",
			func(svc *auth.Service) func(context.Context, int64) (auth.Credentials, error) { return svc.RotateKey }),
		access("revoke", "Revoke client access", false),
		access("restore", "Restore client access", true),
	)
	return cmd
}

func newTokenCommand() *cobra.Command {
	var (
		userID   int64
		lifetime time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user's client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAuth(cmd.Context(), lifetime, func(svc *auth.Service) error {
				tok, err := svc.IssueSession(cmd.Context(), userID)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), tok)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&userID, "user-id", 0, "User whose client receives the token")
	cmd.Flags().DurationVar(&lifetime, "lifetime", 0, "Token lifetime (default: configured token lifetime)")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}
