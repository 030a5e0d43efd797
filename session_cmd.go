package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginCmd = &cobra.Command{
		Use:     "login EMAIL",
		Short:   "Sign in to save sounds and keep search history",
		Example: paragraph("soundshelf login dj@example.com"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, a *app) error {
				sess, err := a.sessions.Login(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed in as "+keyword(sess.Email))
				return nil
			})
		},
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Sign out",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(_ context.Context, a *app) error {
				if err := a.sessions.Logout(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
				return nil
			})
		},
	}

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(_ context.Context, a *app) error {
				sess := a.currentSession()
				if sess == nil {
					fmt.Fprintln(cmd.OutOrStdout(), faint("Not signed in."))
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), sess.Email+" "+faint(sess.UserID))
				return nil
			})
		},
	}
)
