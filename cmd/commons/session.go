// ABOUTME: login, logout and whoami subcommands
// ABOUTME: Keeps the CLI identity in a session marker next to the config file

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newLoginCmd(flags *globalFlags) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login USERNAME",
		Short: "Start a CLI session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = prompt(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "Password", "")
			}
			return withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
				acc, err := a.tracker.Login(ctx, args[0], password)
				if err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(out, "  ✓ Logged in as %s (%s)\n", acc.Username, acc.Role)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when empty)")
	return cmd
}

func newLogoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the CLI session",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			if err := a.tracker.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(out, "  Logged out")
			return nil
		}),
	}
}

func newWhoamiCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account of the CLI session",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			acc, err := a.tracker.Restore(ctx)
			if err != nil {
				return err
			}
			if acc == nil {
				color.New(color.FgHiBlack).Fprintln(out, "  anonymous (run commons login)")
				return nil
			}

			cyan := color.New(color.FgCyan)
			cyan.Fprintln(out, "  Session")
			cyan.Fprintln(out, "  -------")
			fmt.Fprintf(out, "  Username: %s\n", acc.Username)
			fmt.Fprintf(out, "  Name:     %s\n", acc.DisplayName())
			fmt.Fprintf(out, "  Role:     %s\n", acc.Role)
			if acc.Email != "" {
				fmt.Fprintf(out, "  Email:    %s\n", acc.Email)
			}
			return nil
		}),
	}
}
