// ABOUTME: user subcommands for account administration from the terminal
// ABOUTME: Runs as --as, the logged-in session, or the super-admin

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/commons/internal/identity"
	"github.com/2389/commons/internal/store"
)

func newUserCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
		Long: `Manage accounts.

Subcommands:
  list            - List accounts
  create          - Register an account
  role            - Change an account's role
  ban, unban      - Set or clear the banned flag
  delete          - Delete an account
  reset-password  - Replace an account's password`,
	}

	cmd.AddCommand(
		newUserListCmd(flags),
		newUserCreateCmd(flags),
		newUserRoleCmd(flags),
		newUserBanCmd(flags, true),
		newUserBanCmd(flags, false),
		newUserDeleteCmd(flags),
		newUserResetPasswordCmd(flags),
	)
	return cmd
}

func newUserListCmd(flags *globalFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		Args:  cobra.NoArgs,
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			actor, err := a.actor(ctx, flags.as)
			if err != nil {
				return err
			}
			accounts, err := a.identity.List(ctx, actor, limit)
			if err != nil {
				return err
			}
			printAccounts(out, accounts)
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "Maximum number of accounts")
	return cmd
}

func printAccounts(out io.Writer, accounts []*store.Account) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USERNAME\tNAME\tROLE\tSTATUS\tCREATED")
	for _, acc := range accounts {
		status := "active"
		switch {
		case acc.Banned:
			status = "banned"
		case acc.Protected:
			status = "protected"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			acc.Username, acc.DisplayName(), acc.Role, status, acc.CreatedAt.Format("2006-01-02"))
	}
	_ = w.Flush()
}

func newUserCreateCmd(flags *globalFlags) *cobra.Command {
	var (
		reg  identity.Registration
		role string
	)
	cmd := &cobra.Command{
		Use:   "create USERNAME",
		Short: "Register an account",
		Long: `Register an account. The password is read from --password or prompted for.
With --role admin the new account is promoted, which requires an admin actor.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg.Username = args[0]
			if reg.Password == "" {
				reg.Password = prompt(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "Password", "")
			}
			return withApp(flags, func(ctx context.Context, a *app, out io.Writer, _ []string) error {
				acc, err := a.identity.Register(ctx, reg)
				if err != nil {
					return err
				}
				if role != "" && store.Role(role) != acc.Role {
					actor, err := a.actor(ctx, flags.as)
					if err != nil {
						return err
					}
					if err := a.identity.ChangeRole(ctx, actor, acc.Username, store.Role(role)); err != nil {
						return fmt.Errorf("account created but role not set: %w", err)
					}
					acc.Role = store.Role(role)
				}
				color.New(color.FgGreen).Fprintf(out, "  ✓ Created %s (%s)\n", acc.Username, acc.Role)
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&reg.Password, "password", "", "Password (prompted when empty)")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", "", "Role to grant after registration (client or admin)")
	return cmd
}

func newUserRoleCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "role USERNAME ROLE",
		Short: "Change an account's role (client or admin)",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			actor, err := a.actor(ctx, flags.as)
			if err != nil {
				return err
			}
			if err := a.identity.ChangeRole(ctx, actor, args[0], store.Role(args[1])); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "  ✓ %s is now %s\n", args[0], args[1])
			return nil
		}),
	}
}

func newUserBanCmd(flags *globalFlags, banned bool) *cobra.Command {
	use, short, done := "ban USERNAME", "Ban an account", "banned"
	if !banned {
		use, short, done = "unban USERNAME", "Lift a ban", "unbanned"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			actor, err := a.actor(ctx, flags.as)
			if err != nil {
				return err
			}
			if err := a.identity.SetBanned(ctx, actor, args[0], banned); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "  ✓ %s %s\n", args[0], done)
			return nil
		}),
	}
}

func newUserDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete USERNAME",
		Short: "Delete an account; authored content is kept without an author",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
			actor, err := a.actor(ctx, flags.as)
			if err != nil {
				return err
			}
			if err := a.identity.Delete(ctx, actor, args[0]); err != nil {
				return err
			}
			color.New(color.FgGreen).Fprintf(out, "  ✓ Deleted %s\n", args[0])
			return nil
		}),
	}
}

func newUserResetPasswordCmd(flags *globalFlags) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "reset-password USERNAME",
		Short: "Replace an account's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = prompt(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "New password", "")
			}
			return withApp(flags, func(ctx context.Context, a *app, out io.Writer, args []string) error {
				actor, err := a.actor(ctx, flags.as)
				if err != nil {
					return err
				}
				if err := a.identity.ResetCredential(ctx, actor, args[0], password); err != nil {
					return err
				}
				color.New(color.FgGreen).Fprintf(out, "  ✓ Password reset for %s\n", args[0])
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "New password (prompted when empty)")
	return cmd
}
