// ABOUTME: Root cobra command and the shared application wiring for subcommands
// ABOUTME: Loads config, opens the store, seeds the super-admin and builds the services

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/commons/internal/auth"
	"github.com/2389/commons/internal/config"
	"github.com/2389/commons/internal/content"
	"github.com/2389/commons/internal/identity"
	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/session"
	"github.com/2389/commons/internal/store"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	as         string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "commons",
		Short: "commons - community accounts, news feed and moderation",
		Long: `commons serves a small community site: member accounts with client and
admin roles, a news feed with comments, replies and likes, and an audit log
of administrative actions.

Configuration is read from $COMMONS_CONFIG, or commons.yaml in the commons
config directory. Run "commons init" to create one.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", config.Path(), "Path to the config file")
	root.PersistentFlags().StringVar(&flags.as, "as", "", "Act as this username instead of the session or super-admin")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log at the configured level instead of warnings only")

	root.AddCommand(
		newServeCmd(flags),
		newInitCmd(flags),
		newUserCmd(flags),
		newNewsCmd(flags),
		newLoginCmd(flags),
		newLogoutCmd(flags),
		newWhoamiCmd(flags),
		newHealthCmd(flags),
	)
	return root
}

// app holds the services a subcommand works with.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    store.Store
	identity *identity.Service
	content  *content.Service
	tokens   *auth.JWTVerifier
	tracker  *session.Tracker
	admin    *store.Account
}

// openApp loads the config, opens the store and seeds the super-admin.
// quiet raises the log level to warn so CLI output stays readable.
func openApp(ctx context.Context, flags *globalFlags, quiet bool) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logCfg := cfg.Logging
	if quiet && !flags.verbose {
		logCfg.Level = "warn"
	}
	logger := setupLogger(logCfg, os.Stderr)
	slog.SetDefault(logger)

	if dir := filepath.Dir(cfg.Database.Path); cfg.Database.Path != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	s, err := store.Open(cfg.Database.Driver, cfg.Database.Path, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	ids := identity.NewService(s, cfg.Auth.BcryptCost)
	res, err := ids.Bootstrap(ctx, cfg.Bootstrap.Username, cfg.Bootstrap.Password)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("seeding super-admin: %w", err)
	}
	if res.Password != "" {
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(os.Stderr, "  ! Generated password for %s: %s\n", res.Account.Username, res.Password)
		yellow.Fprintln(os.Stderr, "    Store it now; it is not shown again.")
	}

	tokens := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	marker := session.NewFileMarker(filepath.Join(filepath.Dir(flags.configPath), "session"))

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		identity: ids,
		content:  content.NewService(s),
		tokens:   tokens,
		tracker:  session.NewTracker(ids, tokens, marker, cfg.Auth.SessionTTL),
		admin:    res.Account,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// actor picks who a command runs as: --as, then the logged-in session,
// then the super-admin.
func (a *app) actor(ctx context.Context, as string) (*policy.Actor, error) {
	if as != "" {
		acc, err := a.store.GetAccountByUsername(ctx, as)
		if err != nil {
			return nil, fmt.Errorf("resolving --as %s: %w", as, err)
		}
		if acc.Banned {
			return nil, fmt.Errorf("resolving --as %s: %w", as, identity.ErrAccountBanned)
		}
		return policy.ActorFor(acc), nil
	}

	acc, err := a.tracker.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	if acc != nil {
		return policy.ActorFor(acc), nil
	}
	return policy.ActorFor(a.admin), nil
}

// withApp wraps a RunE body with openApp and Close.
func withApp(flags *globalFlags, fn func(ctx context.Context, a *app, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx, flags, true)
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(ctx, a, cmd.OutOrStdout(), args)
	}
}
