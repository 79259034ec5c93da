// ABOUTME: serve and health subcommands
// ABOUTME: Runs the HTTP API until interrupted and probes a running server

package main

import (
	"fmt"
	"net/http"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/commons/internal/api"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cyan := color.New(color.FgCyan)
			cyan.Print(banner)
			gray := color.New(color.FgHiBlack)
			gray.Printf("    version: %s\n\n", version)

			a, err := openApp(ctx, flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			green := color.New(color.FgGreen)
			green.Print("    ▶ ")
			fmt.Printf("Config:    %s\n", flags.configPath)
			green.Print("    ▶ ")
			fmt.Printf("HTTP:      %s\n", a.cfg.Server.HTTPAddr)
			green.Print("    ▶ ")
			fmt.Printf("Database:  %s", a.cfg.Database.Driver)
			if a.cfg.Database.Path != "" {
				gray.Printf(" (%s)", a.cfg.Database.Path)
			}
			fmt.Println()
			green.Print("    ▶ ")
			fmt.Printf("Admin:     %s\n\n", a.admin.Username)

			a.logger.Info("starting commons",
				"config", flags.configPath,
				"http_addr", a.cfg.Server.HTTPAddr,
				"driver", a.cfg.Database.Driver,
			)

			srv := api.New(api.Config{
				Addr:         a.cfg.Server.HTTPAddr,
				CookieName:   a.cfg.Auth.CookieName,
				CookieSecure: a.cfg.Auth.CookieSecure,
				SessionTTL:   a.cfg.Auth.SessionTTL,
			}, a.store, a.identity, a.content, a.tokens)
			return srv.Run(ctx)
		},
	}
}

func newHealthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that a running server and its store answer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfigOnly(flags)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
			if err != nil {
				return fmt.Errorf("creating request: %w", err)
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "healthy")
			return nil
		},
	}
}
