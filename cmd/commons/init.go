// ABOUTME: init subcommand creating the config file, schema and super-admin
// ABOUTME: Safe to rerun; an existing config is reused and the seed is idempotent

package main

import (
	"bufio"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/commons/internal/config"
)

// initAnswers are the values written into a new config file.
type initAnswers struct {
	httpAddr  string
	driver    string
	dbPath    string
	dsn       string
	adminUser string
	logLevel  string
	logFormat string
}

func defaultAnswers() initAnswers {
	return initAnswers{
		httpAddr:  config.DefaultHTTPAddr,
		driver:    config.DefaultDriver,
		dbPath:    filepath.Join(config.DataPath(), "commons.db"),
		adminUser: config.DefaultBootstrapUsername,
		logLevel:  "info",
		logFormat: "text",
	}
}

func newInitCmd(flags *globalFlags) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the config file, database schema and super-admin",
		Long: `Create a config file with a random JWT secret if none exists, then open
the database (creating the schema) and seed the protected super-admin.

Running init again keeps the existing config and leaves the super-admin
untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			green := color.New(color.FgGreen)
			cyan := color.New(color.FgCyan)
			yellow := color.New(color.FgYellow)

			if _, err := os.Stat(flags.configPath); os.IsNotExist(err) {
				answers := defaultAnswers()
				if !yes {
					answers = askInitAnswers(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), answers)
				}
				if err := writeConfig(flags.configPath, answers); err != nil {
					return err
				}
				green.Printf("  ✓ Created config: %s\n", flags.configPath)
			} else {
				cyan.Printf("  Using existing config: %s\n", flags.configPath)
			}

			a, err := openApp(cmd.Context(), flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			green.Printf("  ✓ Database: %s\n", a.cfg.Database.Driver)
			green.Printf("  ✓ Super-admin: %s\n", a.admin.Username)

			fmt.Println()
			yellow.Println("  Ready to go:")
			fmt.Println("    commons serve                   # start the server")
			fmt.Printf("    commons login %-17s # start a CLI session\n", a.admin.Username)
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Accept defaults without prompting")
	return cmd
}

func askInitAnswers(reader *bufio.Reader, out io.Writer, d initAnswers) initAnswers {
	fmt.Fprintln(out, "commons configuration setup")
	fmt.Fprintln(out, "===========================")

	fmt.Fprintln(out, "\n--- Server Configuration ---")
	d.httpAddr = prompt(reader, out, "HTTP address", d.httpAddr)

	fmt.Fprintln(out, "\n--- Database Configuration ---")
	d.driver = prompt(reader, out, "Driver (sqlite/sqlite3/postgres/memory)", d.driver)
	switch d.driver {
	case "postgres":
		d.dsn = prompt(reader, out, "Postgres DSN", "postgres://commons@localhost:5432/commons?sslmode=disable")
		d.dbPath = ""
	case "memory":
		d.dbPath = ""
	default:
		d.dbPath = prompt(reader, out, "SQLite database path", d.dbPath)
	}

	fmt.Fprintln(out, "\n--- Super-admin ---")
	d.adminUser = prompt(reader, out, "Username", d.adminUser)

	fmt.Fprintln(out, "\n--- Logging Configuration ---")
	d.logLevel = prompt(reader, out, "Log level (debug/info/warn/error)", d.logLevel)
	d.logFormat = prompt(reader, out, "Log format (text/json)", d.logFormat)
	fmt.Fprintln(out)
	return d
}

// writeConfig renders answers into a YAML config with a fresh JWT secret.
// The file holds the secret, so it is written 0600.
func writeConfig(path string, a initAnswers) error {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	var cfg strings.Builder
	cfg.WriteString("# commons configuration\n")
	cfg.WriteString("# Generated by commons init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: %q\n\n", a.httpAddr))

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  driver: %q\n", a.driver))
	if a.dbPath != "" {
		cfg.WriteString(fmt.Sprintf("  path: %q\n", a.dbPath))
	}
	if a.dsn != "" {
		cfg.WriteString(fmt.Sprintf("  dsn: %q\n", a.dsn))
	}
	cfg.WriteString("\n")

	cfg.WriteString("auth:\n")
	cfg.WriteString(fmt.Sprintf("  jwt_secret: %q\n", jwtSecret))
	cfg.WriteString("  session_ttl: \"24h\"\n\n")

	cfg.WriteString("bootstrap:\n")
	cfg.WriteString(fmt.Sprintf("  username: %q\n", a.adminUser))
	cfg.WriteString("  # password: \"${COMMONS_ADMIN_PASSWORD}\"  # generated on first start when empty\n\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: %q\n", a.logLevel))
	cfg.WriteString(fmt.Sprintf("  format: %q\n", a.logFormat))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(cfg.String()), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// loadConfigOnly reads the config without touching the database.
func loadConfigOnly(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func prompt(reader *bufio.Reader, out io.Writer, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Fprintf(out, "%s [%s]: ", question, defaultVal)
	} else {
		fmt.Fprintf(out, "%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Fprintln(out)
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
