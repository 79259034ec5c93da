// ABOUTME: End-to-end tests for the commons CLI against a SQLite file
// ABOUTME: Drives init, user administration, sessions and news through cobra

package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/commons/internal/config"
	"github.com/2389/commons/internal/store"
)

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func setupCLI(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	configPath := filepath.Join(dir, "config", "commons.yaml")

	_, err := runCLI(t, configPath, "init", "--yes")
	require.NoError(t, err)
	return configPath
}

func TestInit_WritesConfig(t *testing.T) {
	configPath := setupCLI(t)

	info, err := os.Stat(configPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := config.Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.GreaterOrEqual(t, len(cfg.Auth.JWTSecret), config.MinJWTSecretLength)

	// A second init keeps the config and the single super-admin.
	before, err := os.ReadFile(configPath)
	require.NoError(t, err)
	_, err = runCLI(t, configPath, "init", "--yes")
	require.NoError(t, err)
	after, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	require.NoError(t, err)
	defer s.Close()
	count, err := s.CountAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUserCommands(t *testing.T) {
	configPath := setupCLI(t)

	out, err := runCLI(t, configPath, "user", "create", "alice", "--password", "alice-secret", "--first-name", "Alice")
	require.NoError(t, err)
	assert.Contains(t, out, "Created alice")

	_, err = runCLI(t, configPath, "user", "create", "alice", "--password", "alice-secret")
	assert.ErrorIs(t, err, store.ErrDuplicateUsername)

	out, err = runCLI(t, configPath, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, "SUPERADMIN")

	// A client cannot administer accounts.
	_, err = runCLI(t, configPath, "--as", "alice", "user", "ban", "SUPERADMIN")
	assert.Error(t, err)

	_, err = runCLI(t, configPath, "user", "delete", "SUPERADMIN")
	assert.ErrorIs(t, err, store.ErrProtectedAccount)

	out, err = runCLI(t, configPath, "user", "role", "alice", "admin")
	require.NoError(t, err)
	assert.Contains(t, out, "alice is now admin")

	_, err = runCLI(t, configPath, "user", "ban", "alice")
	require.NoError(t, err)
	out, err = runCLI(t, configPath, "user", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "banned")

	_, err = runCLI(t, configPath, "user", "unban", "alice")
	require.NoError(t, err)

	_, err = runCLI(t, configPath, "user", "reset-password", "alice", "--password", "fresh-secret")
	require.NoError(t, err)

	_, err = runCLI(t, configPath, "user", "delete", "alice")
	require.NoError(t, err)
	out, err = runCLI(t, configPath, "user", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "alice")
}

func TestSessionCommands(t *testing.T) {
	configPath := setupCLI(t)

	_, err := runCLI(t, configPath, "user", "create", "bob", "--password", "bob-secret")
	require.NoError(t, err)

	out, err := runCLI(t, configPath, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "anonymous")

	_, err = runCLI(t, configPath, "login", "bob", "--password", "wrong")
	assert.Error(t, err)

	out, err = runCLI(t, configPath, "login", "bob", "--password", "bob-secret")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as bob")

	out, err = runCLI(t, configPath, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "bob")

	// The session acts as bob, who cannot post news.
	_, err = runCLI(t, configPath, "news", "post", "--title", "Nope")
	assert.Error(t, err)

	// A ban observed on the next load ends the session.
	_, err = runCLI(t, configPath, "--as", "SUPERADMIN", "user", "ban", "bob")
	require.NoError(t, err)
	out, err = runCLI(t, configPath, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "anonymous")

	_, err = runCLI(t, configPath, "logout")
	require.NoError(t, err)
}

func TestNewsCommands(t *testing.T) {
	configPath := setupCLI(t)

	out, err := runCLI(t, configPath, "news", "post", "--title", "Hello world", "--description", "*first* post")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello world")

	out, err = runCLI(t, configPath, "news", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Hello world")

	_, err = runCLI(t, configPath, "news", "post")
	assert.Error(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	id := strings.Fields(lines[1])[0]

	out, err = runCLI(t, configPath, "news", "like", id)
	require.NoError(t, err)
	assert.Contains(t, out, "liked (1 likes)")

	out, err = runCLI(t, configPath, "news", "like", id)
	require.NoError(t, err)
	assert.Contains(t, out, "unliked (0 likes)")
}

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "key", "value")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"key":"value"`)

	buf.Reset()
	logger = setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)
	logger.With("component", "test").Debug("details", "n", 1)
	assert.Contains(t, buf.String(), "DBG")
	assert.Contains(t, buf.String(), "component=test")
	assert.Contains(t, buf.String(), "n=1")
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))
}
