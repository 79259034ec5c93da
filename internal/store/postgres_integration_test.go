//go:build integration

// ABOUTME: Runs the shared store behaviour against a real Postgres in a container
// ABOUTME: Requires Docker; enable with go test -tags integration ./internal/store/...

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgresStore(t *testing.T) *SQLStore {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("commons"),
		postgres.WithUsername("commons"),
		postgres.WithPassword("commons"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := NewPostgresStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStore_Integration(t *testing.T) {
	s := setupPostgresStore(t)
	ctx := context.Background()
	assert.Equal(t, DialectPostgres, s.Dialect())

	alice := createTestAccount(t, s, "alice")

	t.Run("duplicate username", func(t *testing.T) {
		dup := newTestAccount("alice")
		dup.Email = "second@example.com"
		assert.ErrorIs(t, s.CreateAccount(ctx, dup), ErrDuplicateUsername)
	})

	t.Run("duplicate email", func(t *testing.T) {
		dup := newTestAccount("alicia")
		dup.Email = alice.Email
		assert.ErrorIs(t, s.CreateAccount(ctx, dup), ErrDuplicateEmail)
	})

	t.Run("seed is idempotent", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			seed := newTestAccount("SUPERADMIN")
			seed.Email = ""
			seed.Role = RoleAdmin
			seed.Protected = true
			_, _, err := s.SeedAccount(ctx, seed)
			require.NoError(t, err)
		}
		admin := RoleAdmin
		admins, err := s.ListAccounts(ctx, AccountFilter{Role: &admin})
		require.NoError(t, err)
		assert.Len(t, admins, 1)
		assert.ErrorIs(t, s.DeleteAccount(ctx, "SUPERADMIN"), ErrProtectedAccount)
	})

	t.Run("likes and cascades", func(t *testing.T) {
		news := createTestNews(t, s, alice, "Hello")
		comment := createTestComment(t, s, news.ID, alice, "first")
		require.NoError(t, s.AddLike(ctx, &Like{Kind: LikeComment, TargetID: comment.ID, UserID: alice.ID}))
		assert.ErrorIs(t, s.AddLike(ctx, &Like{Kind: LikeComment, TargetID: comment.ID, UserID: alice.ID}), ErrAlreadyLiked)

		missing := &Comment{ID: uuid.New().String(), NewsID: uuid.New().String(), Username: "alice", Text: "x"}
		assert.ErrorIs(t, s.CreateComment(ctx, missing), ErrNotFound)

		require.NoError(t, s.DeleteNews(ctx, news.ID))
		_, err := s.GetComment(ctx, comment.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("audit filters", func(t *testing.T) {
		action := AuditBanAccount
		require.NoError(t, s.AppendAuditLog(ctx, &AuditEntry{ActorID: alice.ID, Action: action, TargetType: "account", TargetID: "x"}))
		entries, err := s.ListAuditLog(ctx, AuditFilter{Action: &action, ActorID: &alice.ID})
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})
}
