// ABOUTME: Tests for the identity service against the memory and SQLite stores
// ABOUTME: Covers registration, authentication, admin actions, protection and bootstrap

package identity

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

func newTestService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	return NewService(s, bcrypt.MinCost), s
}

func newSQLiteService(t *testing.T) (*Service, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return NewService(s, bcrypt.MinCost), s
}

func register(t *testing.T, svc *Service, username string) *store.Account {
	t.Helper()
	a, err := svc.Register(context.Background(), Registration{
		FirstName: "Test",
		LastName:  username,
		Email:     username + "@example.com",
		Username:  username,
		Password:  "secret-" + username,
	})
	require.NoError(t, err)
	return a
}

func bootstrapAdmin(t *testing.T, svc *Service) *policy.Actor {
	t.Helper()
	res, err := svc.Bootstrap(context.Background(), "SUPERADMIN", "root-secret")
	require.NoError(t, err)
	return policy.ActorFor(res.Account)
}

func TestRegister(t *testing.T) {
	svc, _ := newTestService(t)

	a := register(t, svc, "alice")
	assert.Equal(t, store.RoleClient, a.Role)
	assert.False(t, a.Banned)
	assert.False(t, a.Protected)
	assert.NotEqual(t, "secret-alice", a.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte("secret-alice")))
}

func TestRegister_Duplicates(t *testing.T) {
	for name, newSvc := range map[string]func(*testing.T) (*Service, store.Store){
		"memory": newTestService,
		"sqlite": newSQLiteService,
	} {
		t.Run(name, func(t *testing.T) {
			svc, _ := newSvc(t)
			register(t, svc, "alice")

			_, err := svc.Register(context.Background(), Registration{Username: "alice", Password: "another1"})
			assert.ErrorIs(t, err, store.ErrDuplicateUsername)

			_, err = svc.Register(context.Background(), Registration{Username: "alicia", Email: "alice@example.com", Password: "another1"})
			assert.ErrorIs(t, err, store.ErrDuplicateEmail)
		})
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		reg  Registration
		want error
	}{
		{"short username", Registration{Username: "ab", Password: "secret1"}, ErrInvalidUsername},
		{"username starts with digit", Registration{Username: "1alice", Password: "secret1"}, ErrInvalidUsername},
		{"username with space", Registration{Username: "ali ce", Password: "secret1"}, ErrInvalidUsername},
		{"short password", Registration{Username: "alice", Password: "12345"}, ErrInvalidPassword},
		{"bad email", Registration{Username: "alice", Password: "secret1", Email: "not-an-email"}, ErrInvalidEmail},
		{"display-name email", Registration{Username: "alice", Password: "secret1", Email: "Alice <a@example.com>"}, ErrInvalidEmail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.reg)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	register(t, svc, "alice")

	a, err := svc.Authenticate(ctx, "alice", "secret-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", a.Username)

	_, err = svc.Authenticate(ctx, "alice", "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = svc.Authenticate(ctx, "nobody", "whatever")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAuthenticate_Banned(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	register(t, svc, "alice")

	require.NoError(t, svc.SetBanned(ctx, admin, "alice", true))

	_, err := svc.Authenticate(ctx, "alice", "secret-alice")
	assert.ErrorIs(t, err, ErrAccountBanned)

	// Wrong secret does not reveal the ban
	_, err = svc.Authenticate(ctx, "alice", "wrong-secret")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	require.NoError(t, svc.SetBanned(ctx, admin, "alice", false))
	_, err = svc.Authenticate(ctx, "alice", "secret-alice")
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	alice := register(t, svc, "alice")

	_, err := svc.Validate(ctx, alice.ID)
	require.NoError(t, err)

	require.NoError(t, svc.SetBanned(ctx, admin, "alice", true))
	_, err = svc.Validate(ctx, alice.ID)
	assert.ErrorIs(t, err, ErrAccountBanned)

	require.NoError(t, svc.SetBanned(ctx, admin, "alice", false))
	require.NoError(t, svc.Delete(ctx, admin, "alice"))
	_, err = svc.Validate(ctx, alice.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChangeRole(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	alice := register(t, svc, "alice")
	register(t, svc, "bob")

	err := svc.ChangeRole(ctx, policy.ActorFor(alice), "bob", store.RoleAdmin)
	assert.ErrorIs(t, err, policy.ErrForbidden)

	err = svc.ChangeRole(ctx, nil, "bob", store.RoleAdmin)
	assert.ErrorIs(t, err, policy.ErrForbidden)

	require.NoError(t, svc.ChangeRole(ctx, admin, "bob", store.RoleAdmin))
	bob, err := s.GetAccountByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, store.RoleAdmin, bob.Role)

	assert.ErrorIs(t, svc.ChangeRole(ctx, admin, "bob", store.Role("owner")), ErrInvalidRole)
	assert.ErrorIs(t, svc.ChangeRole(ctx, admin, "nobody", store.RoleAdmin), store.ErrNotFound)

	action := store.AuditChangeRole
	entries, err := s.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, admin.ID, entries[0].ActorID)
	assert.Equal(t, "bob", entries[0].TargetID)
}

func TestDelete(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	alice := register(t, svc, "alice")
	register(t, svc, "bob")

	t.Run("non-admin is forbidden", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(ctx, policy.ActorFor(alice), "bob"), policy.ErrForbidden)
		assert.ErrorIs(t, svc.Delete(ctx, policy.ActorFor(alice), "alice"), policy.ErrForbidden)
		assert.ErrorIs(t, svc.Delete(ctx, nil, "bob"), policy.ErrForbidden)
	})

	t.Run("protected account survives any admin", func(t *testing.T) {
		require.NoError(t, svc.ChangeRole(ctx, admin, "bob", store.RoleAdmin))
		bob, err := s.GetAccountByUsername(ctx, "bob")
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Delete(ctx, policy.ActorFor(bob), "SUPERADMIN"), store.ErrProtectedAccount)
		assert.ErrorIs(t, svc.Delete(ctx, admin, "SUPERADMIN"), store.ErrProtectedAccount)
	})

	t.Run("admin deletes client", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, admin, "alice"))
		_, err := s.GetAccountByUsername(ctx, "alice")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, svc.Delete(ctx, admin, "alice"), store.ErrNotFound)
	})
}

func TestSetBanned(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	alice := register(t, svc, "alice")

	assert.ErrorIs(t, svc.SetBanned(ctx, policy.ActorFor(alice), "alice", true), policy.ErrForbidden)
	assert.ErrorIs(t, svc.SetBanned(ctx, admin, "SUPERADMIN", true), store.ErrProtectedAccount)

	require.NoError(t, svc.SetBanned(ctx, admin, "alice", true))
	action := store.AuditBanAccount
	entries, err := s.ListAuditLog(ctx, store.AuditFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestResetCredential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	alice := register(t, svc, "alice")

	assert.ErrorIs(t, svc.ResetCredential(ctx, policy.ActorFor(alice), "alice", "new-secret"), policy.ErrForbidden)
	assert.ErrorIs(t, svc.ResetCredential(ctx, admin, "alice", "short"), ErrInvalidPassword)

	require.NoError(t, svc.ResetCredential(ctx, admin, "alice", "new-secret"))
	_, err := svc.Authenticate(ctx, "alice", "new-secret")
	assert.NoError(t, err)

	// No protected exemption
	require.NoError(t, svc.ResetCredential(ctx, admin, "SUPERADMIN", "rotated-secret"))
	_, err = svc.Authenticate(ctx, "SUPERADMIN", "rotated-secret")
	assert.NoError(t, err)
}

func TestChangeOwnCredential(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	alice := register(t, svc, "alice")
	actor := policy.ActorFor(alice)

	assert.ErrorIs(t, svc.ChangeOwnCredential(ctx, actor, "wrong", "new-secret"), ErrInvalidCredential)
	assert.ErrorIs(t, svc.ChangeOwnCredential(ctx, actor, "secret-alice", "tiny"), ErrInvalidPassword)
	assert.ErrorIs(t, svc.ChangeOwnCredential(ctx, nil, "secret-alice", "new-secret"), policy.ErrForbidden)

	require.NoError(t, svc.ChangeOwnCredential(ctx, actor, "secret-alice", "new-secret"))
	_, err := svc.Authenticate(ctx, "alice", "new-secret")
	assert.NoError(t, err)
}

func TestGetAndList_Visibility(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	alice := register(t, svc, "alice")
	register(t, svc, "bob")
	require.NoError(t, svc.SetBanned(ctx, admin, "bob", true))

	_, err := svc.Get(ctx, nil, "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = svc.Get(ctx, policy.ActorFor(alice), "bob")
	assert.ErrorIs(t, err, store.ErrNotFound)

	bob, err := svc.Get(ctx, admin, "bob")
	require.NoError(t, err)
	assert.True(t, bob.Banned)

	public, err := svc.List(ctx, nil, 0)
	require.NoError(t, err)
	assert.Len(t, public, 2) // SUPERADMIN and alice

	all, err := svc.List(ctx, admin, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestUpdateProfile(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	admin := bootstrapAdmin(t, svc)
	alice := register(t, svc, "alice")
	bob := register(t, svc, "bob")

	first := "Alice"
	a, err := svc.UpdateProfile(ctx, policy.ActorFor(alice), "alice", ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Alice", a.FirstName)
	assert.Equal(t, store.RoleClient, a.Role)

	_, err = svc.UpdateProfile(ctx, policy.ActorFor(bob), "alice", ProfileUpdate{FirstName: &first})
	assert.ErrorIs(t, err, policy.ErrForbidden)

	photo := "avatars/a.png"
	_, err = svc.UpdateProfile(ctx, admin, "alice", ProfileUpdate{Photo: &photo})
	require.NoError(t, err)

	bad := "nope"
	_, err = svc.UpdateProfile(ctx, policy.ActorFor(alice), "alice", ProfileUpdate{Email: &bad})
	assert.ErrorIs(t, err, ErrInvalidEmail)

	taken := "bob@example.com"
	_, err = svc.UpdateProfile(ctx, policy.ActorFor(alice), "alice", ProfileUpdate{Email: &taken})
	assert.ErrorIs(t, err, store.ErrDuplicateEmail)
}

func TestBootstrap_Idempotent(t *testing.T) {
	for name, newSvc := range map[string]func(*testing.T) (*Service, store.Store){
		"memory": newTestService,
		"sqlite": newSQLiteService,
	} {
		t.Run(name, func(t *testing.T) {
			svc, s := newSvc(t)
			ctx := context.Background()

			first, err := svc.Bootstrap(ctx, "SUPERADMIN", "")
			require.NoError(t, err)
			assert.True(t, first.Created)
			assert.NotEmpty(t, first.Password)
			assert.True(t, first.Account.Protected)
			assert.True(t, first.Account.IsAdmin())
			assert.False(t, first.Account.Banned)

			second, err := svc.Bootstrap(ctx, "SUPERADMIN", "")
			require.NoError(t, err)
			assert.False(t, second.Created)
			assert.Empty(t, second.Password)
			assert.Equal(t, first.Account.ID, second.Account.ID)

			count, err := s.CountAccounts(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			// The generated secret works
			_, err = svc.Authenticate(ctx, "SUPERADMIN", first.Password)
			assert.NoError(t, err)
		})
	}
}

func TestBootstrap_UsernameHeldByClient(t *testing.T) {
	for name, newSvc := range map[string]func(*testing.T) (*Service, store.Store){
		"memory": newTestService,
		"sqlite": newSQLiteService,
	} {
		t.Run(name, func(t *testing.T) {
			svc, s := newSvc(t)
			ctx := context.Background()
			register(t, svc, "root")

			res, err := svc.Bootstrap(ctx, "root", "root-secret")
			assert.ErrorIs(t, err, ErrBootstrapConflict)
			assert.Nil(t, res)

			got, err := s.GetAccountByUsername(ctx, "root")
			require.NoError(t, err)
			assert.False(t, got.Protected)
			assert.Equal(t, store.RoleClient, got.Role)
		})
	}
}

func TestBootstrap_RenamedUsernameKeepsOneSuperAdmin(t *testing.T) {
	for name, newSvc := range map[string]func(*testing.T) (*Service, store.Store){
		"memory": newTestService,
		"sqlite": newSQLiteService,
	} {
		t.Run(name, func(t *testing.T) {
			svc, s := newSvc(t)
			ctx := context.Background()

			first, err := svc.Bootstrap(ctx, "root", "root-secret")
			require.NoError(t, err)
			require.True(t, first.Created)

			second, err := svc.Bootstrap(ctx, "admin2", "other-secret")
			require.NoError(t, err)
			assert.False(t, second.Created)
			assert.Equal(t, first.Account.ID, second.Account.ID)
			assert.Equal(t, "root", second.Account.Username)

			_, err = s.GetAccountByUsername(ctx, "admin2")
			assert.ErrorIs(t, err, store.ErrNotFound)
			assert.Equal(t, 1, countProtected(t, s))
		})
	}
}

func TestBootstrap_ConcurrentStartsSeedOnce(t *testing.T) {
	for name, newSvc := range map[string]func(*testing.T) (*Service, store.Store){
		"memory": newTestService,
		"sqlite": newSQLiteService,
	} {
		t.Run(name, func(t *testing.T) {
			svc, s := newSvc(t)
			ctx := context.Background()

			const n = 8
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := svc.Bootstrap(ctx, fmt.Sprintf("root%d", i), "root-secret")
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)

			for err := range errs {
				assert.NoError(t, err)
			}
			assert.Equal(t, 1, countProtected(t, s))
		})
	}
}

func countProtected(t *testing.T, s store.Store) int {
	t.Helper()
	all, err := s.ListAccounts(context.Background(), store.AccountFilter{IncludeBanned: true})
	require.NoError(t, err)
	n := 0
	for _, a := range all {
		if a.Protected {
			n++
		}
	}
	return n
}

func TestBootstrap_RecordsAudit(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	bootstrapAdmin(t, svc)

	entries, err := s.ListAuditLog(ctx, store.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.AuditSeedAdmin, entries[0].Action)
	assert.Equal(t, SystemActor, entries[0].ActorID)
	assert.Equal(t, "SUPERADMIN", entries[0].TargetID)
}

// failingAuditStore rejects every audit append.
type failingAuditStore struct {
	store.Store
}

func (failingAuditStore) AppendAuditLog(ctx context.Context, e *store.AuditEntry) error {
	return errors.New("audit log is full")
}

func TestBootstrap_AuditFailureDoesNotFailSeed(t *testing.T) {
	s := store.NewMemoryStore()
	svc := NewService(failingAuditStore{Store: s}, bcrypt.MinCost)

	res, err := svc.Bootstrap(context.Background(), "SUPERADMIN", "root-secret")
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.True(t, res.Account.Protected)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	for name, newSvc := range map[string]func(*testing.T) (*Service, store.Store){
		"memory": newTestService,
		"sqlite": newSQLiteService,
	} {
		t.Run(name, func(t *testing.T) {
			svc, s := newSvc(t)
			ctx := context.Background()

			const n = 16
			var wg sync.WaitGroup
			errs := make(chan error, n)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					_, err := svc.Register(ctx, Registration{
						Username: "carol",
						Email:    fmt.Sprintf("carol%d@example.com", i),
						Password: "carol-secret",
					})
					errs <- err
				}(i)
			}
			wg.Wait()
			close(errs)

			ok, dup := 0, 0
			for err := range errs {
				switch {
				case err == nil:
					ok++
				case errors.Is(err, store.ErrDuplicateUsername):
					dup++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}
			assert.Equal(t, 1, ok)
			assert.Equal(t, n-1, dup)

			count, err := s.CountAccounts(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}
