// ABOUTME: Identity service owning registration, authentication and account administration
// ABOUTME: Hashes secrets with bcrypt and checks every admin action against the account policy

package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/2389/commons/internal/policy"
	"github.com/2389/commons/internal/store"
)

// dummyHash is compared against when the username does not exist so that
// unknown and known usernames take the same time to reject.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// SystemActor is recorded as the audit actor for bootstrap writes.
const SystemActor = "system"

// Store defines the persistence operations the identity service needs.
type Store interface {
	store.AccountStore
	AppendAuditLog(ctx context.Context, e *store.AuditEntry) error
}

// Service implements the identity operations.
type Service struct {
	store      Store
	bcryptCost int
	logger     *slog.Logger
}

// NewService creates a Service. A bcryptCost of zero selects bcrypt.DefaultCost.
func NewService(s Store, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		store:      s,
		bcryptCost: bcryptCost,
		logger:     slog.Default().With("component", "identity"),
	}
}

// Registration is the profile submitted when creating an account.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Username  string
	Password  string
	DOB       *time.Time
	Photo     string
}

// ProfileUpdate carries the profile fields to change. Nil fields are kept.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Email     *string
	DOB       *time.Time
	Photo     *string
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(h), nil
}

// Register creates a client account. Fails with store.ErrDuplicateUsername or
// store.ErrDuplicateEmail when the identifier is taken.
func (s *Service) Register(ctx context.Context, reg Registration) (*store.Account, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if err := ValidateUsername(reg.Username); err != nil {
		return nil, err
	}
	if err := ValidatePassword(reg.Password); err != nil {
		return nil, err
	}
	if err := ValidateEmail(reg.Email); err != nil {
		return nil, err
	}

	hash, err := s.hash(reg.Password)
	if err != nil {
		return nil, err
	}

	a := &store.Account{
		ID:           uuid.New().String(),
		FirstName:    strings.TrimSpace(reg.FirstName),
		LastName:     strings.TrimSpace(reg.LastName),
		Email:        reg.Email,
		Username:     reg.Username,
		PasswordHash: hash,
		Role:         store.RoleClient,
		DOB:          reg.DOB,
		Photo:        reg.Photo,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateAccount(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("registered account", "username", a.Username)
	return a, nil
}

// Authenticate checks a username and secret. The secret is verified before
// the banned flag so a wrong secret never reveals that an account is banned.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*store.Account, error) {
	a, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Do a dummy bcrypt comparison to maintain constant timing
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)); err != nil {
		s.logger.Debug("authentication failed", "username", username)
		return nil, ErrInvalidCredential
	}

	if a.Banned {
		s.logger.Warn("banned account attempted login", "username", username)
		return nil, ErrAccountBanned
	}
	return a, nil
}

// Validate re-checks that the account behind a session still exists and is
// not banned.
func (s *Service) Validate(ctx context.Context, accountID string) (*store.Account, error) {
	a, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if a.Banned {
		return nil, ErrAccountBanned
	}
	return a, nil
}

// Get returns the named account if the actor may read it. Accounts the
// actor cannot see are reported as store.ErrNotFound.
func (s *Service) Get(ctx context.Context, actor *policy.Actor, username string) (*store.Account, error) {
	a, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if !policy.Authorize(actor, policy.ResourceAccount, policy.OpRead, policy.AccountRow(a)) {
		return nil, store.ErrNotFound
	}
	return a, nil
}

// List returns the accounts visible to the actor. Admins also see banned accounts.
func (s *Service) List(ctx context.Context, actor *policy.Actor, limit int) ([]*store.Account, error) {
	return s.store.ListAccounts(ctx, store.AccountFilter{
		IncludeBanned: actor.IsAdmin(),
		Limit:         limit,
	})
}

// UpdateProfile changes profile fields of the named account. Allowed for the
// account itself and for admins.
func (s *Service) UpdateProfile(ctx context.Context, actor *policy.Actor, username string, u ProfileUpdate) (*store.Account, error) {
	a, err := s.Get(ctx, actor, username)
	if err != nil {
		return nil, err
	}
	if err := policy.Check(actor, policy.ResourceAccount, policy.OpUpdate, policy.AccountRow(a)); err != nil {
		s.logger.Warn("denied profile update", "actor", actorName(actor), "target", username)
		return nil, err
	}

	if u.FirstName != nil {
		a.FirstName = strings.TrimSpace(*u.FirstName)
	}
	if u.LastName != nil {
		a.LastName = strings.TrimSpace(*u.LastName)
	}
	if u.Email != nil {
		email := strings.TrimSpace(*u.Email)
		if err := ValidateEmail(email); err != nil {
			return nil, err
		}
		a.Email = email
	}
	if u.DOB != nil {
		a.DOB = u.DOB
	}
	if u.Photo != nil {
		a.Photo = *u.Photo
	}

	if err := s.store.UpdateAccountProfile(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("updated profile", "actor", actorName(actor), "username", username)
	return a, nil
}

// requireAdmin returns policy.ErrForbidden unless the actor is an admin.
func (s *Service) requireAdmin(actor *policy.Actor, op, target string) error {
	if actor.IsAdmin() {
		return nil
	}
	s.logger.Warn("denied admin operation", "op", op, "actor", actorName(actor), "target", target)
	return fmt.Errorf("%s: %w", op, policy.ErrForbidden)
}

// ChangeRole sets the role of the named account. Admin only.
func (s *Service) ChangeRole(ctx context.Context, actor *policy.Actor, username string, role store.Role) error {
	if err := s.requireAdmin(actor, "change role", username); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrInvalidRole
	}
	if err := s.store.UpdateAccountRole(ctx, username, role); err != nil {
		return err
	}

	s.audit(ctx, actor, store.AuditChangeRole, "account", username, map[string]any{"role": string(role)})
	s.logger.Info("changed role", "actor", actor.Username, "username", username, "role", role)
	return nil
}

// SetBanned bans or unbans the named account. Admin only; protected
// accounts cannot be banned.
func (s *Service) SetBanned(ctx context.Context, actor *policy.Actor, username string, banned bool) error {
	if err := s.requireAdmin(actor, "set banned", username); err != nil {
		return err
	}
	if err := s.store.SetAccountBanned(ctx, username, banned); err != nil {
		return err
	}

	action := store.AuditUnbanAccount
	if banned {
		action = store.AuditBanAccount
	}
	s.audit(ctx, actor, action, "account", username, nil)
	s.logger.Info("updated banned flag", "actor", actor.Username, "username", username, "banned", banned)
	return nil
}

// Delete removes the named account. Non-admins get policy.ErrForbidden;
// protected accounts yield store.ErrProtectedAccount for every actor.
func (s *Service) Delete(ctx context.Context, actor *policy.Actor, username string) error {
	if err := s.requireAdmin(actor, "delete account", username); err != nil {
		return err
	}
	a, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return err
	}
	if a.Protected {
		return store.ErrProtectedAccount
	}
	if err := policy.Check(actor, policy.ResourceAccount, policy.OpDelete, policy.AccountRow(a)); err != nil {
		return err
	}
	if err := s.store.DeleteAccount(ctx, username); err != nil {
		return err
	}

	s.audit(ctx, actor, store.AuditDeleteAccount, "account", username, map[string]any{"id": a.ID})
	s.logger.Info("deleted account", "actor", actor.Username, "username", username)
	return nil
}

// ResetCredential replaces the named account's secret. Admin only, and
// applies to protected accounts too.
func (s *Service) ResetCredential(ctx context.Context, actor *policy.Actor, username, newPassword string) error {
	if err := s.requireAdmin(actor, "reset credential", username); err != nil {
		return err
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateAccountPassword(ctx, username, hash); err != nil {
		return err
	}

	s.audit(ctx, actor, store.AuditResetCredential, "account", username, nil)
	s.logger.Info("reset credential", "actor", actor.Username, "username", username)
	return nil
}

// ChangeOwnCredential replaces the actor's own secret after verifying the
// current one.
func (s *Service) ChangeOwnCredential(ctx context.Context, actor *policy.Actor, oldPassword, newPassword string) error {
	if actor == nil {
		return fmt.Errorf("change credential: %w", policy.ErrForbidden)
	}
	a, err := s.store.GetAccount(ctx, actor.ID)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredential
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}
	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateAccountPassword(ctx, a.Username, hash); err != nil {
		return err
	}
	s.logger.Info("changed own credential", "username", a.Username)
	return nil
}

// BootstrapResult reports what Bootstrap did.
type BootstrapResult struct {
	Account  *store.Account
	Created  bool
	Password string // set only when Bootstrap generated it
}

// Bootstrap seeds the protected super-admin account unless one already
// exists. It is safe to run on every start; concurrent runs insert one row.
// The existing super-admin is returned even when its username differs from
// the configured one. A configured username held by an ordinary account
// fails with ErrBootstrapConflict.
func (s *Service) Bootstrap(ctx context.Context, username, password string) (*BootstrapResult, error) {
	if err := ValidateUsername(username); err != nil {
		return nil, err
	}

	res := &BootstrapResult{}
	if password == "" {
		generated, err := generatePassword()
		if err != nil {
			return nil, err
		}
		password = generated
		res.Password = generated
	} else if err := ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return nil, err
	}
	seed := &store.Account{
		ID:           uuid.New().String(),
		FirstName:    "Super",
		LastName:     "Admin",
		Username:     username,
		PasswordHash: hash,
		Role:         store.RoleAdmin,
		Protected:    true,
		CreatedAt:    time.Now().UTC(),
	}
	a, created, err := s.store.SeedAccount(ctx, seed)
	if errors.Is(err, store.ErrDuplicateUsername) {
		return nil, fmt.Errorf("%w: %q", ErrBootstrapConflict, username)
	}
	if err != nil {
		return nil, fmt.Errorf("seeding super-admin: %w", err)
	}
	res.Account = a
	res.Created = created

	if !created {
		res.Password = ""
		if a.Username != username {
			s.logger.Warn("super-admin already exists under another username",
				"configured", username, "existing", a.Username)
		}
		return res, nil
	}

	s.audit(ctx, &policy.Actor{ID: SystemActor, Username: SystemActor}, store.AuditSeedAdmin, "account", username, nil)
	s.logger.Info("seeded super-admin", "username", username)
	return res, nil
}

func generatePassword() (string, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// audit records an admin action. Failures are logged, not returned.
func (s *Service) audit(ctx context.Context, actor *policy.Actor, action store.AuditAction, targetType, targetID string, detail map[string]any) {
	err := s.store.AppendAuditLog(ctx, &store.AuditEntry{
		ActorID:    actor.ID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Detail:     detail,
	})
	if err != nil {
		s.logger.Warn("failed to append audit log", "action", action, "error", err)
	}
}

func actorName(a *policy.Actor) string {
	if a == nil {
		return "anonymous"
	}
	return a.Username
}
