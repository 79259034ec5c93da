// ABOUTME: Account persistence for the SQL store
// ABOUTME: Uniqueness and protected-account guards are enforced inside the database write

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const accountColumns = `id, first_name, last_name, email, username, password_hash, role, dob, photo, banned, protected, created_at`

// CreateAccount inserts a new account. Returns ErrDuplicateUsername or
// ErrDuplicateEmail when a unique constraint rejects the row.
func (s *SQLStore) CreateAccount(ctx context.Context, a *Account) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Role == "" {
		a.Role = RoleClient
	}

	query := `
		INSERT INTO users (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.exec(ctx, query, accountArgs(a)...)
	if err != nil {
		return accountWriteError("inserting account", err)
	}

	s.logger.Debug("created account", "id", a.ID, "username", a.Username, "role", a.Role)
	return nil
}

// SeedAccount inserts a unless a protected account already exists, in
// which case that account is returned instead. Safe to call on every start.
// A username or email already held by an unprotected account fails with
// the matching duplicate error.
func (s *SQLStore) SeedAccount(ctx context.Context, a *Account) (*Account, bool, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	existing, err := s.protectedAccount(ctx)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	// idx_users_single_protected rejects a concurrent second seed
	query := `
		INSERT INTO users (` + accountColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := s.exec(ctx, query, accountArgs(a)...); err != nil {
		if isUniqueConstraintError(err) {
			if existing, lookupErr := s.protectedAccount(ctx); lookupErr == nil {
				return existing, false, nil
			}
		}
		return nil, false, accountWriteError("seeding account", err)
	}
	s.logger.Info("seeded account", "username", a.Username, "role", a.Role)
	return a, true, nil
}

// protectedAccount returns the oldest protected account.
func (s *SQLStore) protectedAccount(ctx context.Context) (*Account, error) {
	row := s.queryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE protected = TRUE ORDER BY created_at ASC LIMIT 1`)
	a, err := scanAccount(row)
	if err != nil {
		return nil, classify("querying protected account", err)
	}
	return a, nil
}

func accountArgs(a *Account) []any {
	var dob any
	if a.DOB != nil {
		dob = a.DOB.UTC().Format(dateLayout)
	}
	return []any{
		a.ID,
		a.FirstName,
		a.LastName,
		nullString(a.Email),
		a.Username,
		a.PasswordHash,
		string(a.Role),
		dob,
		a.Photo,
		a.Banned,
		a.Protected,
		formatTime(a.CreatedAt),
	}
}

func accountWriteError(action string, err error) error {
	switch {
	case uniqueViolationOn(err, "users", "username"):
		return ErrDuplicateUsername
	case uniqueViolationOn(err, "users", "email"):
		return ErrDuplicateEmail
	default:
		return classify(action, err)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*Account, error) {
	var a Account
	var email, dob sql.NullString
	var role, createdAt string

	err := row.Scan(
		&a.ID,
		&a.FirstName,
		&a.LastName,
		&email,
		&a.Username,
		&a.PasswordHash,
		&role,
		&dob,
		&a.Photo,
		&a.Banned,
		&a.Protected,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	a.Email = email.String
	a.Role = Role(role)
	if dob.Valid {
		t, err := time.Parse(dateLayout, dob.String)
		if err != nil {
			return nil, fmt.Errorf("parsing dob: %w", err)
		}
		a.DOB = &t
	}
	a.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccount retrieves an account by ID.
// Returns ErrNotFound if the account doesn't exist.
func (s *SQLStore) GetAccount(ctx context.Context, id string) (*Account, error) {
	row := s.queryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err != nil {
		return nil, classify("querying account", err)
	}
	return a, nil
}

// GetAccountByUsername retrieves an account by username.
// Returns ErrNotFound if the account doesn't exist.
func (s *SQLStore) GetAccountByUsername(ctx context.Context, username string) (*Account, error) {
	row := s.queryRow(ctx, `SELECT `+accountColumns+` FROM users WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err != nil {
		return nil, classify("querying account by username", err)
	}
	return a, nil
}

// normalizeLimit applies default (100) and cap (1000) to list limits.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// ListAccounts returns accounts oldest first.
func (s *SQLStore) ListAccounts(ctx context.Context, filter AccountFilter) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM users WHERE 1 = 1`
	var args []any
	if !filter.IncludeBanned {
		query += ` AND banned = FALSE`
	}
	if filter.Role != nil {
		query += ` AND role = ?`
		args = append(args, string(*filter.Role))
	}
	query += ` ORDER BY created_at ASC, username ASC LIMIT ?`
	args = append(args, normalizeLimit(filter.Limit))

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, classify("querying accounts", err)
	}
	defer func() { _ = rows.Close() }()

	accounts := []*Account{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("iterating accounts", err)
	}
	return accounts, nil
}

// UpdateAccountProfile writes the profile fields (names, email, dob, photo).
// Role, ban and protection are changed through their own methods.
func (s *SQLStore) UpdateAccountProfile(ctx context.Context, a *Account) error {
	var dob any
	if a.DOB != nil {
		dob = a.DOB.UTC().Format(dateLayout)
	}
	result, err := s.exec(ctx, `
		UPDATE users
		SET first_name = ?, last_name = ?, email = ?, dob = ?, photo = ?
		WHERE id = ?
	`, a.FirstName, a.LastName, nullString(a.Email), dob, a.Photo, a.ID)
	if err != nil {
		return accountWriteError("updating account profile", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Debug("updated account profile", "id", a.ID)
	return nil
}

// UpdateAccountRole sets the role of the named account.
func (s *SQLStore) UpdateAccountRole(ctx context.Context, username string, role Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	result, err := s.exec(ctx, `UPDATE users SET role = ? WHERE username = ?`, string(role), username)
	if err != nil {
		return classify("updating account role", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Info("updated account role", "username", username, "role", role)
	return nil
}

// UpdateAccountPassword replaces the stored credential hash.
func (s *SQLStore) UpdateAccountPassword(ctx context.Context, username, passwordHash string) error {
	result, err := s.exec(ctx, `UPDATE users SET password_hash = ? WHERE username = ?`, passwordHash, username)
	if err != nil {
		return classify("updating account password", err)
	}
	if err := checkAffected(result); err != nil {
		return err
	}
	s.logger.Info("updated account password", "username", username)
	return nil
}

// SetAccountBanned sets or clears the banned flag. Protected accounts
// cannot be banned.
func (s *SQLStore) SetAccountBanned(ctx context.Context, username string, banned bool) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkNotProtected(ctx, tx, username); err != nil {
			if banned || !errors.Is(err, ErrProtectedAccount) {
				return err
			}
		}
		result, err := s.txExec(ctx, tx, `UPDATE users SET banned = ? WHERE username = ?`, banned, username)
		if err != nil {
			return classify("updating banned flag", err)
		}
		return checkAffected(result)
	})
	if err != nil {
		return err
	}
	s.logger.Info("updated banned flag", "username", username, "banned", banned)
	return nil
}

// DeleteAccount removes an account. Authored news, comments and replies
// survive with their author reference nulled; likes and owned news cascade.
func (s *SQLStore) DeleteAccount(ctx context.Context, username string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.checkNotProtected(ctx, tx, username); err != nil {
			return err
		}
		result, err := s.txExec(ctx, tx, `DELETE FROM users WHERE username = ? AND protected = FALSE`, username)
		if err != nil {
			return classify("deleting account", err)
		}
		return checkAffected(result)
	})
	if err != nil {
		return err
	}
	s.logger.Info("deleted account", "username", username)
	return nil
}

// checkNotProtected returns ErrNotFound or ErrProtectedAccount when the
// named account cannot be deleted or banned.
func (s *SQLStore) checkNotProtected(ctx context.Context, tx *sql.Tx, username string) error {
	var protected bool
	err := s.txQueryRow(ctx, tx, `SELECT protected FROM users WHERE username = ?`, username).Scan(&protected)
	if err != nil {
		return classify("checking protected flag", err)
	}
	if protected {
		return ErrProtectedAccount
	}
	return nil
}

// CountAccounts returns the number of accounts.
func (s *SQLStore) CountAccounts(ctx context.Context) (int, error) {
	var count int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, classify("counting accounts", err)
	}
	return count, nil
}
