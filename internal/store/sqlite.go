// ABOUTME: SQL implementation of the Store interfaces over database/sql
// ABOUTME: Serves SQLite (modernc or mattn/cgo) and Postgres (pgx) with one schema

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Dialect identifies the SQL engine behind a SQLStore.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"   // modernc.org/sqlite, pure Go
	DialectSQLite3  Dialect = "sqlite3"  // github.com/mattn/go-sqlite3, cgo
	DialectPostgres Dialect = "postgres" // github.com/jackc/pgx/v5/stdlib
)

// timeLayout is fixed-width so TEXT timestamps sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const dateLayout = "2006-01-02"

// SQLStore implements Store on top of database/sql.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path using the pure Go
// driver. The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	return openSQLStore(DialectSQLite, "sqlite", dsn)
}

// NewSQLite3Store is NewSQLiteStore backed by the cgo mattn/go-sqlite3 driver.
func NewSQLite3Store(path string) (*SQLStore, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := "file:" + path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
	return openSQLStore(DialectSQLite3, "sqlite3", dsn)
}

// NewPostgresStore connects to Postgres with the given connection string.
func NewPostgresStore(dsn string) (*SQLStore, error) {
	return openSQLStore(DialectPostgres, "pgx", dsn)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	return nil
}

func openSQLStore(dialect Dialect, driverName, dsn string) (*SQLStore, error) {
	logger := slog.Default().With("component", "store", "dialect", string(dialect))

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLStore{
		db:      db,
		dialect: dialect,
		logger:  logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQL store initialized")
	return s, nil
}

// Dialect returns the engine this store talks to.
func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

// Ping checks that the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	s.logger.Info("closing SQL store")
	return s.db.Close()
}

// schemaStatements are valid for both SQLite and Postgres.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		email         TEXT UNIQUE,
		username      TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'client',
		dob           TEXT,
		photo         TEXT NOT NULL DEFAULT '',
		banned        BOOLEAN NOT NULL DEFAULT FALSE,
		protected     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at    TEXT NOT NULL,

		CHECK (role IN ('client', 'admin'))
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
	`CREATE INDEX IF NOT EXISTS idx_users_email ON users(email)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_single_protected ON users(protected) WHERE protected = TRUE`,

	`CREATE TABLE IF NOT EXISTS news (
		id          TEXT PRIMARY KEY,
		title       TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		image       TEXT NOT NULL DEFAULT '',
		link        TEXT NOT NULL DEFAULT '',
		author_id   TEXT REFERENCES users(id) ON DELETE SET NULL,
		admin_id    TEXT REFERENCES users(id) ON DELETE CASCADE,
		created_at  TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_created_at ON news(created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS comments (
		id         TEXT PRIMARY KEY,
		news_id    TEXT NOT NULL REFERENCES news(id) ON DELETE CASCADE,
		user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
		username   TEXT NOT NULL,
		text       TEXT NOT NULL,
		hidden     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_news_id ON comments(news_id)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_user_id ON comments(user_id)`,

	`CREATE TABLE IF NOT EXISTS replies (
		id         TEXT PRIMARY KEY,
		comment_id TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		user_id    TEXT REFERENCES users(id) ON DELETE SET NULL,
		username   TEXT NOT NULL,
		text       TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_replies_comment_id ON replies(comment_id)`,

	`CREATE TABLE IF NOT EXISTS news_likes (
		id         TEXT PRIMARY KEY,
		news_id    TEXT NOT NULL REFERENCES news(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL,
		UNIQUE (news_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_news_likes_user_id ON news_likes(user_id)`,

	`CREATE TABLE IF NOT EXISTS comment_likes (
		id         TEXT PRIMARY KEY,
		comment_id TEXT NOT NULL REFERENCES comments(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL,
		UNIQUE (comment_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS reply_likes (
		id         TEXT PRIMARY KEY,
		reply_id   TEXT NOT NULL REFERENCES replies(id) ON DELETE CASCADE,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL,
		UNIQUE (reply_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS main_text_likes (
		id         TEXT PRIMARY KEY,
		page       TEXT NOT NULL,
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TEXT NOT NULL,
		UNIQUE (page, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS audit_log (
		audit_id    TEXT PRIMARY KEY,
		actor_id    TEXT NOT NULL,
		action      TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id   TEXT NOT NULL,
		ts          TEXT NOT NULL,
		detail_json TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_ts ON audit_log(ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_log(actor_id)`,
}

// createSchema creates the database tables if they don't exist.
// Statements are run one by one so the same list works on every dialect.
func (s *SQLStore) createSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return classify("applying schema", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres.
// Queries in this package never contain a literal '?'.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(query), args...)
}

// txQueryRow and txExec run inside an open transaction.
func (s *SQLStore) txQueryRow(ctx context.Context, tx *sql.Tx, query string, args ...any) *sql.Row {
	return tx.QueryRowContext(ctx, s.rebind(query), args...)
}

func (s *SQLStore) txExec(ctx context.Context, tx *sql.Tx, query string, args ...any) (sql.Result, error) {
	return tx.ExecContext(ctx, s.rebind(query), args...)
}

// withTx runs fn in a transaction, rolling back on error.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify("beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}

// nullString returns nil for empty strings, otherwise the string
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullStringPtr(s *string) any {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

func ptrFromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// checkAffected maps a zero-row write to ErrNotFound.
func checkAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Ensure SQLStore implements Store interface
var _ Store = (*SQLStore)(nil)
