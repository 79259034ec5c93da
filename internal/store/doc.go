// Package store provides persistent storage for commons accounts and content.
//
// # Architecture
//
// The store package splits persistence into narrow interfaces:
//
//   - AccountStore: accounts, roles, banned and protected flags
//   - ContentStore: news items, comments and replies
//   - LikeStore: the four like relations (news, comment, reply, main text)
//   - AuditStore: append-only log of administrative actions
//
// Store embeds all of them. SQLStore implements Store over database/sql for
// three drivers; MemoryStore implements it in process for demo mode and tests.
//
// # Drivers
//
//   - sqlite: modernc.org/sqlite, pure Go (default)
//   - sqlite3: github.com/mattn/go-sqlite3, requires cgo
//   - postgres: github.com/jackc/pgx/v5/stdlib
//   - memory: MemoryStore, nothing survives a restart
//
// SQLite is opened with foreign keys, WAL and a busy timeout:
//
//	_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)
//
// # Integrity
//
// Username, email and (target, actor) like uniqueness are UNIQUE constraints,
// so the check and the write are one statement. Deleting a parent cascades to
// its children and their likes. Deleting an account nulls the author reference
// on news, comments and replies, deletes the account's likes and deletes news
// it owns as admin.
//
// # Error Handling
//
//   - ErrNotFound: requested row does not exist, or a referenced parent is gone
//   - ErrDuplicateUsername, ErrDuplicateEmail: unique constraint on users
//   - ErrAlreadyLiked: like relation already exists
//   - ErrProtectedAccount: delete or ban of a protected account
//   - ErrUnavailable: the database cannot be reached
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMemoryStore() for unit tests, or NewSQLiteStore with a path under
// t.TempDir() for tests against a real schema. The Postgres integration test
// runs with -tags integration and needs Docker.
package store
