// ABOUTME: Driver selection for the store package
// ABOUTME: Maps a configured driver name onto the matching Store constructor

package store

import "fmt"

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Open returns the Store for driver. path is used by the SQLite drivers,
// dsn by Postgres.
func Open(driver, path, dsn string) (Store, error) {
	var (
		s   *SQLStore
		err error
	)
	switch driver {
	case "", DriverSQLite:
		s, err = NewSQLiteStore(path)
	case DriverSQLite3:
		s, err = NewSQLite3Store(path)
	case DriverPostgres:
		s, err = NewPostgresStore(dsn)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
