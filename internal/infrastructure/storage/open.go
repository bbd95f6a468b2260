package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"BulletinDispatch/internal/ports"
)

// Store bundles the repository and job locker selected for one backend.
type Store struct {
	*Repository
	Locker ports.JobLocker
	db     *sql.DB
}

// Driver names accepted by Open once normalized.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// NormalizeDriver maps a configured driver name or alias to DriverPostgres
// or DriverSQLite. An empty name selects SQLite.
func NormalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql":
		return DriverPostgres, nil
	case "sqlite", "sqlite3", "":
		return DriverSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", name)
	}
}

// Open connects to driver (see NormalizeDriver) and returns the matching
// repository and locker. The backend is chosen once here; no query text is
// rewritten at runtime.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	name, err := NormalizeDriver(driver)
	if err != nil {
		return nil, err
	}
	if name == DriverSQLite {
		return OpenSQLite(ctx, dsn)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{
		Repository: NewRepository(db, Postgres),
		Locker:     NewAdvisoryLocker(db),
		db:         db,
	}, nil
}

// OpenSQLite opens or creates the database file at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return &Store{
		Repository: NewRepository(db, SQLite),
		Locker:     NewTableLocker(db, SQLite),
		db:         db,
	}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection pool for administrative statements.
func (s *Store) DB() *sql.DB {
	return s.db
}
