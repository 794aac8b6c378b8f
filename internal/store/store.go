package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// DriverSQLite is the embedded default; DriverPostgres is the production
// deployment target.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store is the single durable persistence surface for the dashboard: admin
// accounts, sessions, the login-attempt ledger, the ban list, and the
// activity log. It is the sole arbiter of ordering for conflicting writes.
type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the configured database and runs migrations. For SQLite an
// empty dsn selects a file under dataDir; pass dataDir == "" for in-memory
// (used by tests).
func Open(driver, dsn, dataDir string) (*Store, error) {
	switch driver {
	case DriverSQLite, "":
		return openSQLite(dsn, dataDir)
	case DriverPostgres:
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
}

func openSQLite(dsn, dataDir string) (*Store, error) {
	if dsn == "" {
		if dataDir == "" {
			dsn = ":memory:?_journal_mode=WAL"
		} else {
			if err := os.MkdirAll(dataDir, 0755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			dsn = filepath.Join(dataDir, "warden.db") + "?_journal_mode=WAL&_busy_timeout=5000"
		}
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db, driver: DriverSQLite}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func openPostgres(dsn string) (*Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres database: %w", err)
	}

	s := &Store{db: db, driver: DriverPostgres}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Ping verifies the database connection, used by the readiness probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind translates `?` placeholders to the connected driver's bind style.
func (s *Store) rebind(query string) string {
	return s.db.Rebind(query)
}
