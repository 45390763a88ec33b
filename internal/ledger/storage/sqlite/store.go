package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fallacylabs/pugledger/internal/ledger/storage"
	"github.com/fallacylabs/pugledger/internal/ledger/storage/sqlite/migrations"
	"github.com/fallacylabs/pugledger/internal/platform/storage/sqlitemigrate"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// toMillis normalizes timestamps into millisecond precision for storage.
func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

// fromMillis restores millisecond precision and keeps UTC normalization.
func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Store implements ledger persistence over SQLite.
//
// A single SQLite file backs the whole ledger so player, rating and match
// writes for one outcome can share the same transaction boundaries.
type Store struct {
	sqlDB *sql.DB
}

// DB returns the raw database handle for maintenance tooling.
func (s *Store) DB() *sql.DB {
	if s == nil {
		return nil
	}
	return s.sqlDB
}

// Open opens a ledger SQLite store, adopts any pre-tenancy schema it finds,
// and applies bundled migrations.
//
// This keeps startup and schema evolution in one place, instead of requiring
// callers to coordinate migrations independently.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}

	if err := store.runMigrations(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return store, nil
}

// Close releases the underlying SQLite database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// runMigrations adopts legacy single-tenant schemas first, then applies the
// embedded DDL files. Adoption must run before the DDL pass so the rebuilt
// tables are what the column migrations see.
func (s *Store) runMigrations() error {
	if err := sqlitemigrate.ApplySteps(s.sqlDB, adoptionSteps()); err != nil {
		return err
	}
	return sqlitemigrate.ApplyMigrations(s.sqlDB, migrations.FS, "")
}

// isUniqueViolation detects SQLite primary-key and unique-index failures so
// callers can map them onto storage.ErrAlreadyExists.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// Compile-time checks that the store satisfies every ledger contract.
var (
	_ storage.PlayerStore  = (*Store)(nil)
	_ storage.AdminStore   = (*Store)(nil)
	_ storage.ModeStore    = (*Store)(nil)
	_ storage.RatingStore  = (*Store)(nil)
	_ storage.MatchStore   = (*Store)(nil)
	_ storage.MapStore     = (*Store)(nil)
	_ storage.SettingStore = (*Store)(nil)
	_ storage.TimeoutStore = (*Store)(nil)
)
