// Package store persists normalized advisories in a single SQLite database
// file (pure-Go driver, modernc.org/sqlite).
//
// SQLite admits one writer at a time, so a Store is the sole owner of write
// access: it holds a single connection and serializes every batch transaction
// behind a mutex. Callers may invoke WriteBatch from any number of goroutines;
// transactions never interleave.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver

	"github.com/hmarr/advisories-analysis/migrations"
)

// Store is the data access object for the advisory database.
type Store struct {
	db *sql.DB

	// writeMu serializes write transactions.
	writeMu sync.Mutex
}

// Open opens (creating if needed) the SQLite database at path. The caller is
// responsible for removing any previous database first; Open never truncates.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and the mutex above relies
	// on no other connection holding a write lock.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// dsn builds the modernc.org/sqlite connection string. Transactions take the
// write lock up front (_txlock=immediate) so a batch fails at BEGIN rather
// than midway if another process holds the file.
func dsn(path string) string {
	return path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(0)&_txlock=immediate"
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// CreateSchema applies the embedded migrations, creating the advisories and
// affected_packages tables. Calling it again on an up-to-date store is a
// no-op. It fails if the file is not a SQLite database or already contains
// conflicting tables.
func (s *Store) CreateSchema(ctx context.Context) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}
	defer src.Close() //nolint:errcheck

	// The driver wraps s.db; migrate.Close would close it, so only the source
	// is closed here.
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: create schema: %w", err)
	}

	var tables int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('advisories', 'affected_packages')`,
	).Scan(&tables); err != nil {
		return fmt.Errorf("store: verify schema: %w", err)
	}
	if tables != 2 {
		return fmt.Errorf("store: verify schema: found %d of 2 tables", tables)
	}
	return nil
}

// withTx runs fn inside a transaction. The transaction is committed if fn
// returns nil, rolled back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version. ok is false when no
// migration has been applied.
func (s *Store) SchemaVersion(ctx context.Context) (version uint, dirty, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("store: schema version: %w", err)
	}
	return version, dirty, true, nil
}
