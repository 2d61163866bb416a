// Package metadb implements the engine's metadata store (component B): a
// transactional relational store, backed by SQLite, holding scheduler
// state, the review log, the dedup index and events, and cluster rows and
// memberships. Grounded on the teacher's internal/database connection and
// transaction-handling idioms, adapted to three logical databases
// (scheduler+log, clusters+memberships, dedup+events) per spec's external
// interfaces.
package metadb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/memoryctl/memoryctl/internal/logging"
	_ "github.com/mattn/go-sqlite3"
)

var log = logging.GetLogger("metadb")

// Database wraps one SQLite-backed logical database: per-database
// WAL-style durability, single-writer/multi-reader via an RWMutex, and a
// caller-configurable write timeout.
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open opens (creating if necessary) a SQLite database at path with
// foreign-key enforcement and WAL journaling.
func Open(path string, writeTimeout time.Duration) (*Database, error) {
	log.Info("opening metadata database", "path", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d", path, writeTimeout.Milliseconds())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{db: db, path: path}, nil
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

// DB returns the underlying sql.DB for components needing low-level access.
func (d *Database) DB() *sql.DB { return d.db }

// Path returns the database file path.
func (d *Database) Path() string { return d.path }

// Exec executes a statement under the write lock.
func (d *Database) Exec(query string, args ...interface{}) (sql.Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Exec(query, args...)
}

// Query executes a query under the read lock.
func (d *Database) Query(query string, args ...interface{}) (*sql.Rows, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.Query(query, args...)
}

// QueryRow executes a single-row query under the read lock.
func (d *Database) QueryRow(query string, args ...interface{}) *sql.Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db.QueryRow(query, args...)
}

// Begin starts a transaction. Callers hold the write lock for its
// duration via WithTx.
func (d *Database) Begin() (*sql.Tx, error) {
	return d.db.Begin()
}

// WithTx runs fn inside a transaction, serialized against all other
// writers, committing on success and rolling back on error or panic.
func (d *Database) WithTx(fn func(tx *sql.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// TableExists reports whether name exists in sqlite_master.
func (d *Database) TableExists(name string) (bool, error) {
	var count int
	err := d.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, name).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CountRows returns the row count of table. Table names are never
// parameterized in SQLite; callers must only pass compile-time constants.
func (d *Database) CountRows(table string) (int, error) {
	var count int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
	if err := d.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}
	return count, nil
}

// initSchema runs ddl inside a transaction, idempotently (CREATE TABLE IF
// NOT EXISTS throughout).
func (d *Database) initSchema(ddl string) error {
	return d.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(ddl)
		return err
	})
}
