package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the reservation store: durable keyed storage for bookings and for
// the per-day claim markers that make reserved dates exclusive.
type DB struct {
	*sql.DB
	logger *zerolog.Logger
}

// TxMode selects the transaction flavor handed out by Begin.
type TxMode int

const (
	// TxSerializable is used by every write path. SQLite transactions are
	// always serializable; write transactions may additionally take the
	// exclusive claim lock via FindClaimsInRange(..., LockExclusive).
	TxSerializable TxMode = iota
	// TxReadOnly is used by plain reads and availability queries. Under WAL
	// these never block writers and never take locks.
	TxReadOnly
)

// LockMode selects the locking behavior of FindClaimsInRange, making the
// concurrency contract visible at every call site.
type LockMode int

const (
	// LockNone reads claims without blocking concurrent writers.
	LockNone LockMode = iota
	// LockExclusive serializes the calling transaction against every other
	// writer before reading, by touching the reservation guard row. A second
	// writer blocks until the first commits or rolls back; after the busy
	// timeout the wait fails with ErrTxConflict.
	LockExclusive
)

// Tx is a transaction handle scoped to the mode it was opened with.
type Tx struct {
	*sql.Tx
	mode TxMode
}

// NewDB opens the store at path and creates the schema if missing.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL keeps readers from blocking behind writers; the busy timeout makes
	// concurrent writers wait for the exclusive lock instead of failing
	// immediately.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	instance := &DB{
		DB:     db,
		logger: logger,
	}

	if err := instance.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("Database initialized")
	return instance, nil
}

func (db *DB) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL DEFAULT 1,
			email TEXT NOT NULL,
			full_name TEXT NOT NULL,
			arrival_date TEXT NOT NULL,
			departure_date TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// One row per reserved calendar day. The primary key is the
		// uniqueness guard: two bookings can never hold the same date.
		`CREATE TABLE IF NOT EXISTS booking_dates (
			date TEXT PRIMARY KEY
		) WITHOUT ROWID`,

		// Single advisory row. Updating it acquires the database write lock,
		// which is what serializes writers in LockExclusive mode.
		`CREATE TABLE IF NOT EXISTS reservation_guard (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			locked_at DATETIME
		)`,
		`INSERT OR IGNORE INTO reservation_guard (id, locked_at) VALUES (1, NULL)`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_arrival ON bookings(arrival_date)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// Begin opens a transaction in the given mode. Callers must either Commit
// or Rollback; `defer tx.Rollback()` after Begin keeps every error path
// clean.
func (db *DB) Begin(ctx context.Context, mode TxMode) (*Tx, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(fmt.Errorf("begin tx: %w", err))
	}
	return &Tx{Tx: tx, mode: mode}, nil
}

// Commit commits the transaction, classifying late lock conflicts.
func (tx *Tx) Commit() error {
	return classify(tx.Tx.Commit())
}

func (db *DB) Close() error {
	return db.DB.Close()
}
