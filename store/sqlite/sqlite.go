/*
Package sqlite provides a SQLite-backed implementation of shift.TxStore.

PURPOSE:
  Opens the database, supplies the SQLite dialect (schema, unique-violation
  detection) and hands the connection to sqlstore, which holds the queries
  shared with PostgreSQL.

APPEND-ONLY ENFORCEMENT:
  corrections and note_history carry BEFORE UPDATE / BEFORE DELETE triggers
  that abort, so the database itself refuses to rewrite history.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/shifts.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - store/sqlstore: Queries and row mapping
  - store/postgres: PostgreSQL dialect
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/warp/shift-engine/store/sqlstore"
)

// Store is a sqlstore.Store over SQLite.
type Store struct {
	*sqlstore.Store
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database; one connection keeps
	// every statement on the same one.
	db.SetMaxOpenConns(1)

	inner, err := sqlstore.Open(context.Background(), db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

// Dialect is the SQLite flavour of the shared schema.
var Dialect = sqlstore.Dialect{
	Name:              "sqlite",
	Schema:            schema,
	Drop:              drop,
	Rebind:            sqlstore.QuestionMarks,
	IsUniqueViolation: isUniqueConstraintError,
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		shift_date TEXT NOT NULL,
		label TEXT NOT NULL,
		supervisor TEXT NOT NULL DEFAULT '',
		sheet_json TEXT NOT NULL,
		document_urls_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		version INTEGER NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	// CRITICAL: one shift per (date, label), whatever its status
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_date_label ON shifts(shift_date, label)`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_status ON shifts(status)`,

	`CREATE TABLE IF NOT EXISTS items (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		shift_id TEXT NOT NULL REFERENCES shifts(id),
		kind TEXT NOT NULL,
		polarity TEXT NOT NULL,
		amount TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		payment_method TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		previous_balance TEXT,
		dispensed_amount TEXT,
		resulting_balance TEXT,
		note_only INTEGER NOT NULL DEFAULT 0,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_shift ON items(shift_id)`,

	`CREATE TABLE IF NOT EXISTS corrections (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		shift_id TEXT NOT NULL,
		field TEXT NOT NULL,
		old_value TEXT NOT NULL,
		new_value TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL,
		at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_corrections_shift ON corrections(shift_id)`,

	`CREATE TABLE IF NOT EXISTS note_history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		shift_id TEXT NOT NULL,
		old_note TEXT NOT NULL,
		new_note TEXT NOT NULL,
		actor TEXT NOT NULL,
		at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_note_history_shift ON note_history(shift_id)`,

	`CREATE TRIGGER IF NOT EXISTS corrections_no_update BEFORE UPDATE ON corrections
	BEGIN SELECT RAISE(ABORT, 'audit history is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS corrections_no_delete BEFORE DELETE ON corrections
	BEGIN SELECT RAISE(ABORT, 'audit history is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS note_history_no_update BEFORE UPDATE ON note_history
	BEGIN SELECT RAISE(ABORT, 'audit history is append-only'); END`,
	`CREATE TRIGGER IF NOT EXISTS note_history_no_delete BEFORE DELETE ON note_history
	BEGIN SELECT RAISE(ABORT, 'audit history is append-only'); END`,
}

var drop = []string{
	`DROP TABLE IF EXISTS items`,
	`DROP TABLE IF EXISTS corrections`,
	`DROP TABLE IF EXISTS note_history`,
	`DROP TABLE IF EXISTS shifts`,
}

func isUniqueConstraintError(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
