// Package postgres provides a PostgreSQL-backed shift.TxStore using the pgx
// database/sql driver. Queries are shared with SQLite through sqlstore;
// this package supplies the schema and error mapping.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/warp/shift-engine/store/sqlstore"
)

// uniqueViolation is the SQLSTATE of a unique-constraint failure.
const uniqueViolation = "23505"

type Store struct {
	*sqlstore.Store
}

// New connects to dsn (a pgx connection URL) and migrates the schema.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	inner, err := sqlstore.Open(ctx, db, Dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{Store: inner}, nil
}

var Dialect = sqlstore.Dialect{
	Name:              "postgres",
	Schema:            schema,
	Drop:              drop,
	Rebind:            sqlstore.DollarNumbered,
	IsUniqueViolation: isUniqueViolation,
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
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
		version BIGINT NOT NULL,
		created_by TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_shifts_date_label ON shifts(shift_date, label)`,
	`CREATE INDEX IF NOT EXISTS idx_shifts_status ON shifts(status)`,

	`CREATE TABLE IF NOT EXISTS items (
		seq BIGSERIAL PRIMARY KEY,
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
		seq BIGSERIAL PRIMARY KEY,
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
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL UNIQUE,
		shift_id TEXT NOT NULL,
		old_note TEXT NOT NULL,
		new_note TEXT NOT NULL,
		actor TEXT NOT NULL,
		at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_note_history_shift ON note_history(shift_id)`,

	// Rewrites of audit rows become no-ops.
	`CREATE OR REPLACE RULE corrections_no_update AS ON UPDATE TO corrections DO INSTEAD NOTHING`,
	`CREATE OR REPLACE RULE corrections_no_delete AS ON DELETE TO corrections DO INSTEAD NOTHING`,
	`CREATE OR REPLACE RULE note_history_no_update AS ON UPDATE TO note_history DO INSTEAD NOTHING`,
	`CREATE OR REPLACE RULE note_history_no_delete AS ON DELETE TO note_history DO INSTEAD NOTHING`,
}

var drop = []string{
	`DROP TABLE IF EXISTS items`,
	`DROP TABLE IF EXISTS corrections`,
	`DROP TABLE IF EXISTS note_history`,
	`DROP TABLE IF EXISTS shifts`,
}
