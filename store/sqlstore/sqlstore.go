/*
Package sqlstore is the database/sql implementation of shift.TxStore shared
by the SQLite and PostgreSQL stores.

PURPOSE:
  The two engines differ in driver, placeholder syntax, schema DDL and how
  a unique violation is reported. Everything else (queries, row mapping,
  transactions) lives here once. A Dialect supplies the differences.

TABLES:
  shifts:        one row per shift, UNIQUE(shift_date, label)
  items:         account activity items, deleted individually
  corrections:   append-only field-level audit stream
  note_history:  append-only notes audit stream

APPEND-ONLY ENFORCEMENT:
  This package issues no UPDATE or DELETE against corrections and
  note_history. Each dialect's schema additionally makes the database
  refuse them (SQLite triggers, PostgreSQL rules).

ENCODING:
  Amounts are stored as decimal strings (full precision), NULL for unset.
  Dates are YYYY-MM-DD text. Timestamps are fixed-width UTC text so that
  lexical order is chronological. The sheet is a JSON document; it is
  always read and written whole.

SEE ALSO:
  - store/sqlite: SQLite dialect
  - store/postgres: PostgreSQL dialect
  - shift/store.go: Interface definitions
*/
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/reconcile"
	"github.com/warp/shift-engine/shift"
)

// TimeLayout is the stored timestamp format.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Dialect carries what differs between database engines.
type Dialect struct {
	Name string

	// Schema creates every table, index and guard, one statement per
	// element. Must be idempotent.
	Schema []string

	// Drop removes every table (used by Reset).
	Drop []string

	// Rebind rewrites ? placeholders into the engine's syntax.
	Rebind func(query string) string

	// IsUniqueViolation reports whether err is a unique-constraint failure.
	IsUniqueViolation func(err error) bool
}

// QuestionMarks leaves ? placeholders untouched.
func QuestionMarks(query string) string { return query }

// DollarNumbered rewrites ? placeholders into $1, $2, ...
func DollarNumbered(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// STORE
// =============================================================================

// Store implements shift.TxStore on a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
	mu      sync.RWMutex
}

// Open wraps db and migrates the schema.
func Open(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	s := &Store{db: db, dialect: d}
	if err := s.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to migrate %s database: %w", d.Name, err)
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	return execAll(ctx, s.db, s.dialect.Schema)
}

func execAll(ctx context.Context, q querier, statements []string) error {
	for _, stmt := range statements {
		if _, err := q.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance and tests.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping checks the connection (for health checks).
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Reset drops and recreates every table (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := execAll(ctx, s.db, s.dialect.Drop); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return s.migrate(ctx)
}

func (s *Store) queries(q querier) *queries {
	return &queries{q: q, d: s.dialect}
}

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(shift.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(s.queries(sqlTx)); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) CreateShift(ctx context.Context, sh shift.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).CreateShift(ctx, sh)
}

func (s *Store) GetShift(ctx context.Context, id generic.ShiftID) (shift.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries(s.db).GetShift(ctx, id)
}

func (s *Store) FindShift(ctx context.Context, date generic.Date, label shift.Label) (*shift.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries(s.db).FindShift(ctx, date, label)
}

func (s *Store) ListShifts(ctx context.Context, filter shift.ListFilter) ([]shift.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries(s.db).ListShifts(ctx, filter)
}

func (s *Store) UpdateShift(ctx context.Context, sh shift.Shift, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).UpdateShift(ctx, sh, expectedVersion)
}

func (s *Store) AppendItem(ctx context.Context, item activity.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).AppendItem(ctx, item)
}

func (s *Store) DeleteItem(ctx context.Context, shiftID generic.ShiftID, itemID generic.ItemID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).DeleteItem(ctx, shiftID, itemID)
}

func (s *Store) LoadItems(ctx context.Context, shiftID generic.ShiftID) ([]activity.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries(s.db).LoadItems(ctx, shiftID)
}

func (s *Store) LoadAllItems(ctx context.Context) ([]activity.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries(s.db).LoadAllItems(ctx)
}

func (s *Store) AppendCorrections(ctx context.Context, cs []generic.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).AppendCorrections(ctx, cs)
}

func (s *Store) AppendNoteChange(ctx context.Context, nc generic.NoteChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries(s.db).AppendNoteChange(ctx, nc)
}

func (s *Store) LoadCorrections(ctx context.Context, shiftID generic.ShiftID) ([]generic.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries(s.db).LoadCorrections(ctx, shiftID)
}

func (s *Store) LoadNoteHistory(ctx context.Context, shiftID generic.ShiftID) ([]generic.NoteChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queries(s.db).LoadNoteHistory(ctx, shiftID)
}

var (
	_ shift.TxStore = (*Store)(nil)
	_ shift.Store   = (*queries)(nil)
)

// =============================================================================
// QUERIES - Statements against a DB or an open transaction
// =============================================================================

type queries struct {
	q querier
	d Dialect
}

func (x *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return x.q.ExecContext(ctx, x.d.Rebind(query), args...)
}

func (x *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return x.q.QueryContext(ctx, x.d.Rebind(query), args...)
}

func (x *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return x.q.QueryRowContext(ctx, x.d.Rebind(query), args...)
}

// -----------------------------------------------------------------------------
// shifts
// -----------------------------------------------------------------------------

const shiftColumns = `id, shift_date, label, supervisor, sheet_json, document_urls_json,
	status, version, created_by, created_at, updated_at`

func (x *queries) CreateShift(ctx context.Context, sh shift.Shift) error {
	sheetJSON, urlsJSON, err := encodeShiftDocs(sh)
	if err != nil {
		return err
	}
	_, err = x.exec(ctx, `
		INSERT INTO shifts (`+shiftColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(sh.ID),
		sh.Date.String(),
		string(sh.Label),
		sh.Supervisor,
		sheetJSON,
		urlsJSON,
		string(sh.Status),
		sh.Version,
		string(sh.CreatedBy),
		formatTime(sh.CreatedAt),
		formatTime(sh.UpdatedAt),
	)
	if err != nil {
		if x.d.IsUniqueViolation(err) {
			return generic.ErrDuplicateShift
		}
		return fmt.Errorf("failed to insert shift: %w", err)
	}
	return nil
}

func (x *queries) GetShift(ctx context.Context, id generic.ShiftID) (shift.Shift, error) {
	row := x.queryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = ?`, string(id))
	sh, err := scanShift(row)
	if err == sql.ErrNoRows {
		return shift.Shift{}, &generic.NotFoundError{Kind: "shift", ID: string(id)}
	}
	return sh, err
}

func (x *queries) FindShift(ctx context.Context, date generic.Date, label shift.Label) (*shift.Shift, error) {
	row := x.queryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE shift_date = ? AND label = ?`,
		date.String(), string(label))
	sh, err := scanShift(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sh, nil
}

func (x *queries) ListShifts(ctx context.Context, filter shift.ListFilter) ([]shift.Shift, error) {
	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE 1 = 1`
	var args []any
	if filter.From != nil {
		query += ` AND shift_date >= ?`
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		query += ` AND shift_date <= ?`
		args = append(args, filter.To.String())
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY shift_date DESC, label ASC`

	rows, err := x.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []shift.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func (x *queries) UpdateShift(ctx context.Context, sh shift.Shift, expectedVersion int64) error {
	sheetJSON, urlsJSON, err := encodeShiftDocs(sh)
	if err != nil {
		return err
	}
	res, err := x.exec(ctx, `
		UPDATE shifts
		SET shift_date = ?, label = ?, supervisor = ?, sheet_json = ?, document_urls_json = ?,
		    status = ?, version = ?, updated_at = ?
		WHERE id = ? AND version = ?`,
		sh.Date.String(),
		string(sh.Label),
		sh.Supervisor,
		sheetJSON,
		urlsJSON,
		string(sh.Status),
		sh.Version,
		formatTime(sh.UpdatedAt),
		string(sh.ID),
		expectedVersion,
	)
	if err != nil {
		if x.d.IsUniqueViolation(err) {
			return generic.ErrDuplicateShift
		}
		return fmt.Errorf("failed to update shift: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := x.GetShift(ctx, sh.ID); err != nil {
			return err
		}
		return generic.ErrConcurrentModification
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanShift(row rowScanner) (shift.Shift, error) {
	var (
		sh                   shift.Shift
		id, date, label      string
		status, createdBy    string
		sheetJSON, urlsJSON  string
		createdAt, updatedAt string
	)
	err := row.Scan(&id, &date, &label, &sh.Supervisor, &sheetJSON, &urlsJSON,
		&status, &sh.Version, &createdBy, &createdAt, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return sh, err
		}
		return sh, fmt.Errorf("failed to scan shift: %w", err)
	}

	sh.ID = generic.ShiftID(id)
	if sh.Date, err = generic.ParseDate(date); err != nil {
		return sh, fmt.Errorf("shift %s: %w", id, err)
	}
	sh.Label = shift.Label(label)
	sh.Status = shift.Status(status)
	sh.CreatedBy = generic.Actor(createdBy)
	sh.CreatedAt = parseTime(createdAt)
	sh.UpdatedAt = parseTime(updatedAt)

	if sh.Sheet, err = decodeSheet(sheetJSON); err != nil {
		return sh, fmt.Errorf("shift %s: %w", id, err)
	}
	if urlsJSON != "" {
		if err := json.Unmarshal([]byte(urlsJSON), &sh.DocumentURLs); err != nil {
			return sh, fmt.Errorf("shift %s: bad document urls: %w", id, err)
		}
	}
	return sh, nil
}

// -----------------------------------------------------------------------------
// items
// -----------------------------------------------------------------------------

const itemColumns = `i.id, i.shift_id, s.shift_date, s.label, i.kind, i.polarity, i.amount, i.description,
	i.payment_method, i.customer_name, i.previous_balance, i.dispensed_amount,
	i.resulting_balance, i.note_only, i.created_by, i.created_at`

func (x *queries) AppendItem(ctx context.Context, item activity.Item) error {
	r := item.ToRecord()
	_, err := x.exec(ctx, `
		INSERT INTO items
		(id, shift_id, kind, polarity, amount, description, payment_method, customer_name,
		 previous_balance, dispensed_amount, resulting_balance, note_only, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID),
		string(r.ShiftID),
		string(r.Kind),
		string(r.Polarity),
		r.Amount.String(),
		r.Description,
		string(r.PaymentMethod),
		r.CustomerName,
		nullAmount(r.PreviousBalance),
		nullAmount(r.DispensedAmount),
		nullAmount(r.ResultingBalance),
		boolToInt(r.NoteOnly),
		string(r.CreatedBy),
		formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}
	return nil
}

func (x *queries) DeleteItem(ctx context.Context, shiftID generic.ShiftID, itemID generic.ItemID) (bool, error) {
	res, err := x.exec(ctx, `DELETE FROM items WHERE shift_id = ? AND id = ?`, string(shiftID), string(itemID))
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (x *queries) LoadItems(ctx context.Context, shiftID generic.ShiftID) ([]activity.Item, error) {
	return x.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items i JOIN shifts s ON s.id = i.shift_id
		WHERE i.shift_id = ?
		ORDER BY i.seq ASC`, string(shiftID))
}

func (x *queries) LoadAllItems(ctx context.Context) ([]activity.Item, error) {
	return x.queryItems(ctx, `
		SELECT `+itemColumns+`
		FROM items i JOIN shifts s ON s.id = i.shift_id
		ORDER BY i.seq ASC`)
}

func (x *queries) queryItems(ctx context.Context, query string, args ...any) ([]activity.Item, error) {
	rows, err := x.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []activity.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(rows *sql.Rows) (activity.Item, error) {
	var (
		id, shiftID, shiftDate string
		label                  string
		kind, polarity, amount string
		description, method    string
		customer               string
		previous, dispensed    sql.NullString
		resulting              sql.NullString
		noteOnly               int64
		createdBy, createdAt   string
	)
	err := rows.Scan(&id, &shiftID, &shiftDate, &label, &kind, &polarity, &amount, &description,
		&method, &customer, &previous, &dispensed, &resulting, &noteOnly, &createdBy, &createdAt)
	if err != nil {
		return activity.Item{}, fmt.Errorf("failed to scan item: %w", err)
	}

	date, err := generic.ParseDate(shiftDate)
	if err != nil {
		return activity.Item{}, fmt.Errorf("item %s: %w", id, err)
	}
	value, err := generic.ParseAmount(amount, generic.UnitCurrency)
	if err != nil {
		return activity.Item{}, fmt.Errorf("item %s: %w", id, err)
	}
	prev, err := parseNullAmount(previous)
	if err != nil {
		return activity.Item{}, fmt.Errorf("item %s: %w", id, err)
	}

	return activity.Decode(activity.Record{
		ID:              generic.ItemID(id),
		ShiftID:         generic.ShiftID(shiftID),
		ShiftDate:       date,
		ShiftPeriod:     shift.Label(label).Period(),
		Kind:            activity.Kind(kind),
		Polarity:        activity.Polarity(polarity),
		Amount:          value,
		Description:     description,
		PaymentMethod:   activity.PaymentMethod(method),
		CustomerName:    customer,
		PreviousBalance: prev,
		NoteOnly:        noteOnly != 0,
		CreatedBy:       generic.Actor(createdBy),
		CreatedAt:       parseTime(createdAt),
	})
}

// -----------------------------------------------------------------------------
// audit streams (insert and select only)
// -----------------------------------------------------------------------------

func (x *queries) AppendCorrections(ctx context.Context, cs []generic.Correction) error {
	for _, c := range cs {
		_, err := x.exec(ctx, `
			INSERT INTO corrections (id, shift_id, field, old_value, new_value, reason, actor, at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(c.ID), string(c.ShiftID), c.Field, c.OldValue, c.NewValue, c.Reason,
			string(c.Actor), formatTime(c.At),
		)
		if err != nil {
			return fmt.Errorf("failed to insert correction: %w", err)
		}
	}
	return nil
}

func (x *queries) AppendNoteChange(ctx context.Context, nc generic.NoteChange) error {
	_, err := x.exec(ctx, `
		INSERT INTO note_history (id, shift_id, old_note, new_note, actor, at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(nc.ID), string(nc.ShiftID), nc.OldNote, nc.NewNote, string(nc.Actor), formatTime(nc.At),
	)
	if err != nil {
		return fmt.Errorf("failed to insert note change: %w", err)
	}
	return nil
}

func (x *queries) LoadCorrections(ctx context.Context, shiftID generic.ShiftID) ([]generic.Correction, error) {
	rows, err := x.query(ctx, `
		SELECT id, shift_id, field, old_value, new_value, reason, actor, at
		FROM corrections WHERE shift_id = ? ORDER BY seq ASC`, string(shiftID))
	if err != nil {
		return nil, fmt.Errorf("failed to query corrections: %w", err)
	}
	defer rows.Close()

	var out []generic.Correction
	for rows.Next() {
		var c generic.Correction
		var id, sid, actor, at string
		if err := rows.Scan(&id, &sid, &c.Field, &c.OldValue, &c.NewValue, &c.Reason, &actor, &at); err != nil {
			return nil, fmt.Errorf("failed to scan correction: %w", err)
		}
		c.ID, c.ShiftID, c.Actor, c.At = generic.AuditID(id), generic.ShiftID(sid), generic.Actor(actor), parseTime(at)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (x *queries) LoadNoteHistory(ctx context.Context, shiftID generic.ShiftID) ([]generic.NoteChange, error) {
	rows, err := x.query(ctx, `
		SELECT id, shift_id, old_note, new_note, actor, at
		FROM note_history WHERE shift_id = ? ORDER BY seq ASC`, string(shiftID))
	if err != nil {
		return nil, fmt.Errorf("failed to query note history: %w", err)
	}
	defer rows.Close()

	var out []generic.NoteChange
	for rows.Next() {
		var n generic.NoteChange
		var id, sid, actor, at string
		if err := rows.Scan(&id, &sid, &n.OldNote, &n.NewNote, &actor, &at); err != nil {
			return nil, fmt.Errorf("failed to scan note change: %w", err)
		}
		n.ID, n.ShiftID, n.Actor, n.At = generic.AuditID(id), generic.ShiftID(sid), generic.Actor(actor), parseTime(at)
		out = append(out, n)
	}
	return out, rows.Err()
}

// =============================================================================
// ENCODING
// =============================================================================

// sheetDoc is the stored JSON form of a reconcile.Sheet. Empty strings
// are unset amounts.
type sheetDoc struct {
	Counted map[reconcile.Category]string `json:"counted"`
	System  map[reconcile.Category]string `json:"system"`

	OtherCredit    string `json:"otherCredit,omitempty"`
	Debit          string `json:"debit,omitempty"`
	UnleadedVolume string `json:"unleadedVolume,omitempty"`
	DieselVolume   string `json:"dieselVolume,omitempty"`

	Deposits []string `json:"deposits"`
	Notes    string   `json:"notes,omitempty"`

	HasMissingHardCopyData bool   `json:"hasMissingHardCopyData,omitempty"`
	MissingDataNotes       string `json:"missingDataNotes,omitempty"`
	OverShortExplained     bool   `json:"overShortExplained,omitempty"`
	OverShortExplanation   string `json:"overShortExplanation,omitempty"`
}

func encodeShiftDocs(sh shift.Shift) (string, string, error) {
	sheetJSON, err := json.Marshal(encodeSheet(sh.Sheet))
	if err != nil {
		return "", "", fmt.Errorf("failed to encode sheet: %w", err)
	}
	urls := sh.DocumentURLs
	if urls == nil {
		urls = []string{}
	}
	urlsJSON, err := json.Marshal(urls)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode document urls: %w", err)
	}
	return string(sheetJSON), string(urlsJSON), nil
}

func encodeSheet(s reconcile.Sheet) sheetDoc {
	doc := sheetDoc{
		Counted:                make(map[reconcile.Category]string),
		System:                 make(map[reconcile.Category]string),
		OtherCredit:            generic.SerializeOptional(s.OtherCredit),
		Debit:                  generic.SerializeOptional(s.Debit),
		UnleadedVolume:         generic.SerializeOptional(s.UnleadedVolume),
		DieselVolume:           generic.SerializeOptional(s.DieselVolume),
		Deposits:               make([]string, len(s.Deposits)),
		Notes:                  s.Notes,
		HasMissingHardCopyData: s.HasMissingHardCopyData,
		MissingDataNotes:       s.MissingDataNotes,
		OverShortExplained:     s.OverShortExplained,
		OverShortExplanation:   s.OverShortExplanation,
	}
	for _, c := range reconcile.Categories {
		p := s.Pair(c)
		if p.Counted != nil {
			doc.Counted[c] = p.Counted.String()
		}
		if p.System != nil {
			doc.System[c] = p.System.String()
		}
	}
	for i, d := range s.Deposits {
		doc.Deposits[i] = d.String()
	}
	return doc
}

func decodeSheet(raw string) (reconcile.Sheet, error) {
	var doc sheetDoc
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return reconcile.Sheet{}, fmt.Errorf("bad sheet document: %w", err)
	}

	var s reconcile.Sheet
	var err error
	for _, c := range reconcile.Categories {
		var p reconcile.Pair
		if p.Counted, err = optionalAmount(doc.Counted[c], generic.UnitCurrency); err != nil {
			return s, err
		}
		if p.System, err = optionalAmount(doc.System[c], generic.UnitCurrency); err != nil {
			return s, err
		}
		s.SetPair(c, p)
	}
	if s.OtherCredit, err = optionalAmount(doc.OtherCredit, generic.UnitCurrency); err != nil {
		return s, err
	}
	if s.Debit, err = optionalAmount(doc.Debit, generic.UnitCurrency); err != nil {
		return s, err
	}
	if s.UnleadedVolume, err = optionalAmount(doc.UnleadedVolume, generic.UnitLitres); err != nil {
		return s, err
	}
	if s.DieselVolume, err = optionalAmount(doc.DieselVolume, generic.UnitLitres); err != nil {
		return s, err
	}
	for _, d := range doc.Deposits {
		a, err := generic.ParseAmount(d, generic.UnitCurrency)
		if err != nil {
			return s, err
		}
		s.Deposits = append(s.Deposits, a)
	}
	s.Notes = doc.Notes
	s.HasMissingHardCopyData = doc.HasMissingHardCopyData
	s.MissingDataNotes = doc.MissingDataNotes
	s.OverShortExplained = doc.OverShortExplained
	s.OverShortExplanation = doc.OverShortExplanation
	return s, nil
}

func optionalAmount(s string, unit generic.Unit) (*generic.Amount, error) {
	if s == "" {
		return nil, nil
	}
	a, err := generic.ParseAmount(s, unit)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func nullAmount(a *generic.Amount) sql.NullString {
	if a == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: a.String(), Valid: true}
}

func parseNullAmount(ns sql.NullString) (*generic.Amount, error) {
	if !ns.Valid {
		return nil, nil
	}
	return optionalAmount(ns.String, generic.UnitCurrency)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(TimeLayout, s)
	return t
}
