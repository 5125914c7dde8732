/*
audit.go - Append-only audit trail for shift corrections and note edits

PURPOSE:
  Every change to a persisted (non-draft) shift is explained here. The
  shift record only holds current values; the audit trail holds how it
  got there. Two independent streams exist:

    Corrections:  one row per changed field (old value, new value, actor)
    Note history: one row per edit of the free-text notes field

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete. EVER. The AuditLog interface
     exposes no such operation, so no caller can rewrite history.
  2. SERIALIZED VALUES: Old and new values are strings, so any field type
     (amounts, booleans, dates, list elements) shares one schema.
  3. INDEPENDENT: Rows reference a shift by id but are not owned by it;
     history survives later edits to the shift.

READ ORDER:
  Stores return rows in insertion order. AuditTrail reads return them
  newest first.

EXAMPLE:
  trail := generic.NewAuditTrail(store)
  changes := generic.Diff(beforeFields, afterFields)
  trail.RecordChanges(ctx, shiftID, changes, "sup-7", "")

SEE ALSO:
  - diff.go: Computes the FieldChange set
  - shift/manager.go: Emits corrections on non-draft updates
*/
package generic

import (
	"context"
	"sort"
	"time"
)

// =============================================================================
// AUDIT RECORDS
// =============================================================================

// Correction is one field-level change to a non-draft shift.
type Correction struct {
	ID       AuditID
	ShiftID  ShiftID
	Field    string
	OldValue string
	NewValue string
	Reason   string
	Actor    Actor
	At       time.Time
}

// NoteChange is one edit of a shift's notes outside draft state.
type NoteChange struct {
	ID      AuditID
	ShiftID ShiftID
	OldNote string
	NewNote string
	Actor   Actor
	At      time.Time
}

// =============================================================================
// AUDIT LOG - Storage contract (append-only)
// =============================================================================

// AuditLog persists both audit streams.
//
// INVARIANTS:
//   - Append-only: there is no update or delete method.
//   - Loads return rows in insertion order.
type AuditLog interface {
	// AppendCorrections persists corrections atomically.
	AppendCorrections(ctx context.Context, corrections []Correction) error

	AppendNoteChange(ctx context.Context, change NoteChange) error

	LoadCorrections(ctx context.Context, shiftID ShiftID) ([]Correction, error)

	LoadNoteHistory(ctx context.Context, shiftID ShiftID) ([]NoteChange, error)
}

// =============================================================================
// AUDIT TRAIL - Recording and reading history
// =============================================================================

type AuditTrail struct {
	Log AuditLog
	Now func() time.Time
}

func NewAuditTrail(log AuditLog) *AuditTrail {
	return &AuditTrail{Log: log, Now: func() time.Time { return time.Now().UTC() }}
}

// RecordCorrection appends a single correction.
func (t *AuditTrail) RecordCorrection(ctx context.Context, shiftID ShiftID, field, oldValue, newValue string, actor Actor, reason string) (Correction, error) {
	c := Correction{
		ID:       AuditID(NewID("cor")),
		ShiftID:  shiftID,
		Field:    field,
		OldValue: oldValue,
		NewValue: newValue,
		Reason:   reason,
		Actor:    actor,
		At:       t.Now(),
	}
	if err := t.Log.AppendCorrections(ctx, []Correction{c}); err != nil {
		return Correction{}, err
	}
	return c, nil
}

// RecordChanges appends one correction per change, all with the same
// timestamp and reason. An empty change set writes nothing.
func (t *AuditTrail) RecordChanges(ctx context.Context, shiftID ShiftID, changes []FieldChange, actor Actor, reason string) ([]Correction, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	at := t.Now()
	corrections := make([]Correction, len(changes))
	for i, ch := range changes {
		corrections[i] = Correction{
			ID:       AuditID(NewID("cor")),
			ShiftID:  shiftID,
			Field:    ch.Field,
			OldValue: ch.OldValue,
			NewValue: ch.NewValue,
			Reason:   reason,
			Actor:    actor,
			At:       at,
		}
	}
	if err := t.Log.AppendCorrections(ctx, corrections); err != nil {
		return nil, err
	}
	return corrections, nil
}

// RecordNoteChange appends a note history entry. Returns nil when the
// note text did not actually change.
func (t *AuditTrail) RecordNoteChange(ctx context.Context, shiftID ShiftID, oldNote, newNote string, actor Actor) (*NoteChange, error) {
	if oldNote == newNote {
		return nil, nil
	}
	nc := NoteChange{
		ID:      AuditID(NewID("note")),
		ShiftID: shiftID,
		OldNote: oldNote,
		NewNote: newNote,
		Actor:   actor,
		At:      t.Now(),
	}
	if err := t.Log.AppendNoteChange(ctx, nc); err != nil {
		return nil, err
	}
	return &nc, nil
}

// Corrections returns a shift's corrections, newest first.
func (t *AuditTrail) Corrections(ctx context.Context, shiftID ShiftID) ([]Correction, error) {
	rows, err := t.Log.LoadCorrections(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	reverse(rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
	return rows, nil
}

// NoteHistory returns a shift's note edits, newest first.
func (t *AuditTrail) NoteHistory(ctx context.Context, shiftID ShiftID) ([]NoteChange, error) {
	rows, err := t.Log.LoadNoteHistory(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	reverse(rows)
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].At.After(rows[j].At) })
	return rows, nil
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}
