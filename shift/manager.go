/*
manager.go - Shift lifecycle orchestration

PURPOSE:
  Every mutation of a shift goes through the Manager. It enforces the
  transition table, field editability and (date, label) uniqueness, and
  emits the audit streams. Each mutation is one store transaction: either
  the shift, its corrections and its note history are all written, or
  nothing is.

TRANSITIONS:
  | From            | Action    | To                 | Gate                        |
  |-----------------|-----------|--------------------|-----------------------------|
  | (none)          | create    | draft              | none                        |
  | (none)          | create    | closed | reviewed  | CanClose; IsFullyReviewed   |
  | draft           | save      | draft              | none                        |
  | draft           | close     | closed | reviewed  | CanClose; IsFullyReviewed   |
  | closed|reviewed | reopen    | reopened           | none; date/label now locked |
  | reopened        | save      | reopened           | date/label unchanged        |
  | reopened        | re-close  | closed | reviewed  | CanClose; IsFullyReviewed   |

AUDIT:
  Updates to a shift whose stored status is not draft diff the serialized
  fields before and after and write one Correction per changed field,
  including "status" on transitions. Notes never produce corrections; a
  changed note outside draft writes one Note History entry instead.

  reopened shift, countCash 500 -> 510:
    Correction{Field: "countCash", OldValue: "500", NewValue: "510"}

CONCURRENCY:
  Every write bumps Shift.Version. A patch carrying ExpectedVersion is
  rejected with a stale_version conflict when it no longer matches.

SEE ALSO:
  - types.go: Status, Patch, View
  - reconcile/calculator.go: Gates
  - generic/audit.go: AuditTrail
*/
package shift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/reconcile"
)

// =============================================================================
// OBSERVER - Metrics hook
// =============================================================================

// Observer is notified after each committed mutation and each rejection.
type Observer interface {
	Transitioned(from, to Status)
	CorrectionsRecorded(n int)
	ItemAdded(kind activity.Kind)
	ItemDeleted()
	Rejected(op string, err error)
}

type nopObserver struct{}

func (nopObserver) Transitioned(Status, Status) {}
func (nopObserver) CorrectionsRecorded(int)     {}
func (nopObserver) ItemAdded(activity.Kind)     {}
func (nopObserver) ItemDeleted()                {}
func (nopObserver) Rejected(string, error)      {}

// =============================================================================
// MANAGER
// =============================================================================

type Manager struct {
	Store      TxStore
	Calculator reconcile.Calculator
	Logger     *zap.Logger
	Observer   Observer
	Now        func() time.Time
}

type Option func(*Manager)

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.Logger = l }
}

func WithObserver(o Observer) Option {
	return func(m *Manager) { m.Observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.Now = now }
}

func NewManager(store TxStore, calc reconcile.Calculator, opts ...Option) *Manager {
	m := &Manager{
		Store:      store,
		Calculator: calc,
		Logger:     zap.NewNop(),
		Observer:   nopObserver{},
		Now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) ledger(s activity.Store) *activity.Ledger {
	l := activity.NewLedger(s)
	l.Now = m.Now
	return l
}

func (m *Manager) trail(log generic.AuditLog) *generic.AuditTrail {
	t := generic.NewAuditTrail(log)
	t.Now = m.Now
	return t
}

// =============================================================================
// CREATE
// =============================================================================

// Create persists a new shift as draft, or as closed when the sheet passes
// CanClose (landing on reviewed when it is already fully reviewed).
func (m *Manager) Create(ctx context.Context, in CreateInput, actor generic.Actor) (View, error) {
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if err := validateCreate(in); err != nil {
		return View{}, m.reject("create", "", err)
	}

	status := StatusDraft
	if in.Status == StatusClosed {
		if err := m.Calculator.CanClose(in.Sheet).Err(); err != nil {
			return View{}, m.reject("create", "", err)
		}
		status = m.settle(in.Sheet, nil)
	}

	now := m.Now()
	s := Shift{
		ID:           generic.ShiftID(generic.NewID("shf")),
		Date:         in.Date,
		Label:        in.Label,
		Supervisor:   in.Supervisor,
		Sheet:        in.Sheet,
		DocumentURLs: append([]string(nil), in.DocumentURLs...),
		Status:       status,
		Version:      1,
		CreatedBy:    actor,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := m.Store.WithTx(ctx, func(tx Store) error {
		existing, err := tx.FindShift(ctx, s.Date, s.Label)
		if err != nil {
			return err
		}
		if existing != nil {
			return duplicateShift(s.Date, s.Label, nil)
		}
		return translateStoreError(tx.CreateShift(ctx, s), s)
	})
	if err != nil {
		return View{}, m.reject("create", s.ID, err)
	}

	m.Observer.Transitioned("", s.Status)
	m.Logger.Info("shift created",
		zap.String("shift_id", string(s.ID)),
		zap.String("date", s.Date.String()),
		zap.String("label", string(s.Label)),
		zap.String("status", string(s.Status)),
		zap.String("actor", string(actor)),
	)
	return m.Get(ctx, s.ID)
}

func validateCreate(in CreateInput) error {
	var fields []string
	if in.Date.IsZero() {
		fields = append(fields, FieldDate)
	}
	if !in.Label.Valid() {
		fields = append(fields, FieldLabel)
	}
	if in.Status != StatusDraft && in.Status != StatusClosed {
		fields = append(fields, FieldStatus)
	}
	if len(fields) > 0 {
		return &generic.ValidationError{Fields: fields, Message: "invalid shift"}
	}
	return reconcile.ValidateDeposits(in.Sheet)
}

// =============================================================================
// UPDATE - Patch and explicit lifecycle actions
// =============================================================================

// mutation computes the next state of a loaded shift.
type mutation func(ctx context.Context, tx Store, current Shift, items []activity.Item) (Shift, error)

// Patch applies a partial update, optionally with a status transition.
func (m *Manager) Patch(ctx context.Context, id generic.ShiftID, p Patch, actor generic.Actor) (View, error) {
	return m.update(ctx, "patch", id, actor, p.ExpectedVersion, p.Reason, func(ctx context.Context, tx Store, current Shift, items []activity.Item) (Shift, error) {
		return m.applyPatch(ctx, tx, current, items, p)
	})
}

// Close moves a draft or reopened shift to closed or reviewed.
func (m *Manager) Close(ctx context.Context, id generic.ShiftID, actor generic.Actor) (View, error) {
	return m.update(ctx, "close", id, actor, nil, "", func(_ context.Context, _ Store, current Shift, items []activity.Item) (Shift, error) {
		if !current.Status.Editable() {
			return Shift{}, invalidTransition(current.Status, StatusClosed)
		}
		return m.transitioned(current, StatusClosed, items)
	})
}

// Reclose is Close restricted to reopened shifts.
func (m *Manager) Reclose(ctx context.Context, id generic.ShiftID, actor generic.Actor) (View, error) {
	return m.update(ctx, "reclose", id, actor, nil, "", func(_ context.Context, _ Store, current Shift, items []activity.Item) (Shift, error) {
		if current.Status != StatusReopened {
			return Shift{}, invalidTransition(current.Status, StatusClosed)
		}
		return m.transitioned(current, StatusClosed, items)
	})
}

// Reopen makes a closed or reviewed shift editable again. The reason is
// recorded on the status correction.
func (m *Manager) Reopen(ctx context.Context, id generic.ShiftID, reason string, actor generic.Actor) (View, error) {
	return m.update(ctx, "reopen", id, actor, nil, reason, func(_ context.Context, _ Store, current Shift, items []activity.Item) (Shift, error) {
		if !current.Status.Finalized() {
			return Shift{}, invalidTransition(current.Status, StatusReopened)
		}
		return m.transitioned(current, StatusReopened, items)
	})
}

// EditNotes replaces the notes in any status. Outside draft the change
// lands in Note History.
func (m *Manager) EditNotes(ctx context.Context, id generic.ShiftID, notes string, actor generic.Actor) (View, error) {
	return m.update(ctx, "notes", id, actor, nil, "", func(_ context.Context, _ Store, current Shift, _ []activity.Item) (Shift, error) {
		next := current.clone()
		next.Sheet.Notes = notes
		return next, nil
	})
}

func (m *Manager) update(ctx context.Context, op string, id generic.ShiftID, actor generic.Actor, expectedVersion *int64, reason string, fn mutation) (View, error) {
	var before, after Shift
	var corrections int

	err := m.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != current.Version {
			return generic.WrapConflict(generic.ConflictStaleVersion, generic.ErrConcurrentModification,
				fmt.Sprintf("shift %s is at version %d, not %d", id, current.Version, *expectedVersion))
		}
		items, err := tx.LoadItems(ctx, id)
		if err != nil {
			return err
		}

		next, err := fn(ctx, tx, current, items)
		if err != nil {
			return err
		}

		if current.Status.Audited() {
			n, err := m.audit(ctx, tx, current, next, actor, reason)
			if err != nil {
				return err
			}
			corrections = n
		}

		next.Version = current.Version + 1
		next.UpdatedAt = m.Now()
		if err := translateStoreError(tx.UpdateShift(ctx, next, current.Version), next); err != nil {
			return err
		}
		before, after = current, next
		return nil
	})
	if err != nil {
		return View{}, m.reject(op, id, err)
	}

	if before.Status != after.Status {
		m.Observer.Transitioned(before.Status, after.Status)
	}
	if corrections > 0 {
		m.Observer.CorrectionsRecorded(corrections)
	}
	m.Logger.Info("shift updated",
		zap.String("op", op),
		zap.String("shift_id", string(id)),
		zap.String("from", string(before.Status)),
		zap.String("to", string(after.Status)),
		zap.Int64("version", after.Version),
		zap.Int("corrections", corrections),
		zap.String("actor", string(actor)),
	)
	return m.Get(ctx, id)
}

// audit writes one correction per changed field and a note history entry
// when the notes changed. Returns the number of corrections written.
func (m *Manager) audit(ctx context.Context, tx Store, before, after Shift, actor generic.Actor, reason string) (int, error) {
	changes := generic.Diff(before.AuditFields(), after.AuditFields())
	if before.Status != after.Status {
		changes = append(changes, generic.FieldChange{
			Field:    FieldStatus,
			OldValue: string(before.Status),
			NewValue: string(after.Status),
		})
	}

	trail := m.trail(tx)
	recorded, err := trail.RecordChanges(ctx, before.ID, changes, actor, reason)
	if err != nil {
		return 0, fmt.Errorf("failed to record corrections: %w", err)
	}
	if _, err := trail.RecordNoteChange(ctx, before.ID, before.Sheet.Notes, after.Sheet.Notes, actor); err != nil {
		return 0, fmt.Errorf("failed to record note change: %w", err)
	}
	return len(recorded), nil
}

func (m *Manager) applyPatch(ctx context.Context, tx Store, current Shift, items []activity.Item, p Patch) (Shift, error) {
	from := current.Status
	to := from
	if p.Status != nil {
		to = *p.Status
		if !to.Valid() {
			return Shift{}, generic.NewValidationError(FieldStatus, "unknown status "+string(to))
		}
	}

	// A reopen in the same patch makes the edits reopened edits.
	editStatus := from
	if from.Finalized() && to == StatusReopened {
		editStatus = StatusReopened
	}

	next := current.clone()

	if p.Date != nil && !p.Date.Equal(current.Date) {
		if err := identityEditable(editStatus, FieldDate); err != nil {
			return Shift{}, err
		}
		next.Date = *p.Date
	}
	if p.Label != nil && *p.Label != current.Label {
		if err := identityEditable(editStatus, FieldLabel); err != nil {
			return Shift{}, err
		}
		if !p.Label.Valid() {
			return Shift{}, generic.NewValidationError(FieldLabel, "unknown shift label "+string(*p.Label))
		}
		next.Label = *p.Label
	}
	if p.Supervisor != nil && *p.Supervisor != current.Supervisor {
		if !editStatus.Editable() {
			return Shift{}, notEditable(current, FieldSupervisor)
		}
		next.Supervisor = *p.Supervisor
	}
	if p.Sheet.TouchesNumbers() && !editStatus.Editable() {
		return Shift{}, notEditable(current, "sheet")
	}
	next.Sheet = p.Sheet.Apply(current.Sheet)
	if err := reconcile.ValidateDeposits(next.Sheet); err != nil {
		return Shift{}, err
	}
	if p.DocumentURLs != nil {
		next.DocumentURLs = append([]string(nil), (*p.DocumentURLs)...)
	}

	if !next.Date.Equal(current.Date) || next.Label != current.Label {
		existing, err := tx.FindShift(ctx, next.Date, next.Label)
		if err != nil {
			return Shift{}, err
		}
		if existing != nil && existing.ID != current.ID {
			return Shift{}, duplicateShift(next.Date, next.Label, nil)
		}
	}

	if to == from {
		return next, nil
	}
	if !allowed(from, to) {
		return Shift{}, invalidTransition(from, to)
	}
	return m.transitioned(next, to, items)
}

// allowed reports whether the transition table has an edge from -> to.
// Requesting reviewed is the same as requesting closed.
func allowed(from, to Status) bool {
	switch to {
	case StatusClosed, StatusReviewed:
		return from.Editable()
	case StatusReopened:
		return from.Finalized()
	}
	return false
}

// transitioned returns s moved toward the requested status, applying the
// close gates when the target is closed.
func (m *Manager) transitioned(s Shift, to Status, items []activity.Item) (Shift, error) {
	next := s.clone()
	switch to {
	case StatusClosed, StatusReviewed:
		if err := m.Calculator.CanClose(next.Sheet).Err(); err != nil {
			return Shift{}, err
		}
		next.Status = m.settle(next.Sheet, items)
	default:
		next.Status = to
	}
	return next, nil
}

// settle picks closed or reviewed for a closable sheet.
func (m *Manager) settle(sheet reconcile.Sheet, items []activity.Item) Status {
	if m.Calculator.IsFullyReviewed(sheet, reconcile.Entries(items)) {
		return StatusReviewed
	}
	return StatusClosed
}

// =============================================================================
// ACCOUNT ACTIVITY
// =============================================================================

// AddItem attaches an account activity item to a draft or reopened shift.
func (m *Manager) AddItem(ctx context.Context, id generic.ShiftID, spec activity.Spec, actor generic.Actor) (View, error) {
	var item activity.Item
	err := m.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.Editable() {
			return notEditable(current, "items")
		}
		item, err = m.ledger(tx).AddItem(ctx, id, current.Date, spec, actor)
		return err
	})
	if err != nil {
		return View{}, m.reject("add_item", id, err)
	}

	m.Observer.ItemAdded(item.Entry.Kind())
	m.Logger.Info("item added",
		zap.String("shift_id", string(id)),
		zap.String("item_id", string(item.ID)),
		zap.String("kind", string(item.Entry.Kind())),
		zap.String("amount", item.Entry.Amount().String()),
		zap.String("actor", string(actor)),
	)
	return m.Get(ctx, id)
}

// DeleteItem removes an item. An unknown item id is not an error; an
// unknown shift is.
func (m *Manager) DeleteItem(ctx context.Context, id generic.ShiftID, itemID generic.ItemID, actor generic.Actor) (View, error) {
	var existed bool
	err := m.Store.WithTx(ctx, func(tx Store) error {
		current, err := tx.GetShift(ctx, id)
		if err != nil {
			return err
		}
		if !current.Status.Editable() {
			return notEditable(current, "items")
		}
		existed, err = m.ledger(tx).DeleteItem(ctx, id, itemID)
		return err
	})
	if err != nil {
		return View{}, m.reject("delete_item", id, err)
	}

	if existed {
		m.Observer.ItemDeleted()
		m.Logger.Info("item deleted",
			zap.String("shift_id", string(id)),
			zap.String("item_id", string(itemID)),
			zap.String("actor", string(actor)),
		)
	}
	return m.Get(ctx, id)
}

// CustomerBalances is the carry-forward projection over every shift's items.
func (m *Manager) CustomerBalances(ctx context.Context) ([]activity.CustomerBalance, error) {
	return m.ledger(m.Store).CustomerBalances(ctx)
}

// =============================================================================
// READS
// =============================================================================

// Get returns the full view of a shift.
func (m *Manager) Get(ctx context.Context, id generic.ShiftID) (View, error) {
	s, err := m.Store.GetShift(ctx, id)
	if err != nil {
		return View{}, err
	}
	items, err := m.Store.LoadItems(ctx, id)
	if err != nil {
		return View{}, err
	}
	history, err := m.history(ctx, id)
	if err != nil {
		return View{}, err
	}

	ev := m.Calculator.Evaluate(s.Sheet, reconcile.Entries(items))
	return View{
		Shift:          s,
		Close:          ev.Close,
		Items:          items,
		NetOverShort:   ev.NetOverShort,
		FullyExplained: ev.FullyExplained,
		FullyReviewed:  ev.FullyReviewed,
		MissingFields:  ev.Check.MissingFields,
		RequiresNotes:  ev.Check.RequiresNotes,
		Corrections:    history.Corrections,
		NoteHistory:    history.NoteHistory,
	}, nil
}

// List returns shift summaries, newest date first.
func (m *Manager) List(ctx context.Context, filter ListFilter) ([]Summary, error) {
	shifts, err := m.Store.ListShifts(ctx, filter)
	if err != nil {
		return nil, err
	}
	summaries := make([]Summary, 0, len(shifts))
	for _, s := range shifts {
		closeResult := reconcile.ComputeClose(s.Sheet)
		if filter.RedFlagOnly && !closeResult.HasRedFlag {
			continue
		}
		summaries = append(summaries, Summary{Shift: s, Close: closeResult})
	}
	return summaries, nil
}

// History returns a shift's corrections and note history, newest first.
func (m *Manager) History(ctx context.Context, id generic.ShiftID) (History, error) {
	if _, err := m.Store.GetShift(ctx, id); err != nil {
		return History{}, err
	}
	return m.history(ctx, id)
}

func (m *Manager) history(ctx context.Context, id generic.ShiftID) (History, error) {
	trail := m.trail(m.Store)
	corrections, err := trail.Corrections(ctx, id)
	if err != nil {
		return History{}, err
	}
	notes, err := trail.NoteHistory(ctx, id)
	if err != nil {
		return History{}, err
	}
	return History{Corrections: corrections, NoteHistory: notes}, nil
}

// Preview evaluates a sheet and prospective items without persisting.
func (m *Manager) Preview(sheet reconcile.Sheet, specs []activity.Spec) (reconcile.Evaluation, error) {
	entries := make([]activity.Entry, 0, len(specs))
	for i, spec := range specs {
		e, err := activity.NewEntry(spec)
		if err != nil {
			return reconcile.Evaluation{}, fmt.Errorf("item %d: %w", i, err)
		}
		entries = append(entries, e)
	}
	if err := reconcile.ValidateDeposits(sheet); err != nil {
		return reconcile.Evaluation{}, err
	}
	return m.Calculator.Evaluate(sheet, entries), nil
}

// =============================================================================
// ERRORS
// =============================================================================

func (m *Manager) reject(op string, id generic.ShiftID, err error) error {
	m.Observer.Rejected(op, err)
	m.Logger.Debug("mutation rejected",
		zap.String("op", op),
		zap.String("shift_id", string(id)),
		zap.Error(err),
	)
	return err
}

func identityEditable(status Status, field string) error {
	switch status {
	case StatusDraft:
		return nil
	case StatusReopened:
		return generic.NewConflict(generic.ConflictImmutable, field, "date and shift label are locked once a shift has been closed")
	}
	return generic.NewConflict(generic.ConflictNotEditable, field, "shift is "+string(status)+"; reopen it to edit")
}

func notEditable(s Shift, field string) error {
	return generic.NewConflict(generic.ConflictNotEditable, field, "shift is "+string(s.Status)+"; reopen it to edit")
}

func invalidTransition(from, to Status) error {
	return generic.NewConflict(generic.ConflictTransition, FieldStatus, fmt.Sprintf("cannot move from %s to %s", from, to))
}

func duplicateShift(date generic.Date, label Label, cause error) error {
	if cause == nil {
		cause = generic.ErrDuplicateShift
	}
	return generic.WrapConflict(generic.ConflictDuplicate, cause,
		fmt.Sprintf("a %s shift already exists on %s", label, date))
}

// translateStoreError lifts store sentinels into conflict errors.
func translateStoreError(err error, s Shift) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, generic.ErrDuplicateShift):
		return duplicateShift(s.Date, s.Label, err)
	case errors.Is(err, generic.ErrConcurrentModification):
		return generic.WrapConflict(generic.ConflictStaleVersion, err, "shift was modified concurrently; reload and retry")
	}
	return err
}
