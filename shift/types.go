/*
Package shift implements the shift lifecycle: the persisted Shift record,
its status state machine, and the Manager that orchestrates every mutation.

STATE MACHINE:

	          create(draft)            create(closed)
	               |                         |
	               v        close            v
	            draft  --------------->  closed | reviewed
	                                         |        ^
	                                  reopen |        | re-close
	                                         v        |
	                                       reopened --+

  closed vs reviewed is never chosen by the caller: closing (or re-closing)
  evaluates the sheet and lands on reviewed only when it is fully reviewed.

EDITABILITY:
  draft     everything, unaudited
  reopened  everything except date and label, every change audited
  closed    notes (via Note History) and document URLs only
  reviewed  same as closed

SEE ALSO:
  - manager.go: Transition and audit rules
  - store.go: Persistence contracts
  - reconcile/calculator.go: Close and review gates
*/
package shift

import (
	"time"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/reconcile"
)

// =============================================================================
// STATUS
// =============================================================================

type Status string

const (
	StatusDraft    Status = "draft"
	StatusClosed   Status = "closed"
	StatusReviewed Status = "reviewed"
	StatusReopened Status = "reopened"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusClosed, StatusReviewed, StatusReopened:
		return true
	}
	return false
}

// Editable reports whether sheet fields and items may change.
func (s Status) Editable() bool { return s == StatusDraft || s == StatusReopened }

// Audited reports whether changes in this status produce corrections.
func (s Status) Audited() bool { return s != StatusDraft }

// Finalized is closed or reviewed.
func (s Status) Finalized() bool { return s == StatusClosed || s == StatusReviewed }

// =============================================================================
// LABEL - Fixed set of shift periods
// =============================================================================

type Label string

const (
	LabelMorning Label = "6-1"
	LabelEvening Label = "1-9"
	LabelNight   Label = "9-6"
)

var Labels = []Label{LabelMorning, LabelEvening, LabelNight}

// Period is the label's position within its day (morning first), or -1
// for an unknown label.
func (l Label) Period() int {
	for i, known := range Labels {
		if l == known {
			return i
		}
	}
	return -1
}

func (l Label) Valid() bool {
	for _, known := range Labels {
		if l == known {
			return true
		}
	}
	return false
}

// Field names of the identity fields.
const (
	FieldDate       = "date"
	FieldLabel      = "shiftLabel"
	FieldSupervisor = "supervisor"
	FieldStatus     = "status"
)

// =============================================================================
// SHIFT
// =============================================================================

type Shift struct {
	ID         generic.ShiftID
	Date       generic.Date
	Label      Label
	Supervisor string

	Sheet reconcile.Sheet

	// DocumentURLs point at scanned paperwork. Opaque to the engine.
	DocumentURLs []string

	Status Status

	// Version increments on every write; patches may assert it.
	Version int64

	CreatedBy generic.Actor
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuditFields is the serialized snapshot diffed into corrections. Notes
// are excluded; they have their own history stream.
func (s Shift) AuditFields() []generic.FieldValue {
	fields := []generic.FieldValue{
		generic.ScalarField(FieldDate, s.Date.String()),
		generic.ScalarField(FieldLabel, string(s.Label)),
		generic.ScalarField(FieldSupervisor, s.Supervisor),
	}
	for _, f := range s.Sheet.Fields() {
		if f.Name == reconcile.FieldNotes {
			continue
		}
		fields = append(fields, f)
	}
	return fields
}

func (s Shift) clone() Shift {
	out := s
	out.Sheet.Deposits = append([]generic.Amount(nil), s.Sheet.Deposits...)
	out.DocumentURLs = append([]string(nil), s.DocumentURLs...)
	return out
}

// =============================================================================
// INPUTS
// =============================================================================

// CreateInput is everything a supervisor submits for a new shift. Status
// must be draft (default) or closed.
type CreateInput struct {
	Date         generic.Date
	Label        Label
	Supervisor   string
	Sheet        reconcile.Sheet
	DocumentURLs []string
	Status       Status
}

// AmountField is a patch slot for a nullable amount: Set marks presence,
// a nil Value clears the field.
type AmountField struct {
	Set   bool
	Value *generic.Amount
}

func SetAmount(a *generic.Amount) AmountField { return AmountField{Set: true, Value: a} }

// SheetPatch carries the sheet fields a patch touches. Absent fields keep
// their stored value.
type SheetPatch struct {
	Counted map[reconcile.Category]AmountField
	System  map[reconcile.Category]AmountField

	OtherCredit    AmountField
	Debit          AmountField
	UnleadedVolume AmountField
	DieselVolume   AmountField

	Deposits *[]generic.Amount
	Notes    *string

	HasMissingHardCopyData *bool
	MissingDataNotes       *string
	OverShortExplained     *bool
	OverShortExplanation   *string
}

// Apply returns sheet with the patch applied.
func (p SheetPatch) Apply(sheet reconcile.Sheet) reconcile.Sheet {
	out := sheet
	for _, c := range reconcile.Categories {
		pair := out.Pair(c)
		if f, ok := p.Counted[c]; ok && f.Set {
			pair.Counted = f.Value
		}
		if f, ok := p.System[c]; ok && f.Set {
			pair.System = f.Value
		}
		out.SetPair(c, pair)
	}
	applyAmount(&out.OtherCredit, p.OtherCredit)
	applyAmount(&out.Debit, p.Debit)
	applyAmount(&out.UnleadedVolume, p.UnleadedVolume)
	applyAmount(&out.DieselVolume, p.DieselVolume)
	if p.Deposits != nil {
		out.Deposits = append([]generic.Amount(nil), (*p.Deposits)...)
	}
	if p.Notes != nil {
		out.Notes = *p.Notes
	}
	if p.HasMissingHardCopyData != nil {
		out.HasMissingHardCopyData = *p.HasMissingHardCopyData
	}
	if p.MissingDataNotes != nil {
		out.MissingDataNotes = *p.MissingDataNotes
	}
	if p.OverShortExplained != nil {
		out.OverShortExplained = *p.OverShortExplained
	}
	if p.OverShortExplanation != nil {
		out.OverShortExplanation = *p.OverShortExplanation
	}
	return out
}

// TouchesNumbers reports whether the patch edits anything other than notes.
func (p SheetPatch) TouchesNumbers() bool {
	for _, f := range p.Counted {
		if f.Set {
			return true
		}
	}
	for _, f := range p.System {
		if f.Set {
			return true
		}
	}
	return p.OtherCredit.Set || p.Debit.Set || p.UnleadedVolume.Set || p.DieselVolume.Set ||
		p.Deposits != nil || p.HasMissingHardCopyData != nil || p.MissingDataNotes != nil ||
		p.OverShortExplained != nil || p.OverShortExplanation != nil
}

func applyAmount(dst **generic.Amount, f AmountField) {
	if f.Set {
		*dst = f.Value
	}
}

// Patch is a partial update. Nil fields are left alone.
type Patch struct {
	Date         *generic.Date
	Label        *Label
	Supervisor   *string
	Sheet        SheetPatch
	DocumentURLs *[]string

	// Status requests a transition; nil keeps the current status.
	Status *Status

	// ExpectedVersion rejects the patch when the stored version differs.
	ExpectedVersion *int64

	// Reason is attached to every correction the patch produces.
	Reason string
}

// ListFilter narrows List. Zero values match everything.
type ListFilter struct {
	From        *generic.Date
	To          *generic.Date
	Status      Status
	RedFlagOnly bool
}

// =============================================================================
// READ MODELS
// =============================================================================

// View is a shift with everything derived from it.
type View struct {
	Shift          Shift
	Close          reconcile.CloseResult
	Items          []activity.Item
	NetOverShort   generic.Amount
	FullyExplained bool
	FullyReviewed  bool
	MissingFields  []string
	RequiresNotes  bool
	Corrections    []generic.Correction
	NoteHistory    []generic.NoteChange
}

// Summary is a list row: the shift plus its close figures.
type Summary struct {
	Shift Shift
	Close reconcile.CloseResult
}

type History struct {
	Corrections []generic.Correction
	NoteHistory []generic.NoteChange
}
