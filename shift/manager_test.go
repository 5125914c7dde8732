package shift_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/reconcile"
	"github.com/warp/shift-engine/shift"
	"github.com/warp/shift-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type recorder struct {
	transitions []string
	corrections int
	added       []activity.Kind
	deleted     int
	rejected    []string
}

func (r *recorder) Transitioned(from, to shift.Status) {
	r.transitions = append(r.transitions, string(from)+"->"+string(to))
}
func (r *recorder) CorrectionsRecorded(n int)    { r.corrections += n }
func (r *recorder) ItemAdded(kind activity.Kind) { r.added = append(r.added, kind) }
func (r *recorder) ItemDeleted()                 { r.deleted++ }
func (r *recorder) Rejected(op string, _ error)  { r.rejected = append(r.rejected, op) }

// steppingClock advances one second per call so every write has a
// distinct timestamp.
func steppingClock() func() time.Time {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

type fixture struct {
	mgr   *shift.Manager
	store *memory.Memory
	obs   *recorder
}

func newFixture() fixture {
	store := memory.New()
	obs := &recorder{}
	mgr := shift.NewManager(store, reconcile.New(reconcile.DefaultOptions()),
		shift.WithObserver(obs),
		shift.WithClock(steppingClock()),
	)
	return fixture{mgr: mgr, store: store, obs: obs}
}

func money(s string) *generic.Amount { return generic.Money(s).Ptr() }

func pair(counted, system string) reconcile.Pair {
	return reconcile.Pair{Counted: money(counted), System: money(system)}
}

// balancedSheet is complete and has a zero over/short.
func balancedSheet() reconcile.Sheet {
	return reconcile.Sheet{
		Cash:           pair("500", "500"),
		Checks:         pair("200", "200"),
		Credit:         pair("500", "500"),
		InHouse:        pair("0", "0"),
		Fleet:          pair("0", "0"),
		Voucher:        pair("0", "0"),
		UnleadedVolume: generic.Litres("1200").Ptr(),
		DieselVolume:   generic.Litres("300").Ptr(),
		Deposits:       []generic.Amount{generic.Money("300"), generic.Money("300"), generic.Money("200")},
	}
}

func input(date string, label shift.Label, status shift.Status, sheet reconcile.Sheet) shift.CreateInput {
	return shift.CreateInput{
		Date:       generic.MustParseDate(date),
		Label:      label,
		Supervisor: "dana",
		Sheet:      sheet,
		Status:     status,
	}
}

func (f fixture) create(t *testing.T, date string, label shift.Label, status shift.Status, sheet reconcile.Sheet) shift.View {
	t.Helper()
	v, err := f.mgr.Create(context.Background(), input(date, label, status, sheet), "sup-1")
	require.NoError(t, err)
	return v
}

func conflictReason(t *testing.T, err error) generic.ConflictReason {
	t.Helper()
	var ce *generic.ConflictError
	require.True(t, errors.As(err, &ce), "expected conflict, got %v", err)
	return ce.Reason
}

func statusPtr(s shift.Status) *shift.Status { return &s }
func strPtr(s string) *string                { return &s }

func withoutStatus(cs []generic.Correction) []generic.Correction {
	var out []generic.Correction
	for _, c := range cs {
		if c.Field != shift.FieldStatus {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_DraftAcceptsEmptySheet(t *testing.T) {
	f := newFixture()

	// GIVEN: A draft with nothing entered
	// WHEN: Creating it
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})

	// THEN: It is stored as draft, version 1, with everything missing
	assert.Equal(t, shift.StatusDraft, v.Shift.Status)
	assert.Equal(t, int64(1), v.Shift.Version)
	assert.Len(t, v.MissingFields, 15)
	assert.Empty(t, v.Corrections)
	assert.Equal(t, []string{"->draft"}, f.obs.transitions)
}

func TestCreate_ClosedBalancedLandsOnReviewed(t *testing.T) {
	f := newFixture()

	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())

	assert.Equal(t, shift.StatusReviewed, v.Shift.Status)
	assert.True(t, v.FullyExplained)
	assert.False(t, v.Close.HasRedFlag)
}

func TestCreate_ClosedWithUnexplainedOverShortStaysClosed(t *testing.T) {
	f := newFixture()
	sheet := balancedSheet()
	sheet.Cash = pair("510", "500")
	sheet.Notes = "counted twice"

	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, sheet)

	assert.Equal(t, shift.StatusClosed, v.Shift.Status)
	assert.True(t, v.Close.HasRedFlag)
	assert.Equal(t, "10", v.Close.OverShortTotal.String())
}

func TestCreate_ClosedRequiresNotesWhenUnbalanced(t *testing.T) {
	f := newFixture()
	sheet := balancedSheet()
	sheet.Checks = pair("190", "200")

	// WHEN: Closing at create without notes
	_, err := f.mgr.Create(context.Background(), input("2024-03-01", shift.LabelMorning, shift.StatusClosed, sheet), "sup-1")

	// THEN: Rejected with RequiresNotes and nothing stored
	var verr *generic.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.RequiresNotes)
	assert.Empty(t, verr.Fields)

	list, err := f.mgr.List(context.Background(), shift.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, []string{"create"}, f.obs.rejected)
}

func TestCreate_ClosedRequiresEveryField(t *testing.T) {
	f := newFixture()
	sheet := balancedSheet()
	sheet.Fleet.System = nil
	sheet.DieselVolume = nil

	_, err := f.mgr.Create(context.Background(), input("2024-03-01", shift.LabelMorning, shift.StatusClosed, sheet), "sup-1")

	var verr *generic.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"systemFleet", "dieselVolume"}, verr.Fields)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name   string
		in     shift.CreateInput
		fields []string
	}{
		{"unknown label", input("2024-03-01", "7-3", "", reconcile.Sheet{}), []string{"shiftLabel"}},
		{"no date", shift.CreateInput{Label: shift.LabelMorning}, []string{"date"}},
		{"reviewed at create", input("2024-03-01", shift.LabelMorning, shift.StatusReviewed, balancedSheet()), []string{"status"}},
		{"too many deposits", input("2024-03-01", shift.LabelMorning, "", reconcile.Sheet{Deposits: make([]generic.Amount, 7)}), []string{"deposits"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.mgr.Create(context.Background(), tt.in, "sup-1")

			var verr *generic.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.fields, verr.Fields)
		})
	}
}

func TestCreate_DuplicateDateAndLabel(t *testing.T) {
	f := newFixture()
	f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())

	// WHEN: Another shift claims the same slot, even as a draft
	_, err := f.mgr.Create(context.Background(), input("2024-03-01", shift.LabelMorning, "", reconcile.Sheet{}), "sup-2")

	// THEN: Conflict, not validation
	assert.True(t, generic.IsConflict(err))
	assert.Equal(t, generic.ConflictDuplicate, conflictReason(t, err))
	assert.ErrorIs(t, err, generic.ErrDuplicateShift)

	// AND: A different label is free
	f.create(t, "2024-03-01", shift.LabelEvening, "", reconcile.Sheet{})
}

// =============================================================================
// DRAFT EDITS
// =============================================================================

func TestPatch_DraftEditsAreNotAudited(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", balancedSheet())

	// WHEN: Changing numbers, supervisor and date on a draft
	newDate := generic.MustParseDate("2024-03-02")
	v, err := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{
		Date:       &newDate,
		Supervisor: strPtr("lee"),
		Sheet: shift.SheetPatch{
			Counted: map[reconcile.Category]shift.AmountField{reconcile.Cash: shift.SetAmount(money("505"))},
			Notes:   strPtr("recount pending"),
		},
	}, "sup-1")
	require.NoError(t, err)

	// THEN: Everything applied, nothing audited, version bumped
	assert.Equal(t, "2024-03-02", v.Shift.Date.String())
	assert.Equal(t, "lee", v.Shift.Supervisor)
	assert.Equal(t, "505", v.Shift.Sheet.Cash.Counted.String())
	assert.Equal(t, int64(2), v.Shift.Version)
	assert.Empty(t, v.Corrections)
	assert.Empty(t, v.NoteHistory)
}

func TestPatch_ClearingAnAmount(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", balancedSheet())

	v, err := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{
		Sheet: shift.SheetPatch{DieselVolume: shift.SetAmount(nil)},
	}, "sup-1")
	require.NoError(t, err)

	assert.Nil(t, v.Shift.Sheet.DieselVolume)
	assert.Contains(t, v.MissingFields, "dieselVolume")
}

func TestPatch_DraftDateOntoTakenSlot(t *testing.T) {
	f := newFixture()
	f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})
	other := f.create(t, "2024-03-02", shift.LabelMorning, "", reconcile.Sheet{})

	taken := generic.MustParseDate("2024-03-01")
	_, err := f.mgr.Patch(context.Background(), other.Shift.ID, shift.Patch{Date: &taken}, "sup-1")

	assert.Equal(t, generic.ConflictDuplicate, conflictReason(t, err))
}

func TestPatch_CloseFromDraftRejectedWhenIncomplete(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})

	// WHEN: Requesting close alongside an edit
	_, err := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{
		Supervisor: strPtr("lee"),
		Status:     statusPtr(shift.StatusClosed),
	}, "sup-1")

	// THEN: Validation error and the edit did not land either
	assert.True(t, generic.IsClientError(err))
	got, err := f.mgr.Get(context.Background(), v.Shift.ID)
	require.NoError(t, err)
	assert.Equal(t, "dana", got.Shift.Supervisor)
	assert.Equal(t, int64(1), got.Shift.Version)
}

func TestPatch_RequestingReviewedStillEvaluates(t *testing.T) {
	f := newFixture()
	sheet := balancedSheet()
	sheet.Cash = pair("530", "500")
	sheet.Notes = "over by thirty"
	sheet.OverShortExplained = true
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", sheet)

	// WHEN: Asking for reviewed on a shift 30 over with no items
	v, err := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{Status: statusPtr(shift.StatusReviewed)}, "sup-1")
	require.NoError(t, err)

	// THEN: It lands on closed; the threshold decides, not the caller
	assert.Equal(t, shift.StatusClosed, v.Shift.Status)
	assert.False(t, v.FullyReviewed)
}

func TestPatch_StaleVersion(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})
	version := v.Shift.Version

	// GIVEN: One writer saves against version 1
	_, err := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{Supervisor: strPtr("lee"), ExpectedVersion: &version}, "sup-1")
	require.NoError(t, err)

	// WHEN: A second writer also based on version 1 saves
	_, err = f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{Supervisor: strPtr("kim"), ExpectedVersion: &version}, "sup-2")

	// THEN: stale_version conflict, and the first write stands
	assert.Equal(t, generic.ConflictStaleVersion, conflictReason(t, err))
	assert.True(t, generic.IsRetryable(err))
	got, err := f.mgr.Get(context.Background(), v.Shift.ID)
	require.NoError(t, err)
	assert.Equal(t, "lee", got.Shift.Supervisor)
}

func TestPatch_UnknownShift(t *testing.T) {
	f := newFixture()

	_, err := f.mgr.Patch(context.Background(), "shf-missing", shift.Patch{Supervisor: strPtr("x")}, "sup-1")

	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// CLOSED AND REOPENED
// =============================================================================

func TestClosed_OnlyNotesAndDocumentsEditable(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())
	ctx := context.Background()

	// WHEN: Editing numbers, identity or supervisor on a finalized shift
	_, numbersErr := f.mgr.Patch(ctx, v.Shift.ID, shift.Patch{Sheet: shift.SheetPatch{Deposits: &[]generic.Amount{generic.Money("1")}}}, "sup-1")
	newDate := generic.MustParseDate("2024-03-09")
	_, dateErr := f.mgr.Patch(ctx, v.Shift.ID, shift.Patch{Date: &newDate}, "sup-1")
	_, supervisorErr := f.mgr.Patch(ctx, v.Shift.ID, shift.Patch{Supervisor: strPtr("lee")}, "sup-1")

	// THEN: All not_editable
	assert.Equal(t, generic.ConflictNotEditable, conflictReason(t, numbersErr))
	assert.Equal(t, generic.ConflictNotEditable, conflictReason(t, dateErr))
	assert.Equal(t, generic.ConflictNotEditable, conflictReason(t, supervisorErr))

	// AND: Document URLs are accepted
	urls := []string{"https://docs.example/slip.png"}
	v, err := f.mgr.Patch(ctx, v.Shift.ID, shift.Patch{DocumentURLs: &urls}, "sup-1")
	require.NoError(t, err)
	assert.Equal(t, urls, v.Shift.DocumentURLs)
	assert.Equal(t, shift.StatusReviewed, v.Shift.Status)
}

func TestEditNotes_ClosedShiftWritesNoteHistory(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())

	// WHEN: Editing notes twice after close
	_, err := f.mgr.EditNotes(context.Background(), v.Shift.ID, "called the bank", "sup-2")
	require.NoError(t, err)
	v, err = f.mgr.EditNotes(context.Background(), v.Shift.ID, "bank confirmed", "sup-3")
	require.NoError(t, err)

	// THEN: Two note history entries, newest first, and no corrections
	require.Len(t, v.NoteHistory, 2)
	assert.Equal(t, "called the bank", v.NoteHistory[0].OldNote)
	assert.Equal(t, "bank confirmed", v.NoteHistory[0].NewNote)
	assert.Equal(t, generic.Actor("sup-3"), v.NoteHistory[0].Actor)
	assert.Equal(t, "", v.NoteHistory[1].OldNote)
	assert.Empty(t, v.Corrections)
	assert.Equal(t, "bank confirmed", v.Shift.Sheet.Notes)
}

func TestEditNotes_DraftHasNoHistory(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})

	v, err := f.mgr.EditNotes(context.Background(), v.Shift.ID, "first draft", "sup-1")
	require.NoError(t, err)

	assert.Equal(t, "first draft", v.Shift.Sheet.Notes)
	assert.Empty(t, v.NoteHistory)
}

func TestReopen_RecordsStatusCorrectionWithReason(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())

	v, err := f.mgr.Reopen(context.Background(), v.Shift.ID, "bank slip found", "sup-2")
	require.NoError(t, err)

	assert.Equal(t, shift.StatusReopened, v.Shift.Status)
	require.Len(t, v.Corrections, 1)
	c := v.Corrections[0]
	assert.Equal(t, "status", c.Field)
	assert.Equal(t, "reviewed", c.OldValue)
	assert.Equal(t, "reopened", c.NewValue)
	assert.Equal(t, "bank slip found", c.Reason)
	assert.Equal(t, generic.Actor("sup-2"), c.Actor)
	assert.Contains(t, f.obs.transitions, "reviewed->reopened")
}

func TestReopened_FieldEditProducesOneCorrection(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())
	_, err := f.mgr.Reopen(context.Background(), v.Shift.ID, "recount", "sup-1")
	require.NoError(t, err)

	// WHEN: countCash goes from 500 to 510
	v, err = f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{
		Sheet:  shift.SheetPatch{Counted: map[reconcile.Category]shift.AmountField{reconcile.Cash: shift.SetAmount(money("510"))}},
		Reason: "found a bill under the tray",
	}, "sup-2")
	require.NoError(t, err)

	// THEN: Exactly one field correction carrying old and new values
	fieldCorrections := withoutStatus(v.Corrections)
	require.Len(t, fieldCorrections, 1)
	c := fieldCorrections[0]
	assert.Equal(t, "countCash", c.Field)
	assert.Equal(t, "500", c.OldValue)
	assert.Equal(t, "510", c.NewValue)
	assert.Equal(t, "found a bill under the tray", c.Reason)

	// AND: It is the newest entry
	assert.Equal(t, "countCash", v.Corrections[0].Field)
}

func TestReopened_DepositEditNamesTheIndex(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())
	_, err := f.mgr.Reopen(context.Background(), v.Shift.ID, "", "sup-1")
	require.NoError(t, err)

	deposits := []generic.Amount{generic.Money("300"), generic.Money("300"), generic.Money("250")}
	v, err = f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{Sheet: shift.SheetPatch{Deposits: &deposits}}, "sup-1")
	require.NoError(t, err)

	fieldCorrections := withoutStatus(v.Corrections)
	require.Len(t, fieldCorrections, 1)
	assert.Equal(t, "deposits[2]", fieldCorrections[0].Field)
	assert.Equal(t, "200", fieldCorrections[0].OldValue)
	assert.Equal(t, "250", fieldCorrections[0].NewValue)
}

func TestReopened_DateAndLabelAreImmutable(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())
	_, err := f.mgr.Reopen(context.Background(), v.Shift.ID, "", "sup-1")
	require.NoError(t, err)

	newDate := generic.MustParseDate("2024-03-02")
	_, dateErr := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{Date: &newDate}, "sup-1")
	label := shift.LabelNight
	_, labelErr := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{Label: &label}, "sup-1")

	assert.Equal(t, generic.ConflictImmutable, conflictReason(t, dateErr))
	assert.Equal(t, generic.ConflictImmutable, conflictReason(t, labelErr))

	// AND: Re-sending the unchanged values is fine
	sameDate := generic.MustParseDate("2024-03-01")
	_, err = f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{Date: &sameDate}, "sup-1")
	assert.NoError(t, err)
}

func TestPatch_ReopenAndEditInOneRequest(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())

	v, err := f.mgr.Patch(context.Background(), v.Shift.ID, shift.Patch{
		Status: statusPtr(shift.StatusReopened),
		Sheet:  shift.SheetPatch{Counted: map[reconcile.Category]shift.AmountField{reconcile.Checks: shift.SetAmount(money("195"))}},
		Reason: "cheque bounced",
	}, "sup-1")
	require.NoError(t, err)

	assert.Equal(t, shift.StatusReopened, v.Shift.Status)
	require.Len(t, v.Corrections, 2)
	fields := []string{v.Corrections[0].Field, v.Corrections[1].Field}
	assert.ElementsMatch(t, []string{"countChecks", "status"}, fields)
}

func TestReclose_ExplainedByItemsLandsOnReviewed(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())
	id := v.Shift.ID
	_, err := f.mgr.Reopen(ctx, id, "late cheque", "sup-1")
	require.NoError(t, err)

	// GIVEN: Cash 10 over, explained by a cheque item
	_, err = f.mgr.Patch(ctx, id, shift.Patch{Sheet: shift.SheetPatch{
		Counted:            map[reconcile.Category]shift.AmountField{reconcile.Cash: shift.SetAmount(money("510"))},
		Notes:              strPtr("Acme paid by cheque"),
		OverShortExplained: boolPtr(true),
	}}, "sup-1")
	require.NoError(t, err)
	_, err = f.mgr.AddItem(ctx, id, activity.Spec{Kind: activity.KindChequeReceived, Amount: generic.Money("10"), CustomerName: "Acme"}, "sup-1")
	require.NoError(t, err)

	// WHEN: Re-closing
	v, err = f.mgr.Reclose(ctx, id, "sup-1")
	require.NoError(t, err)

	// THEN: Fully explained and reviewed
	assert.Equal(t, shift.StatusReviewed, v.Shift.Status)
	assert.True(t, v.FullyExplained)
	assert.True(t, v.NetOverShort.IsZero())
	assert.Equal(t, "reopened", v.Corrections[0].OldValue)
	assert.Equal(t, "reviewed", v.Corrections[0].NewValue)

	// AND: The note edit made while reopened is in note history
	require.Len(t, v.NoteHistory, 1)
	assert.Equal(t, "Acme paid by cheque", v.NoteHistory[0].NewNote)
}

func boolPtr(b bool) *bool { return &b }

func TestTransitions_InvalidMoves(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	draft := f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})
	closed := f.create(t, "2024-03-02", shift.LabelMorning, shift.StatusClosed, balancedSheet())

	_, reopenDraft := f.mgr.Reopen(ctx, draft.Shift.ID, "", "sup-1")
	_, recloseDraft := f.mgr.Reclose(ctx, draft.Shift.ID, "sup-1")
	_, closeClosed := f.mgr.Close(ctx, closed.Shift.ID, "sup-1")
	_, backToDraft := f.mgr.Patch(ctx, closed.Shift.ID, shift.Patch{Status: statusPtr(shift.StatusDraft)}, "sup-1")

	for _, err := range []error{reopenDraft, recloseDraft, closeClosed, backToDraft} {
		assert.Equal(t, generic.ConflictTransition, conflictReason(t, err))
	}

	_, unknown := f.mgr.Patch(ctx, draft.Shift.ID, shift.Patch{Status: statusPtr("archived")}, "sup-1")
	assert.True(t, generic.IsClientError(unknown))
}

func TestClose_DraftToClosed(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", balancedSheet())

	v, err := f.mgr.Close(context.Background(), v.Shift.ID, "sup-1")
	require.NoError(t, err)

	assert.Equal(t, shift.StatusReviewed, v.Shift.Status)
	// draft -> closed is not audited
	assert.Empty(t, v.Corrections)
	assert.Equal(t, []string{"->draft", "draft->reviewed"}, f.obs.transitions)
}

// =============================================================================
// ITEMS
// =============================================================================

func TestItems_NotEditableWhenFinalized(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())

	_, addErr := f.mgr.AddItem(context.Background(), v.Shift.ID, activity.Spec{Kind: activity.KindWithdrawal, Amount: generic.Money("5")}, "sup-1")
	_, deleteErr := f.mgr.DeleteItem(context.Background(), v.Shift.ID, "itm-x", "sup-1")

	assert.Equal(t, generic.ConflictNotEditable, conflictReason(t, addErr))
	assert.Equal(t, generic.ConflictNotEditable, conflictReason(t, deleteErr))
}

func TestItems_AddAndDeleteIdempotently(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sheet := balancedSheet()
	sheet.Cash = pair("480", "500")
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", sheet)

	// GIVEN: A withdrawal explaining the 20 short
	v, err := f.mgr.AddItem(ctx, v.Shift.ID, activity.Spec{Kind: activity.KindWithdrawal, Amount: generic.Money("20"), Description: "owner float"}, "sup-1")
	require.NoError(t, err)
	require.Len(t, v.Items, 1)
	assert.True(t, v.NetOverShort.IsZero())
	itemID := v.Items[0].ID

	// WHEN: Deleting it twice
	v, err = f.mgr.DeleteItem(ctx, v.Shift.ID, itemID, "sup-1")
	require.NoError(t, err)
	v, err = f.mgr.DeleteItem(ctx, v.Shift.ID, itemID, "sup-1")
	require.NoError(t, err)

	// THEN: Gone, net back to raw, one delete observed
	assert.Empty(t, v.Items)
	assert.Equal(t, "-20", v.NetOverShort.String())
	assert.Equal(t, 1, f.obs.deleted)
	assert.Equal(t, []activity.Kind{activity.KindWithdrawal}, f.obs.added)
}

func TestItems_InvalidSpecRejected(t *testing.T) {
	f := newFixture()
	v := f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})

	_, err := f.mgr.AddItem(context.Background(), v.Shift.ID, activity.Spec{Kind: activity.KindFuelTaken, Amount: generic.Money("5"), CustomerName: "Acme"}, "sup-1")

	var verr *generic.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"paymentMethod"}, verr.Fields)
}

func TestItems_UnknownShift(t *testing.T) {
	f := newFixture()

	_, err := f.mgr.DeleteItem(context.Background(), "shf-missing", "itm-1", "sup-1")

	assert.True(t, generic.IsNotFound(err))
}

func TestCustomerBalances_AcrossShifts(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := f.create(t, "2024-03-01", shift.LabelMorning, "", reconcile.Sheet{})
	second := f.create(t, "2024-03-02", shift.LabelMorning, "", reconcile.Sheet{})

	_, err := f.mgr.AddItem(ctx, first.Shift.ID, activity.Spec{Kind: activity.KindDebitReceived, Amount: generic.Money("100"), CustomerName: "Acme"}, "sup-1")
	require.NoError(t, err)
	_, err = f.mgr.AddItem(ctx, second.Shift.ID, activity.Spec{
		Kind: activity.KindFuelTaken, Amount: generic.Money("35"), CustomerName: "Acme",
		PaymentMethod: activity.MethodDebit, PreviousBalance: money("100"),
	}, "sup-1")
	require.NoError(t, err)

	balances, err := f.mgr.CustomerBalances(ctx)
	require.NoError(t, err)

	require.Len(t, balances, 1)
	assert.Equal(t, "65", balances[0].ResultingBalance.String())
	assert.Equal(t, second.Shift.ID, balances[0].ShiftID)
}

// =============================================================================
// READS
// =============================================================================

func TestList_RedFlagOnly(t *testing.T) {
	f := newFixture()
	f.create(t, "2024-03-01", shift.LabelMorning, shift.StatusClosed, balancedSheet())
	flagged := balancedSheet()
	flagged.Cash = pair("490", "500")
	flagged.Notes = "short ten"
	red := f.create(t, "2024-03-02", shift.LabelMorning, shift.StatusClosed, flagged)

	all, err := f.mgr.List(context.Background(), shift.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, red.Shift.ID, all[0].Shift.ID)

	only, err := f.mgr.List(context.Background(), shift.ListFilter{RedFlagOnly: true})
	require.NoError(t, err)
	require.Len(t, only, 1)
	assert.Equal(t, red.Shift.ID, only[0].Shift.ID)
	assert.Equal(t, "-10", only[0].Close.OverShortTotal.String())
}

func TestHistory_UnknownShift(t *testing.T) {
	f := newFixture()

	_, err := f.mgr.History(context.Background(), "shf-missing")

	assert.True(t, generic.IsNotFound(err))
}

func TestPreview_DoesNotPersist(t *testing.T) {
	f := newFixture()
	sheet := balancedSheet()
	sheet.Cash = pair("525", "500")
	sheet.OverShortExplained = true

	ev, err := f.mgr.Preview(sheet, []activity.Spec{
		{Kind: activity.KindChequeReceived, Amount: generic.Money("20"), CustomerName: "Acme"},
	})
	require.NoError(t, err)

	assert.Equal(t, "5", ev.NetOverShort.String())
	assert.True(t, ev.FullyReviewed)
	assert.False(t, ev.FullyExplained)
	assert.True(t, ev.Check.RequiresNotes)

	list, err := f.mgr.List(context.Background(), shift.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestPreview_InvalidItem(t *testing.T) {
	f := newFixture()

	_, err := f.mgr.Preview(balancedSheet(), []activity.Spec{{Kind: activity.KindOther, Amount: generic.Money("1")}})

	assert.ErrorContains(t, err, "item 0")
	assert.True(t, generic.IsClientError(err))
}
