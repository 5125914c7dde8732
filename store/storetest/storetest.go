// Package storetest is the behavioural contract every shift.TxStore must
// satisfy. Each store package runs it from its own tests.
package storetest

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
)

// Factory returns an empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) shift.TxStore

// Run executes the whole contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, store shift.TxStore)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"GetUnknown", testGetUnknown},
		{"DuplicateDateLabel", testDuplicateDateLabel},
		{"FindShift", testFindShift},
		{"ListOrderAndFilters", testListOrderAndFilters},
		{"UpdateChecksVersion", testUpdateChecksVersion},
		{"UpdateToTakenKey", testUpdateToTakenKey},
		{"ItemsRoundTrip", testItemsRoundTrip},
		{"ItemsFollowShiftDate", testItemsFollowShiftDate},
		{"ItemsCarryShiftPeriod", testItemsCarryShiftPeriod},
		{"DeleteItem", testDeleteItem},
		{"AuditStreams", testAuditStreams},
		{"TxRollback", testTxRollback},
		{"TxCommit", testTxCommit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// =============================================================================
// FIXTURES
// =============================================================================

var epoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func amt(s string) *generic.Amount { return generic.Money(s).Ptr() }

// NewShift builds a complete closed-ready shift for date and label.
func NewShift(id string, date string, label shift.Label) shift.Shift {
	sheet := reconcile.Sheet{
		Cash:           reconcile.Pair{Counted: amt("1000.25"), System: amt("1000")},
		Checks:         reconcile.Pair{Counted: amt("200"), System: amt("200")},
		Credit:         reconcile.Pair{Counted: amt("500"), System: amt("500")},
		InHouse:        reconcile.Pair{Counted: amt("0"), System: amt("0")},
		Fleet:          reconcile.Pair{Counted: amt("0"), System: amt("0")},
		Voucher:        reconcile.Pair{Counted: amt("0"), System: nil},
		Debit:          amt("12.5"),
		UnleadedVolume: generic.Litres("1200.5").Ptr(),
		DieselVolume:   generic.Litres("300").Ptr(),
		Deposits:       []generic.Amount{generic.Money("800"), generic.Money("150.75")},
		Notes:          "drawer short a quarter",
	}
	return shift.Shift{
		ID:           generic.ShiftID(id),
		Date:         generic.MustParseDate(date),
		Label:        label,
		Supervisor:   "dana",
		Sheet:        sheet,
		DocumentURLs: []string{"https://docs.example/1.pdf"},
		Status:       shift.StatusDraft,
		Version:      1,
		CreatedBy:    "sup-1",
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
}

func newItem(t *testing.T, id string, s shift.Shift, spec activity.Spec, at time.Time) activity.Item {
	t.Helper()
	entry, err := activity.NewEntry(spec)
	require.NoError(t, err)
	return activity.Item{
		ID:        generic.ItemID(id),
		ShiftID:   s.ID,
		ShiftDate: s.Date,
		Entry:     entry,
		CreatedBy: "sup-1",
		CreatedAt: at,
	}
}

func cheque(customer, value string, previous *generic.Amount) activity.Spec {
	return activity.Spec{
		Kind:            activity.KindChequeReceived,
		Amount:          generic.Money(value),
		CustomerName:    customer,
		PreviousBalance: previous,
	}
}

// =============================================================================
// SHIFTS
// =============================================================================

func testCreateAndGet(t *testing.T, store shift.TxStore) {
	ctx := context.Background()

	// GIVEN: A shift with every kind of sheet field populated
	in := NewShift("shf-1", "2024-03-01", shift.LabelMorning)

	// WHEN: It is created and read back
	require.NoError(t, store.CreateShift(ctx, in))
	got, err := store.GetShift(ctx, in.ID)
	require.NoError(t, err)

	// THEN: Every field survives
	assert.Equal(t, in.ID, got.ID)
	assert.True(t, in.Date.Equal(got.Date))
	assert.Equal(t, in.Label, got.Label)
	assert.Equal(t, "dana", got.Supervisor)
	assert.Equal(t, shift.StatusDraft, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, generic.Actor("sup-1"), got.CreatedBy)
	assert.True(t, epoch.Equal(got.CreatedAt))
	assert.Equal(t, []string{"https://docs.example/1.pdf"}, got.DocumentURLs)

	// AND: Amounts keep full precision and unset stays unset
	assert.Equal(t, "1000.25", got.Sheet.Cash.Counted.String())
	assert.Nil(t, got.Sheet.Voucher.System)
	assert.Nil(t, got.Sheet.OtherCredit)
	assert.Equal(t, "12.5", got.Sheet.Debit.String())
	assert.Equal(t, generic.UnitLitres, got.Sheet.UnleadedVolume.Unit)
	assert.Equal(t, "1200.5", got.Sheet.UnleadedVolume.String())
	require.Len(t, got.Sheet.Deposits, 2)
	assert.Equal(t, "150.75", got.Sheet.Deposits[1].String())
	assert.Equal(t, "drawer short a quarter", got.Sheet.Notes)

	// AND: The serialized audit snapshot is identical
	assert.Equal(t, in.AuditFields(), got.AuditFields())
}

func testGetUnknown(t *testing.T, store shift.TxStore) {
	_, err := store.GetShift(context.Background(), "shf-missing")

	var nf *generic.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "shift", nf.Kind)
}

func testDuplicateDateLabel(t *testing.T, store shift.TxStore) {
	ctx := context.Background()

	// GIVEN: A reviewed shift on 2024-03-01 6-1
	first := NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	first.Status = shift.StatusReviewed
	require.NoError(t, store.CreateShift(ctx, first))

	// WHEN: Another shift claims the same date and label
	err := store.CreateShift(ctx, NewShift("shf-2", "2024-03-01", shift.LabelMorning))

	// THEN: The store refuses it regardless of the existing status
	assert.ErrorIs(t, err, generic.ErrDuplicateShift)

	// AND: Another label on the same date is fine
	assert.NoError(t, store.CreateShift(ctx, NewShift("shf-3", "2024-03-01", shift.LabelEvening)))
}

func testFindShift(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	require.NoError(t, store.CreateShift(ctx, NewShift("shf-1", "2024-03-01", shift.LabelNight)))

	found, err := store.FindShift(ctx, generic.MustParseDate("2024-03-01"), shift.LabelNight)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, generic.ShiftID("shf-1"), found.ID)

	missing, err := store.FindShift(ctx, generic.MustParseDate("2024-03-01"), shift.LabelMorning)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func testListOrderAndFilters(t *testing.T, store shift.TxStore) {
	ctx := context.Background()

	// GIVEN: Shifts across three days, one of them closed
	closed := NewShift("shf-c", "2024-03-02", shift.LabelMorning)
	closed.Status = shift.StatusClosed
	for _, s := range []shift.Shift{
		NewShift("shf-a", "2024-03-01", shift.LabelEvening),
		NewShift("shf-b", "2024-03-03", shift.LabelNight),
		closed,
		NewShift("shf-d", "2024-03-03", shift.LabelEvening),
	} {
		require.NoError(t, store.CreateShift(ctx, s))
	}

	// WHEN: Listing without a filter
	all, err := store.ListShifts(ctx, shift.ListFilter{})
	require.NoError(t, err)

	// THEN: Newest date first, then label
	assert.Equal(t, []generic.ShiftID{"shf-d", "shf-b", "shf-c", "shf-a"}, ids(all))

	// AND: Date range is inclusive on both ends
	from, to := generic.MustParseDate("2024-03-01"), generic.MustParseDate("2024-03-02")
	ranged, err := store.ListShifts(ctx, shift.ListFilter{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, []generic.ShiftID{"shf-c", "shf-a"}, ids(ranged))

	// AND: Status filters exactly
	byStatus, err := store.ListShifts(ctx, shift.ListFilter{Status: shift.StatusClosed})
	require.NoError(t, err)
	assert.Equal(t, []generic.ShiftID{"shf-c"}, ids(byStatus))
}

func ids(shifts []shift.Shift) []generic.ShiftID {
	out := make([]generic.ShiftID, len(shifts))
	for i, s := range shifts {
		out[i] = s.ID
	}
	return out
}

func testUpdateChecksVersion(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	s := NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	require.NoError(t, store.CreateShift(ctx, s))

	// WHEN: Updating from the stored version
	next := s
	next.Supervisor = "lee"
	next.Sheet.Deposits = []generic.Amount{generic.Money("900")}
	next.Version = 2
	next.UpdatedAt = epoch.Add(time.Hour)
	require.NoError(t, store.UpdateShift(ctx, next, 1))

	got, err := store.GetShift(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "lee", got.Supervisor)
	assert.Equal(t, int64(2), got.Version)
	require.Len(t, got.Sheet.Deposits, 1)
	assert.True(t, epoch.Add(time.Hour).Equal(got.UpdatedAt))

	// THEN: A second writer still holding version 1 loses
	stale := s
	stale.Version = 2
	err = store.UpdateShift(ctx, stale, 1)
	assert.ErrorIs(t, err, generic.ErrConcurrentModification)

	// AND: Updating an unknown shift is not found, not a version clash
	ghost := NewShift("shf-ghost", "2024-04-01", shift.LabelMorning)
	err = store.UpdateShift(ctx, ghost, 1)
	assert.True(t, generic.IsNotFound(err))
}

func testUpdateToTakenKey(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	a := NewShift("shf-a", "2024-03-01", shift.LabelMorning)
	b := NewShift("shf-b", "2024-03-02", shift.LabelMorning)
	require.NoError(t, store.CreateShift(ctx, a))
	require.NoError(t, store.CreateShift(ctx, b))

	// WHEN: b moves onto a's date
	moved := b
	moved.Date = a.Date
	moved.Version = 2
	err := store.UpdateShift(ctx, moved, 1)

	// THEN: The natural key stays unique
	assert.ErrorIs(t, err, generic.ErrDuplicateShift)

	// AND: Moving to a free slot releases the old one
	moved.Date = generic.MustParseDate("2024-03-05")
	require.NoError(t, store.UpdateShift(ctx, moved, 1))
	found, err := store.FindShift(ctx, generic.MustParseDate("2024-03-02"), shift.LabelMorning)
	require.NoError(t, err)
	assert.Nil(t, found)
}

// =============================================================================
// ITEMS
// =============================================================================

func testItemsRoundTrip(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	s := NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	require.NoError(t, store.CreateShift(ctx, s))

	// GIVEN: One item of each shape, appended in order
	specs := []activity.Spec{
		cheque("Acme", "200", amt("50")),
		{Kind: activity.KindFuelTaken, Amount: generic.Money("80"), CustomerName: "Acme", PaymentMethod: activity.MethodDebit, PreviousBalance: amt("60")},
		{Kind: activity.KindWithdrawal, Amount: generic.Money("20")},
		{Kind: activity.KindOther, Amount: generic.Money("3.5"), Polarity: activity.Shortage, Description: "till error"},
	}
	for i, spec := range specs {
		require.NoError(t, store.AppendItem(ctx, newItem(t, string(rune('a'+i)), s, spec, epoch.Add(time.Duration(i)*time.Minute))))
	}

	// WHEN: Loading them back
	items, err := store.LoadItems(ctx, s.ID)
	require.NoError(t, err)

	// THEN: Order and variants are preserved
	require.Len(t, items, 4)
	assert.Equal(t, []generic.ItemID{"a", "b", "c", "d"}, []generic.ItemID{items[0].ID, items[1].ID, items[2].ID, items[3].ID})

	received, ok := items[0].Entry.(activity.ChequeReceived)
	require.True(t, ok)
	assert.Equal(t, "Acme", received.CustomerName)
	assert.Equal(t, "50", received.PreviousBalance.String())

	fuel, ok := items[1].Entry.(activity.FuelTaken)
	require.True(t, ok)
	assert.True(t, fuel.NoteOnly())
	_, _, resulting, ok := fuel.Balance()
	require.True(t, ok)
	assert.True(t, resulting.IsZero())

	other, ok := items[3].Entry.(activity.Other)
	require.True(t, ok)
	assert.Equal(t, activity.Shortage, other.Polarity())
	assert.Equal(t, "till error", other.Description())
	assert.True(t, epoch.Add(3*time.Minute).Equal(items[3].CreatedAt))
}

func testItemsFollowShiftDate(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	s := NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	require.NoError(t, store.CreateShift(ctx, s))
	require.NoError(t, store.AppendItem(ctx, newItem(t, "i-1", s, cheque("Acme", "10", nil), epoch)))

	// WHEN: The draft's date moves
	moved := s
	moved.Date = generic.MustParseDate("2024-03-09")
	moved.Version = 2
	require.NoError(t, store.UpdateShift(ctx, moved, 1))

	// THEN: Loaded items carry the new date
	all, err := store.LoadAllItems(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2024-03-09", all[0].ShiftDate.String())
}

func testItemsCarryShiftPeriod(t *testing.T, store shift.TxStore) {
	ctx := context.Background()

	// GIVEN: The night shift's cheque is entered before the morning's
	night := NewShift("shf-n", "2024-03-01", shift.LabelNight)
	morning := NewShift("shf-m", "2024-03-01", shift.LabelMorning)
	require.NoError(t, store.CreateShift(ctx, night))
	require.NoError(t, store.CreateShift(ctx, morning))
	require.NoError(t, store.AppendItem(ctx, newItem(t, "i-n", night, cheque("Acme", "30", amt("100")), epoch)))
	require.NoError(t, store.AppendItem(ctx, newItem(t, "i-m", morning, cheque("Acme", "50", amt("0")), epoch.Add(time.Hour))))

	// WHEN: Loading every item
	all, err := store.LoadAllItems(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	// THEN: Items carry their shift's period and the night balance carries forward
	periods := make(map[generic.ItemID]int)
	for _, item := range all {
		periods[item.ID] = item.ShiftPeriod
	}
	assert.Equal(t, shift.LabelNight.Period(), periods["i-n"])
	assert.Equal(t, shift.LabelMorning.Period(), periods["i-m"])

	balances := activity.ProjectBalances(all)
	require.Len(t, balances, 1)
	assert.Equal(t, "130", balances[0].ResultingBalance.String())
	assert.Equal(t, generic.ShiftID("shf-n"), balances[0].ShiftID)
}

func testDeleteItem(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	s := NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	other := NewShift("shf-2", "2024-03-01", shift.LabelEvening)
	require.NoError(t, store.CreateShift(ctx, s))
	require.NoError(t, store.CreateShift(ctx, other))
	require.NoError(t, store.AppendItem(ctx, newItem(t, "i-1", s, cheque("Acme", "10", nil), epoch)))
	require.NoError(t, store.AppendItem(ctx, newItem(t, "i-2", s, cheque("Bolt", "20", nil), epoch)))

	// WHEN: Deleting through the wrong shift
	existed, err := store.DeleteItem(ctx, other.ID, "i-1")
	require.NoError(t, err)
	assert.False(t, existed)

	// AND: Through the owning shift, twice
	existed, err = store.DeleteItem(ctx, s.ID, "i-1")
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = store.DeleteItem(ctx, s.ID, "i-1")
	require.NoError(t, err)
	assert.False(t, existed)

	// THEN: Only the other item remains
	items, err := store.LoadItems(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, generic.ItemID("i-2"), items[0].ID)
}

// =============================================================================
// AUDIT
// =============================================================================

func testAuditStreams(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	s := NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	require.NoError(t, store.CreateShift(ctx, s))

	// GIVEN: Two correction batches and a note edit
	require.NoError(t, store.AppendCorrections(ctx, []generic.Correction{
		{ID: "c-1", ShiftID: s.ID, Field: "countCash", OldValue: "500", NewValue: "510", Actor: "sup-1", At: epoch},
		{ID: "c-2", ShiftID: s.ID, Field: "deposits[2]", OldValue: "", NewValue: "40", Actor: "sup-1", At: epoch},
	}))
	require.NoError(t, store.AppendCorrections(ctx, []generic.Correction{
		{ID: "c-3", ShiftID: s.ID, Field: "status", OldValue: "closed", NewValue: "reopened", Reason: "bank slip found", Actor: "sup-2", At: epoch.Add(time.Hour)},
	}))
	require.NoError(t, store.AppendNoteChange(ctx, generic.NoteChange{
		ID: "n-1", ShiftID: s.ID, OldNote: "", NewNote: "called bank", Actor: "sup-2", At: epoch,
	}))

	// WHEN: Loading
	corrections, err := store.LoadCorrections(ctx, s.ID)
	require.NoError(t, err)
	notes, err := store.LoadNoteHistory(ctx, s.ID)
	require.NoError(t, err)

	// THEN: Insertion order, all fields intact
	require.Len(t, corrections, 3)
	assert.Equal(t, "c-1", string(corrections[0].ID))
	assert.Equal(t, "deposits[2]", corrections[1].Field)
	assert.Equal(t, "", corrections[1].OldValue)
	assert.Equal(t, "bank slip found", corrections[2].Reason)
	assert.Equal(t, generic.Actor("sup-2"), corrections[2].Actor)
	assert.True(t, epoch.Add(time.Hour).Equal(corrections[2].At))

	require.Len(t, notes, 1)
	assert.Equal(t, "called bank", notes[0].NewNote)

	// AND: Other shifts see nothing
	none, err := store.LoadCorrections(ctx, "shf-other")
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func testTxRollback(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	s := NewShift("shf-1", "2024-03-01", shift.LabelMorning)
	require.NoError(t, store.CreateShift(ctx, s))
	boom := errors.New("boom")

	// WHEN: A transaction writes to every table and then fails
	err := store.WithTx(ctx, func(tx shift.Store) error {
		next := s
		next.Supervisor = "lee"
		next.Version = 2
		if err := tx.UpdateShift(ctx, next, 1); err != nil {
			return err
		}
		if err := tx.AppendItem(ctx, newItem(t, "i-1", s, cheque("Acme", "10", nil), epoch)); err != nil {
			return err
		}
		if err := tx.AppendCorrections(ctx, []generic.Correction{{ID: "c-1", ShiftID: s.ID, Field: "supervisor", Actor: "x", At: epoch}}); err != nil {
			return err
		}
		return boom
	})

	// THEN: The error surfaces and nothing was kept
	assert.ErrorIs(t, err, boom)
	got, err := store.GetShift(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "dana", got.Supervisor)
	assert.Equal(t, int64(1), got.Version)

	items, err := store.LoadItems(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
	corrections, err := store.LoadCorrections(ctx, s.ID)
	require.NoError(t, err)
	assert.Empty(t, corrections)
}

func testTxCommit(t *testing.T, store shift.TxStore) {
	ctx := context.Background()
	s := NewShift("shf-1", "2024-03-01", shift.LabelMorning)

	err := store.WithTx(ctx, func(tx shift.Store) error {
		if err := tx.CreateShift(ctx, s); err != nil {
			return err
		}
		found, err := tx.FindShift(ctx, s.Date, s.Label)
		if err != nil {
			return err
		}
		require.NotNil(t, found)
		return tx.AppendNoteChange(ctx, generic.NoteChange{ID: "n-1", ShiftID: s.ID, NewNote: "x", Actor: "a", At: epoch})
	})
	require.NoError(t, err)

	_, err = store.GetShift(ctx, s.ID)
	assert.NoError(t, err)
	notes, err := store.LoadNoteHistory(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
}
