package activity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type sliceStore struct {
	items []activity.Item
}

func (s *sliceStore) AppendItem(_ context.Context, item activity.Item) error {
	s.items = append(s.items, item)
	return nil
}

func (s *sliceStore) DeleteItem(_ context.Context, shiftID generic.ShiftID, itemID generic.ItemID) (bool, error) {
	for i, item := range s.items {
		if item.ShiftID == shiftID && item.ID == itemID {
			s.items = append(s.items[:i:i], s.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *sliceStore) LoadItems(_ context.Context, shiftID generic.ShiftID) ([]activity.Item, error) {
	var out []activity.Item
	for _, item := range s.items {
		if item.ShiftID == shiftID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *sliceStore) LoadAllItems(_ context.Context) ([]activity.Item, error) {
	return append([]activity.Item(nil), s.items...), nil
}

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func item(t *testing.T, shiftID, date string, minute int, spec activity.Spec) activity.Item {
	t.Helper()
	e, err := activity.NewEntry(spec)
	require.NoError(t, err)
	return activity.Item{
		ID:        generic.ItemID(shiftID + "/" + spec.CustomerName + "/" + date),
		ShiftID:   generic.ShiftID(shiftID),
		ShiftDate: generic.MustParseDate(date),
		Entry:     e,
		CreatedAt: base.Add(time.Duration(minute) * time.Minute),
	}
}

func received(customer, value string, previous *generic.Amount) activity.Spec {
	return activity.Spec{Kind: activity.KindChequeReceived, Amount: generic.Money(value), CustomerName: customer, PreviousBalance: previous}
}

func fuel(customer string, method activity.PaymentMethod, value string, previous *generic.Amount) activity.Spec {
	return activity.Spec{Kind: activity.KindFuelTaken, Amount: generic.Money(value), CustomerName: customer, PaymentMethod: method, PreviousBalance: previous}
}

func money(s string) *generic.Amount { return generic.Money(s).Ptr() }

// =============================================================================
// PROJECTION
// =============================================================================

func TestProjectBalances_LatestShiftWins(t *testing.T) {
	// GIVEN: Acme hands in a cheque, then takes fuel against it next day
	items := []activity.Item{
		item(t, "s2", "2024-03-02", 0, fuel("acme ", activity.MethodCheque, "80", money("200"))),
		item(t, "s1", "2024-03-01", 5, received("Acme", "200", nil)),
	}

	// WHEN: Projecting
	balances := activity.ProjectBalances(items)

	// THEN: The later shift's resulting balance is the carry-forward
	require.Len(t, balances, 1)
	b := balances[0]
	assert.Equal(t, activity.MethodCheque, b.PaymentMethod)
	assert.Equal(t, "120", b.ResultingBalance.String())
	assert.Equal(t, "200", b.PreviousBalance.String())
	assert.Equal(t, "2024-03-02", b.AsOfShiftDate.String())
	assert.Equal(t, generic.ShiftID("s2"), b.ShiftID)
}

func TestProjectBalances_SameDateUsesShiftPeriod(t *testing.T) {
	// GIVEN: The night shift's item was entered before the morning's
	night := item(t, "night", "2024-03-01", 0, received("Acme", "30", money("100")))
	night.ShiftPeriod = 2
	morning := item(t, "morning", "2024-03-01", 45, received("Acme", "50", money("0")))
	morning.ShiftPeriod = 0

	// WHEN: Projecting
	balances := activity.ProjectBalances([]activity.Item{morning, night})

	// THEN: The later period wins regardless of entry time
	require.Len(t, balances, 1)
	assert.Equal(t, "130", balances[0].ResultingBalance.String())
	assert.Equal(t, generic.ShiftID("night"), balances[0].ShiftID)
}

func TestProjectBalances_SameDateUsesCreationTime(t *testing.T) {
	items := []activity.Item{
		item(t, "s1", "2024-03-01", 10, received("Acme", "50", money("100"))),
		item(t, "s2", "2024-03-01", 20, received("Acme", "25", money("150"))),
	}

	balances := activity.ProjectBalances(items)

	require.Len(t, balances, 1)
	assert.Equal(t, "175", balances[0].ResultingBalance.String())
}

func TestProjectBalances_KeyedByCustomerAndMethod(t *testing.T) {
	// GIVEN: One customer paying by cheque and by debit, and another customer
	items := []activity.Item{
		item(t, "s1", "2024-03-01", 0, received("Acme", "100", nil)),
		item(t, "s1", "2024-03-01", 1, activity.Spec{Kind: activity.KindDebitReceived, Amount: generic.Money("60"), CustomerName: "ACME"}),
		item(t, "s1", "2024-03-01", 2, received("Bolt", "30", nil)),
	}

	balances := activity.ProjectBalances(items)

	// THEN: Sorted by customer then method, names matched case-insensitively
	require.Len(t, balances, 3)
	assert.Equal(t, activity.MethodCheque, balances[0].PaymentMethod)
	assert.Equal(t, "100", balances[0].ResultingBalance.String())
	assert.Equal(t, activity.MethodDebit, balances[1].PaymentMethod)
	assert.Equal(t, "60", balances[1].ResultingBalance.String())
	assert.Equal(t, "Bolt", balances[2].CustomerName)
}

func TestProjectBalances_NeverNegative(t *testing.T) {
	items := []activity.Item{
		item(t, "s1", "2024-03-01", 0, fuel("Acme", activity.MethodDebit, "90", money("40"))),
	}

	balances := activity.ProjectBalances(items)

	require.Len(t, balances, 1)
	assert.True(t, balances[0].ResultingBalance.IsZero())
}

func TestProjectBalances_IgnoresNonCarryingItems(t *testing.T) {
	// GIVEN: Fuel without a previous balance, a withdrawal and an other
	items := []activity.Item{
		item(t, "s1", "2024-03-01", 0, fuel("Acme", activity.MethodCheque, "10", nil)),
		item(t, "s1", "2024-03-01", 1, activity.Spec{Kind: activity.KindWithdrawal, Amount: generic.Money("5"), CustomerName: "Acme"}),
		item(t, "s1", "2024-03-01", 2, activity.Spec{Kind: activity.KindOther, Amount: generic.Money("5"), Polarity: activity.Overage, Description: "tip jar", CustomerName: "Acme"}),
	}

	assert.Empty(t, activity.ProjectBalances(items))
}

// =============================================================================
// LEDGER
// =============================================================================

func TestLedger_AddDeleteAndBalanceFor(t *testing.T) {
	ctx := context.Background()
	store := &sliceStore{}
	ledger := activity.NewLedger(store)
	ledger.Now = func() time.Time { return base }

	// GIVEN: An item added through the ledger
	added, err := ledger.AddItem(ctx, "s1", generic.MustParseDate("2024-03-01"), received("Acme", "75", nil), "sup-1")
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, generic.Actor("sup-1"), added.CreatedBy)
	assert.True(t, base.Equal(added.CreatedAt))

	// WHEN: Looking the balance up with different spelling
	b, err := ledger.BalanceFor(ctx, "  ACME", activity.MethodCheque)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "75", b.ResultingBalance.String())

	none, err := ledger.BalanceFor(ctx, "Acme", activity.MethodDebit)
	require.NoError(t, err)
	assert.Nil(t, none)

	// THEN: Deleting is idempotent
	existed, err := ledger.DeleteItem(ctx, "s1", added.ID)
	require.NoError(t, err)
	assert.True(t, existed)
	existed, err = ledger.DeleteItem(ctx, "s1", added.ID)
	require.NoError(t, err)
	assert.False(t, existed)

	items, err := ledger.Items(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLedger_AddRejectsInvalidSpec(t *testing.T) {
	store := &sliceStore{}
	ledger := activity.NewLedger(store)

	_, err := ledger.AddItem(context.Background(), "s1", generic.MustParseDate("2024-03-01"),
		activity.Spec{Kind: activity.KindChequeReceived, Amount: generic.Money("10")}, "sup-1")

	assert.True(t, generic.IsClientError(err))
	assert.Empty(t, store.items)
}
