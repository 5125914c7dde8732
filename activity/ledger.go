/*
ledger.go - Account activity ledger with carry-forward customer balances

PURPOSE:
  Holds the typed explanations attached to each shift and derives the
  running customer balance from them. There is no stored "customer
  account": the balance is always projected from item history, so it can
  never drift from the items that justify it.

OPERATIONS:
  AddItem:          validate a Spec, persist the resulting variant
  DeleteItem:       idempotent removal (no cascade; net is recomputed on read)
  Items:            a shift's items in creation order
  CustomerBalances: latest resulting balance per (customer, method)

PROJECTION RULE:
  Scan every balance-carrying item ordered by shift date descending, then
  shift period (night before evening before morning), then creation time
  descending. The first item seen for a (customer, method)
  pair wins. Customer names match case-insensitively after trimming.

  Shift 2024-03-01: cheque_received "Acme" 200        -> Acme/cheque 200
  Shift 2024-03-02: fuel_taken "acme" cheque 80 (prev 200) -> Acme/cheque 120

  The projection only pre-fills the next entry; it never blocks a write.

SEE ALSO:
  - factory.go: Per-kind validation
  - reconcile/calculator.go: Nets items against the raw over/short
  - shift/manager.go: Guards AddItem/DeleteItem by shift status
*/
package activity

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// STORE - Item persistence
// =============================================================================

type Store interface {
	AppendItem(ctx context.Context, item Item) error

	// DeleteItem removes an item. Returns false when it did not exist.
	DeleteItem(ctx context.Context, shiftID generic.ShiftID, itemID generic.ItemID) (bool, error)

	// LoadItems returns a shift's items in creation order.
	LoadItems(ctx context.Context, shiftID generic.ShiftID) ([]Item, error)

	// LoadAllItems returns every item with ShiftDate populated.
	LoadAllItems(ctx context.Context) ([]Item, error)
}

// =============================================================================
// LEDGER
// =============================================================================

type Ledger struct {
	Store Store
	Now   func() time.Time
}

func NewLedger(store Store) *Ledger {
	return &Ledger{Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

// AddItem validates spec and appends it to the shift's items.
func (l *Ledger) AddItem(ctx context.Context, shiftID generic.ShiftID, shiftDate generic.Date, spec Spec, actor generic.Actor) (Item, error) {
	entry, err := NewEntry(spec)
	if err != nil {
		return Item{}, err
	}
	item := Item{
		ID:        generic.ItemID(generic.NewID("itm")),
		ShiftID:   shiftID,
		ShiftDate: shiftDate,
		Entry:     entry,
		CreatedBy: actor,
		CreatedAt: l.Now(),
	}
	if err := l.Store.AppendItem(ctx, item); err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeleteItem removes an item; deleting a missing item is not an error.
func (l *Ledger) DeleteItem(ctx context.Context, shiftID generic.ShiftID, itemID generic.ItemID) (bool, error) {
	return l.Store.DeleteItem(ctx, shiftID, itemID)
}

func (l *Ledger) Items(ctx context.Context, shiftID generic.ShiftID) ([]Item, error) {
	return l.Store.LoadItems(ctx, shiftID)
}

// CustomerBalances projects the carry-forward balances from all items.
func (l *Ledger) CustomerBalances(ctx context.Context) ([]CustomerBalance, error) {
	items, err := l.Store.LoadAllItems(ctx)
	if err != nil {
		return nil, err
	}
	return ProjectBalances(items), nil
}

// BalanceFor returns the carry-forward balance for one customer and method.
func (l *Ledger) BalanceFor(ctx context.Context, customer string, method PaymentMethod) (*CustomerBalance, error) {
	balances, err := l.CustomerBalances(ctx)
	if err != nil {
		return nil, err
	}
	key := balanceKey{customer: normalizeCustomer(customer), method: method}
	for _, b := range balances {
		if (balanceKey{customer: normalizeCustomer(b.CustomerName), method: b.PaymentMethod}) == key {
			return &b, nil
		}
	}
	return nil, nil
}

// =============================================================================
// PROJECTION
// =============================================================================

type balanceKey struct {
	customer string
	method   PaymentMethod
}

func normalizeCustomer(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ProjectBalances returns the most recent balance per (customer, method),
// sorted by customer name then method.
func ProjectBalances(items []Item) []CustomerBalance {
	ordered := make([]Item, len(items))
	copy(ordered, items)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.ShiftDate.Equal(b.ShiftDate) {
			return a.ShiftDate.After(b.ShiftDate)
		}
		if a.ShiftPeriod != b.ShiftPeriod {
			return a.ShiftPeriod > b.ShiftPeriod
		}
		return a.CreatedAt.After(b.CreatedAt)
	})

	seen := make(map[balanceKey]bool)
	var balances []CustomerBalance
	for _, item := range ordered {
		bc, ok := item.Entry.(BalanceCarrier)
		if !ok {
			continue
		}
		previous, _, resulting, ok := bc.Balance()
		if !ok || bc.Customer() == "" {
			continue
		}
		key := balanceKey{customer: normalizeCustomer(bc.Customer()), method: bc.Method()}
		if seen[key] {
			continue
		}
		seen[key] = true
		balances = append(balances, CustomerBalance{
			CustomerName:     bc.Customer(),
			PaymentMethod:    bc.Method(),
			PreviousBalance:  previous,
			ResultingBalance: resulting,
			AsOfShiftDate:    item.ShiftDate,
			ShiftID:          item.ShiftID,
			ItemID:           item.ID,
		})
	}

	sort.SliceStable(balances, func(i, j int) bool {
		ci, cj := normalizeCustomer(balances[i].CustomerName), normalizeCustomer(balances[j].CustomerName)
		if ci != cj {
			return ci < cj
		}
		return balances[i].PaymentMethod < balances[j].PaymentMethod
	})
	return balances
}
