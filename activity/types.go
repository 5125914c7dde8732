// Package activity implements the account activity ledger: typed entries a
// supervisor attaches to a shift to explain its raw over/short, plus the
// carry-forward customer balance projected from those entries.
package activity

import (
	"time"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

type Polarity string

const (
	Overage  Polarity = "overage"
	Shortage Polarity = "shortage"
)

func (p Polarity) Valid() bool { return p == Overage || p == Shortage }

// Kind is the structured sub-kind of an entry.
type Kind string

const (
	KindChequeReceived Kind = "cheque_received"
	KindDebitReceived  Kind = "debit_received"
	KindFuelTaken      Kind = "fuel_taken"
	KindWithdrawal     Kind = "withdrawal"
	KindReturn         Kind = "return"
	KindOther          Kind = "other"
)

type PaymentMethod string

const (
	MethodNone   PaymentMethod = ""
	MethodCheque PaymentMethod = "cheque"
	MethodDebit  PaymentMethod = "debit"
)

func (m PaymentMethod) Valid() bool { return m == MethodCheque || m == MethodDebit }

// =============================================================================
// ENTRY - Tagged union, one variant per sub-kind
// =============================================================================

// Entry is the explanation carried by an item. Each variant holds only the
// fields its kind needs; polarity and note-only status follow from the
// variant rather than being stored independently.
type Entry interface {
	Kind() Kind
	Amount() generic.Amount
	Polarity() Polarity

	// NoteOnly entries document a transaction already reflected in the
	// counted totals; they never change the net over/short.
	NoteOnly() bool

	Description() string
	Customer() string
	Method() PaymentMethod

	isEntry()
}

// BalanceCarrier is implemented by entries that move a customer's
// carry-forward balance.
type BalanceCarrier interface {
	Entry
	// Balance returns the previous and resulting balance, and the dispensed
	// amount when the entry consumed balance. ok is false when the entry
	// carries no balance information.
	Balance() (previous, dispensed *generic.Amount, resulting generic.Amount, ok bool)
}

// ChequeReceived: a customer handed in a cheque the POS does not know about.
type ChequeReceived struct {
	CustomerName    string
	Value           generic.Amount
	PreviousBalance *generic.Amount
	Note            string
}

// DebitReceived: a debit hold taken against a customer's future fuel.
type DebitReceived struct {
	CustomerName    string
	Value           generic.Amount
	PreviousBalance *generic.Amount
	Note            string
}

// FuelTaken: fuel dispensed against an existing customer balance.
type FuelTaken struct {
	CustomerName    string
	PaymentMethod   PaymentMethod
	Dispensed       generic.Amount
	PreviousBalance *generic.Amount
	Note            string
}

// Withdrawal: cash taken out of the drawer.
type Withdrawal struct {
	Value        generic.Amount
	CustomerName string
	Note         string
}

// Return: cash put back into the drawer.
type Return struct {
	Value        generic.Amount
	CustomerName string
	Note         string
}

// Other: free-form explanation; the caller chooses the polarity.
type Other struct {
	Value        generic.Amount
	Direction    Polarity
	CustomerName string
	Note         string
}

func (ChequeReceived) Kind() Kind { return KindChequeReceived }
func (DebitReceived) Kind() Kind  { return KindDebitReceived }
func (FuelTaken) Kind() Kind      { return KindFuelTaken }
func (Withdrawal) Kind() Kind     { return KindWithdrawal }
func (Return) Kind() Kind         { return KindReturn }
func (Other) Kind() Kind          { return KindOther }

func (e ChequeReceived) Amount() generic.Amount { return e.Value }
func (e DebitReceived) Amount() generic.Amount  { return e.Value }
func (e FuelTaken) Amount() generic.Amount      { return e.Dispensed }
func (e Withdrawal) Amount() generic.Amount     { return e.Value }
func (e Return) Amount() generic.Amount         { return e.Value }
func (e Other) Amount() generic.Amount          { return e.Value }

func (ChequeReceived) Polarity() Polarity { return Overage }
func (DebitReceived) Polarity() Polarity  { return Overage }
func (FuelTaken) Polarity() Polarity      { return Shortage }
func (Withdrawal) Polarity() Polarity     { return Shortage }
func (Return) Polarity() Polarity         { return Overage }
func (e Other) Polarity() Polarity        { return e.Direction }

// A debit-backed fuel dispense was already paid for and counted.
func (e FuelTaken) NoteOnly() bool    { return e.PaymentMethod == MethodDebit }
func (ChequeReceived) NoteOnly() bool { return false }
func (DebitReceived) NoteOnly() bool  { return false }
func (Withdrawal) NoteOnly() bool     { return false }
func (Return) NoteOnly() bool         { return false }
func (Other) NoteOnly() bool          { return false }

func (e ChequeReceived) Description() string { return e.Note }
func (e DebitReceived) Description() string  { return e.Note }
func (e FuelTaken) Description() string      { return e.Note }
func (e Withdrawal) Description() string     { return e.Note }
func (e Return) Description() string         { return e.Note }
func (e Other) Description() string          { return e.Note }

func (e ChequeReceived) Customer() string { return e.CustomerName }
func (e DebitReceived) Customer() string  { return e.CustomerName }
func (e FuelTaken) Customer() string      { return e.CustomerName }
func (e Withdrawal) Customer() string     { return e.CustomerName }
func (e Return) Customer() string         { return e.CustomerName }
func (e Other) Customer() string          { return e.CustomerName }

func (ChequeReceived) Method() PaymentMethod { return MethodCheque }
func (DebitReceived) Method() PaymentMethod  { return MethodDebit }
func (e FuelTaken) Method() PaymentMethod    { return e.PaymentMethod }
func (Withdrawal) Method() PaymentMethod     { return MethodNone }
func (Return) Method() PaymentMethod         { return MethodNone }
func (Other) Method() PaymentMethod          { return MethodNone }

func (ChequeReceived) isEntry() {}
func (DebitReceived) isEntry()  {}
func (FuelTaken) isEntry()      {}
func (Withdrawal) isEntry()     {}
func (Return) isEntry()         {}
func (Other) isEntry()          {}

// Received entries open or top up a customer's balance.
func (e ChequeReceived) Balance() (*generic.Amount, *generic.Amount, generic.Amount, bool) {
	return receivedBalance(e.PreviousBalance, e.Value)
}

func (e DebitReceived) Balance() (*generic.Amount, *generic.Amount, generic.Amount, bool) {
	return receivedBalance(e.PreviousBalance, e.Value)
}

// Fuel taken draws a balance down, never below zero. Without a previous
// balance there is nothing to carry forward.
func (e FuelTaken) Balance() (*generic.Amount, *generic.Amount, generic.Amount, bool) {
	if e.PreviousBalance == nil {
		return nil, nil, generic.Amount{}, false
	}
	dispensed := e.Dispensed
	return e.PreviousBalance, &dispensed, ResultingBalance(*e.PreviousBalance, dispensed), true
}

func receivedBalance(previous *generic.Amount, value generic.Amount) (*generic.Amount, *generic.Amount, generic.Amount, bool) {
	return previous, nil, generic.ValueOr(previous, generic.UnitCurrency).Add(value), true
}

// ResultingBalance is max(0, previous - dispensed).
func ResultingBalance(previous, dispensed generic.Amount) generic.Amount {
	return previous.Sub(dispensed).Max(previous.Zero())
}

var (
	_ BalanceCarrier = ChequeReceived{}
	_ BalanceCarrier = DebitReceived{}
	_ BalanceCarrier = FuelTaken{}
	_ Entry          = Withdrawal{}
	_ Entry          = Return{}
	_ Entry          = Other{}
)

// Contribution is the signed amount an entry explains: overage positive,
// shortage negative, note-only zero.
func Contribution(e Entry) generic.Amount {
	if e.NoteOnly() {
		return generic.ZeroMoney()
	}
	if e.Polarity() == Shortage {
		return e.Amount().Neg()
	}
	return e.Amount()
}

// =============================================================================
// ITEM - A persisted entry attached to a shift
// =============================================================================

type Item struct {
	ID      generic.ItemID
	ShiftID generic.ShiftID

	// ShiftDate then ShiftPeriod order the customer balance projection.
	// Stores stamp both from the owning shift on load.
	ShiftDate   generic.Date
	ShiftPeriod int

	Entry Entry

	CreatedBy generic.Actor
	CreatedAt time.Time
}

// CustomerBalance is the latest carry-forward balance for one customer and
// payment method.
type CustomerBalance struct {
	CustomerName     string
	PaymentMethod    PaymentMethod
	PreviousBalance  *generic.Amount
	ResultingBalance generic.Amount
	AsOfShiftDate    generic.Date
	ShiftID          generic.ShiftID
	ItemID           generic.ItemID
}
