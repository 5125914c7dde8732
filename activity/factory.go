/*
factory.go - Building entries from flat input and flat storage rows

PURPOSE:
  Clients and databases both speak in flat records: one struct with every
  optional field. The ledger speaks in variants. This file is the only
  place that converts between the two, so the per-kind rules live in one
  spot:

    cheque_received / debit_received  customer required, always overage
    fuel_taken                        customer + method required, shortage,
                                      note-only when paid by debit
    withdrawal                        always shortage
    return                            always overage
    other (or no kind)                caller polarity + description required

  Polarity supplied by the caller is ignored for every kind except other.

SEE ALSO:
  - types.go: Entry variants
  - ledger.go: Uses NewEntry on AddItem
*/
package activity

import (
	"strings"
	"time"

	"github.com/warp/shift-engine/generic"
)

// Spec is the flat item description a supervisor submits.
type Spec struct {
	Kind            Kind
	Amount          generic.Amount
	Polarity        Polarity
	Description     string
	PaymentMethod   PaymentMethod
	CustomerName    string
	PreviousBalance *generic.Amount
}

// NewEntry validates a spec and returns the matching variant.
func NewEntry(spec Spec) (Entry, error) {
	var fields []string
	if !spec.Amount.IsPositive() {
		fields = append(fields, "amount")
	}
	if spec.PreviousBalance != nil && spec.PreviousBalance.IsNegative() {
		fields = append(fields, "previousBalance")
	}
	customer := strings.TrimSpace(spec.CustomerName)
	description := strings.TrimSpace(spec.Description)
	amount := generic.NewAmountFromDecimal(spec.Amount.Value, generic.UnitCurrency)

	kind := spec.Kind
	if kind == "" {
		kind = KindOther
	}

	var entry Entry
	switch kind {
	case KindChequeReceived, KindDebitReceived:
		if customer == "" {
			fields = append(fields, "customerName")
		}
		if kind == KindChequeReceived {
			entry = ChequeReceived{CustomerName: customer, Value: amount, PreviousBalance: spec.PreviousBalance, Note: description}
		} else {
			entry = DebitReceived{CustomerName: customer, Value: amount, PreviousBalance: spec.PreviousBalance, Note: description}
		}
	case KindFuelTaken:
		if customer == "" {
			fields = append(fields, "customerName")
		}
		if !spec.PaymentMethod.Valid() {
			fields = append(fields, "paymentMethod")
		}
		entry = FuelTaken{
			CustomerName:    customer,
			PaymentMethod:   spec.PaymentMethod,
			Dispensed:       amount,
			PreviousBalance: spec.PreviousBalance,
			Note:            description,
		}
	case KindWithdrawal:
		entry = Withdrawal{Value: amount, CustomerName: customer, Note: description}
	case KindReturn:
		entry = Return{Value: amount, CustomerName: customer, Note: description}
	case KindOther:
		if !spec.Polarity.Valid() {
			fields = append(fields, "polarity")
		}
		if description == "" {
			fields = append(fields, "description")
		}
		entry = Other{Value: amount, Direction: spec.Polarity, CustomerName: customer, Note: description}
	default:
		return nil, &generic.ValidationError{Fields: []string{"kind"}, Message: "unknown item kind " + string(spec.Kind)}
	}

	if len(fields) > 0 {
		return nil, &generic.ValidationError{Fields: fields, Message: "invalid " + string(kind) + " item"}
	}
	return entry, nil
}

// =============================================================================
// RECORD - Flat storage row
// =============================================================================

// Record is how stores persist an item. ResultingBalance and NoteOnly are
// written for readers of the raw table but recomputed on Decode.
type Record struct {
	ID               generic.ItemID
	ShiftID          generic.ShiftID
	ShiftDate        generic.Date
	ShiftPeriod      int
	Kind             Kind
	Polarity         Polarity
	Amount           generic.Amount
	Description      string
	PaymentMethod    PaymentMethod
	CustomerName     string
	PreviousBalance  *generic.Amount
	DispensedAmount  *generic.Amount
	ResultingBalance *generic.Amount
	NoteOnly         bool
	CreatedBy        generic.Actor
	CreatedAt        time.Time
}

// ToRecord flattens an item.
func (i Item) ToRecord() Record {
	e := i.Entry
	r := Record{
		ID:            i.ID,
		ShiftID:       i.ShiftID,
		ShiftDate:     i.ShiftDate,
		ShiftPeriod:   i.ShiftPeriod,
		Kind:          e.Kind(),
		Polarity:      e.Polarity(),
		Amount:        e.Amount(),
		Description:   e.Description(),
		PaymentMethod: e.Method(),
		CustomerName:  e.Customer(),
		NoteOnly:      e.NoteOnly(),
		CreatedBy:     i.CreatedBy,
		CreatedAt:     i.CreatedAt,
	}
	if bc, ok := e.(BalanceCarrier); ok {
		if previous, dispensed, resulting, ok := bc.Balance(); ok {
			r.PreviousBalance = previous
			r.DispensedAmount = dispensed
			r.ResultingBalance = resulting.Ptr()
		}
	}
	return r
}

// Decode rebuilds an item from a stored row.
func Decode(r Record) (Item, error) {
	entry, err := NewEntry(Spec{
		Kind:            r.Kind,
		Amount:          r.Amount,
		Polarity:        r.Polarity,
		Description:     r.Description,
		PaymentMethod:   r.PaymentMethod,
		CustomerName:    r.CustomerName,
		PreviousBalance: r.PreviousBalance,
	})
	if err != nil {
		return Item{}, err
	}
	return Item{
		ID:          r.ID,
		ShiftID:     r.ShiftID,
		ShiftDate:   r.ShiftDate,
		ShiftPeriod: r.ShiftPeriod,
		Entry:       entry,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   r.CreatedAt,
	}, nil
}
