/*
Package generic provides the domain-agnostic building blocks of the shift engine.

PURPOSE:
  Money, volumes, identifiers, calendar dates, the error taxonomy and the
  append-only audit trail live here. Nothing in this package knows what a
  shift or a cheque is; the reconcile, activity and shift packages build
  their semantics on top of these types.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: A decimal quantity with a unit (currency or litres)
  - Identifiers: Type-safe ShiftID / ItemID / AuditID
  - Actor: Who performed a mutation (opaque, supplied by the host)

DESIGN PRINCIPLES:
  1. Precision: decimal.Decimal everywhere, float64 never touches money
  2. Full precision internally, banker's rounding only at display time
  3. Unset is not zero: optional inputs are *Amount and nil means "not entered"

USAGE:
  cash := generic.MustParseAmount("500.00", generic.UnitCurrency)
  pos := generic.MustParseAmount("480", generic.UnitCurrency)
  overShort := cash.Sub(pos) // 20

SEE ALSO:
  - time.go: Date (calendar day of a shift)
  - errors.go: Validation / conflict / not-found errors
  - audit.go: Append-only correction and note history streams
*/
package generic

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitCurrency Unit = "currency"
	UnitLitres   Unit = "litres"
)

func NewAmountFromDecimal(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

// ParseAmount parses a decimal string such as "480.25".
func ParseAmount(s string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Amount{Value: d, Unit: unit}, nil
}

// MustParseAmount is ParseAmount for literals; it panics on malformed input.
func MustParseAmount(s string, unit Unit) Amount {
	a, err := ParseAmount(s, unit)
	if err != nil {
		panic(err)
	}
	return a
}

// Money is shorthand for a currency amount.
func Money(s string) Amount { return MustParseAmount(s, UnitCurrency) }

// Litres is shorthand for a fuel volume.
func Litres(s string) Amount { return MustParseAmount(s, UnitLitres) }

func ZeroMoney() Amount { return Amount{Value: decimal.Zero, Unit: UnitCurrency} }

func (a Amount) Zero() Amount                  { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount           { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount           { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount                   { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) Abs() Amount                   { return Amount{Value: a.Value.Abs(), Unit: a.Unit} }
func (a Amount) IsNegative() bool              { return a.Value.IsNegative() }
func (a Amount) IsZero() bool                  { return a.Value.IsZero() }
func (a Amount) IsPositive() bool              { return a.Value.IsPositive() }
func (a Amount) Equal(b Amount) bool           { return a.Value.Equal(b.Value) }
func (a Amount) GreaterThan(b Amount) bool     { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThanOrEqual(b Amount) bool { return a.Value.LessThanOrEqual(b.Value) }

func (a Amount) Max(b Amount) Amount {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// String is the serialized form used for audit values and storage columns:
// full precision without trailing zeros ("500.00" -> "500").
func (a Amount) String() string { return a.Value.String() }

// Display rounds half-to-even to two places. Only used at output boundaries.
func (a Amount) Display() string { return a.Value.RoundBank(2).StringFixed(2) }

// Ptr returns a pointer to a copy of a, for optional fields.
func (a Amount) Ptr() *Amount { return &a }

// ValueOr returns *a, or the zero amount of the given unit when a is nil.
// Missing inputs count as zero in derived totals.
func ValueOr(a *Amount, unit Unit) Amount {
	if a == nil {
		return Amount{Value: decimal.Zero, Unit: unit}
	}
	return *a
}

// SerializeOptional renders an optional amount; nil serializes as "".
func SerializeOptional(a *Amount) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// SumAmounts adds a list of amounts of the same unit.
func SumAmounts(unit Unit, amounts ...Amount) Amount {
	total := Amount{Value: decimal.Zero, Unit: unit}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ShiftID string
type ItemID string
type AuditID string

// Actor identifies who performed a mutation. Authentication is the host's
// concern; the engine records whatever it is given.
type Actor string

const ActorSystem Actor = "system"

// NewID returns a random identifier with a readable prefix ("shf-", "itm-", ...).
func NewID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
