// Package reconcile is the reconciliation calculator: pure functions over a
// shift's counted and system totals. Nothing here performs I/O or fails;
// every result is a value the caller acts on.
package reconcile

import (
	"strings"

	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// PAYMENT CATEGORIES
// =============================================================================

type Category string

const (
	Cash    Category = "cash"
	Checks  Category = "checks"
	Credit  Category = "credit"
	InHouse Category = "in_house"
	Fleet   Category = "fleet"
	Voucher Category = "voucher"
)

// Categories lists every payment category in display order.
var Categories = []Category{Cash, Checks, Credit, InHouse, Fleet, Voucher}

var categoryFieldSuffix = map[Category]string{
	Cash:    "Cash",
	Checks:  "Checks",
	Credit:  "Credit",
	InHouse: "InHouse",
	Fleet:   "Fleet",
	Voucher: "Voucher",
}

// CountField is the field name of a category's counted amount (countCash).
func CountField(c Category) string { return "count" + categoryFieldSuffix[c] }

// SystemField is the field name of a category's system amount (systemCash).
func SystemField(c Category) string { return "system" + categoryFieldSuffix[c] }

// Field names of the ungrouped inputs.
const (
	FieldOtherCredit          = "otherCredit"
	FieldDebit                = "debit"
	FieldUnleadedVolume       = "unleadedVolume"
	FieldDieselVolume         = "dieselVolume"
	FieldDeposits             = "deposits"
	FieldNotes                = "notes"
	FieldHardCopyMissing      = "hasMissingHardCopyData"
	FieldMissingDataNotes     = "missingDataNotes"
	FieldOverShortExplained   = "overShortExplained"
	FieldOverShortExplanation = "overShortExplanation"
)

// MaxDeposits bounds the deposit list.
const MaxDeposits = 6

// =============================================================================
// SHEET - Everything the cashier and POS reported for one shift
// =============================================================================

// Pair is a counted/system pair. nil means "not entered".
type Pair struct {
	Counted *generic.Amount
	System  *generic.Amount
}

// OverShort is counted - system with missing values counted as zero.
func (p Pair) OverShort() generic.Amount {
	return generic.ValueOr(p.Counted, generic.UnitCurrency).Sub(generic.ValueOr(p.System, generic.UnitCurrency))
}

type Sheet struct {
	Cash    Pair
	Checks  Pair
	Credit  Pair
	InHouse Pair
	Fleet   Pair
	Voucher Pair

	OtherCredit    *generic.Amount
	Debit          *generic.Amount
	UnleadedVolume *generic.Amount
	DieselVolume   *generic.Amount

	// Deposits holds 1..MaxDeposits drop amounts, in entry order.
	Deposits []generic.Amount

	Notes string

	HasMissingHardCopyData bool
	MissingDataNotes       string

	OverShortExplained   bool
	OverShortExplanation string
}

// Pair returns the counted/system pair of a category.
func (s Sheet) Pair(c Category) Pair {
	switch c {
	case Cash:
		return s.Cash
	case Checks:
		return s.Checks
	case Credit:
		return s.Credit
	case InHouse:
		return s.InHouse
	case Fleet:
		return s.Fleet
	case Voucher:
		return s.Voucher
	}
	return Pair{}
}

// SetPair replaces the pair of a category.
func (s *Sheet) SetPair(c Category, p Pair) {
	switch c {
	case Cash:
		s.Cash = p
	case Checks:
		s.Checks = p
	case Credit:
		s.Credit = p
	case InHouse:
		s.InHouse = p
	case Fleet:
		s.Fleet = p
	case Voucher:
		s.Voucher = p
	}
}

func (s Sheet) TotalDeposits() generic.Amount {
	return generic.SumAmounts(generic.UnitCurrency, s.Deposits...)
}

func (s Sheet) HasNotes() bool { return hasText(s.Notes) }

// Fields renders every editable sheet field in its serialized form, in a
// stable order. Used for audit diffs.
func (s Sheet) Fields() []generic.FieldValue {
	fields := make([]generic.FieldValue, 0, 2*len(Categories)+10)
	for _, c := range Categories {
		p := s.Pair(c)
		fields = append(fields,
			generic.ScalarField(CountField(c), generic.SerializeOptional(p.Counted)),
			generic.ScalarField(SystemField(c), generic.SerializeOptional(p.System)),
		)
	}
	deposits := make([]string, len(s.Deposits))
	for i, d := range s.Deposits {
		deposits[i] = d.String()
	}
	fields = append(fields,
		generic.ScalarField(FieldOtherCredit, generic.SerializeOptional(s.OtherCredit)),
		generic.ScalarField(FieldDebit, generic.SerializeOptional(s.Debit)),
		generic.ScalarField(FieldUnleadedVolume, generic.SerializeOptional(s.UnleadedVolume)),
		generic.ScalarField(FieldDieselVolume, generic.SerializeOptional(s.DieselVolume)),
		generic.ListField(FieldDeposits, deposits),
		generic.ScalarField(FieldNotes, s.Notes),
		generic.ScalarField(FieldHardCopyMissing, generic.BoolString(s.HasMissingHardCopyData)),
		generic.ScalarField(FieldMissingDataNotes, s.MissingDataNotes),
		generic.ScalarField(FieldOverShortExplained, generic.BoolString(s.OverShortExplained)),
		generic.ScalarField(FieldOverShortExplanation, s.OverShortExplanation),
	)
	return fields
}

func hasText(s string) bool { return strings.TrimSpace(s) != "" }
