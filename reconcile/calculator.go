/*
calculator.go - Over/short, completeness and review gates

PURPOSE:
  Answers every numeric question the lifecycle needs about a shift:

    ComputeClose     per-category and headline over/short, deposits, red flag
    MissingFields    which required inputs are unset (or implausibly zero)
    CanClose         may the shift leave draft?
    NetOverShort     raw over/short minus what account activity explains
    IsFullyExplained net == 0 exactly
    IsFullyReviewed  complete, explained within threshold, paperwork noted

HEADLINE FIGURE:
  Only cash and checks roll into overShortTotal:

    overShortTotal = (countCash + countChecks) - (systemCash + systemChecks)

  Card, in-house, fleet and voucher differences are reported per category
  but settle through their processors, not the drawer.

TWO ACCEPTANCE BARS:
  fully explained:  netOverShort == 0
  review eligible:  |netOverShort| <= Threshold (default 20.00)
  Small unavoidable discrepancies do not block the workflow but stay visible.

PRECISION:
  All arithmetic is full-precision decimal. Rounding happens only when an
  Amount is displayed.

SEE ALSO:
  - sheet.go: Sheet input
  - activity/types.go: Contribution of each entry to the net
  - shift/manager.go: Applies these gates on create/close/re-close
*/
package reconcile

import (
	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
)

// DefaultThreshold is the review tolerance on the net over/short.
var DefaultThreshold = generic.Money("20")

// =============================================================================
// OPTIONS
// =============================================================================

type Options struct {
	// Threshold is the largest |net over/short| a reviewed shift may carry.
	Threshold generic.Amount

	// LegacyZeroHeuristic also flags entered-but-zero volumes and cash when
	// the shift recorded no deposits at all.
	LegacyZeroHeuristic bool
}

func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, LegacyZeroHeuristic: true}
}

type Calculator struct {
	opts Options
}

func New(opts Options) Calculator {
	if opts.Threshold.Value.IsZero() && opts.Threshold.Unit == "" {
		opts.Threshold = DefaultThreshold
	}
	return Calculator{opts: opts}
}

func (c Calculator) Options() Options { return c.opts }

// =============================================================================
// CLOSE FIGURES
// =============================================================================

type CloseResult struct {
	PerCategory    map[Category]generic.Amount
	OverShortCash  generic.Amount
	OverShortTotal generic.Amount
	TotalDeposits  generic.Amount
	HasRedFlag     bool
}

// ComputeClose derives every over/short figure from the sheet.
func ComputeClose(s Sheet) CloseResult {
	per := make(map[Category]generic.Amount, len(Categories))
	for _, c := range Categories {
		per[c] = s.Pair(c).OverShort()
	}
	total := per[Cash].Add(per[Checks])
	return CloseResult{
		PerCategory:    per,
		OverShortCash:  per[Cash],
		OverShortTotal: total,
		TotalDeposits:  s.TotalDeposits(),
		HasRedFlag:     !total.IsZero() && !s.OverShortExplained,
	}
}

func (c Calculator) ComputeClose(s Sheet) CloseResult { return ComputeClose(s) }

// =============================================================================
// COMPLETENESS
// =============================================================================

// MissingFields lists every required input that is unset, in a stable order.
//
// Required: both sides of all six categories, both volumes, at least one
// deposit. With the legacy heuristic on, a shift whose deposits total zero
// and whose volumes are both zero has the volumes and deposits flagged, plus
// the cash pair when it is zero on both sides. Any non-zero deposit or
// volume clears the heuristic.
func (c Calculator) MissingFields(s Sheet) []string {
	var missing []string
	seen := make(map[string]bool)
	add := func(field string) {
		if !seen[field] {
			seen[field] = true
			missing = append(missing, field)
		}
	}

	for _, cat := range Categories {
		p := s.Pair(cat)
		if p.Counted == nil {
			add(CountField(cat))
		}
		if p.System == nil {
			add(SystemField(cat))
		}
	}
	if s.UnleadedVolume == nil {
		add(FieldUnleadedVolume)
	}
	if s.DieselVolume == nil {
		add(FieldDieselVolume)
	}
	if len(s.Deposits) == 0 {
		add(FieldDeposits)
	}

	if c.opts.LegacyZeroHeuristic && c.looksUnentered(s) {
		if isZero(s.Cash.Counted) && isZero(s.Cash.System) {
			add(CountField(Cash))
			add(SystemField(Cash))
		}
		add(FieldUnleadedVolume)
		add(FieldDieselVolume)
		add(FieldDeposits)
	}
	return missing
}

func (c Calculator) looksUnentered(s Sheet) bool {
	return len(s.Deposits) > 0 && s.TotalDeposits().IsZero() &&
		isZero(s.UnleadedVolume) && isZero(s.DieselVolume)
}

func isZero(a *generic.Amount) bool { return a != nil && a.IsZero() }

// ValidateDeposits reports list-shape problems that make a sheet
// unstorable in any status.
func ValidateDeposits(s Sheet) error {
	if len(s.Deposits) > MaxDeposits {
		return &generic.ValidationError{Fields: []string{FieldDeposits}, Message: "at most 6 deposits"}
	}
	for i, d := range s.Deposits {
		if d.IsNegative() {
			return &generic.ValidationError{Fields: []string{generic.IndexedField(FieldDeposits, i)}, Message: "deposit cannot be negative"}
		}
	}
	return nil
}

// CloseCheck is the outcome of CanClose.
type CloseCheck struct {
	CanClose      bool
	MissingFields []string
	RequiresNotes bool
}

// Err converts a failed check into a ValidationError; nil when closable.
func (cc CloseCheck) Err() error {
	if cc.CanClose {
		return nil
	}
	return &generic.ValidationError{
		Fields:        cc.MissingFields,
		RequiresNotes: cc.RequiresNotes,
		Message:       "shift cannot be closed",
	}
}

// CanClose: every required field present, and notes written whenever the
// headline over/short is non-zero.
func (c Calculator) CanClose(s Sheet) CloseCheck {
	missing := c.MissingFields(s)
	requiresNotes := !ComputeClose(s).OverShortTotal.IsZero() && !s.HasNotes()
	return CloseCheck{
		CanClose:      len(missing) == 0 && !requiresNotes,
		MissingFields: missing,
		RequiresNotes: requiresNotes,
	}
}

// =============================================================================
// NET OVER/SHORT
// =============================================================================

// NetOverShort subtracts each entry's contribution from the raw figure:
// overage entries reduce a positive raw amount, shortage entries a negative
// one. Note-only entries contribute nothing.
func NetOverShort(raw generic.Amount, entries []activity.Entry) generic.Amount {
	net := raw
	for _, e := range entries {
		net = net.Sub(activity.Contribution(e))
	}
	return net
}

// Entries unwraps the entries of persisted items.
func Entries(items []activity.Item) []activity.Entry {
	entries := make([]activity.Entry, len(items))
	for i, it := range items {
		entries[i] = it.Entry
	}
	return entries
}

// IsFullyExplained: account activity accounts for every cent.
func IsFullyExplained(s Sheet, entries []activity.Entry) bool {
	return NetOverShort(ComputeClose(s).OverShortTotal, entries).IsZero()
}

// IsFullyReviewed decides between closed and reviewed.
func (c Calculator) IsFullyReviewed(s Sheet, entries []activity.Entry) bool {
	if len(c.MissingFields(s)) > 0 {
		return false
	}
	if s.HasMissingHardCopyData && !hasText(s.MissingDataNotes) {
		return false
	}
	total := ComputeClose(s).OverShortTotal
	if total.IsZero() {
		return true
	}
	if !s.OverShortExplained {
		return false
	}
	return NetOverShort(total, entries).Abs().LessThanOrEqual(c.opts.Threshold)
}

// =============================================================================
// EVALUATION - Everything at once, for previews and read models
// =============================================================================

type Evaluation struct {
	Close          CloseResult
	NetOverShort   generic.Amount
	FullyExplained bool
	FullyReviewed  bool
	Check          CloseCheck
}

func (c Calculator) Evaluate(s Sheet, entries []activity.Entry) Evaluation {
	closeResult := ComputeClose(s)
	net := NetOverShort(closeResult.OverShortTotal, entries)
	return Evaluation{
		Close:          closeResult,
		NetOverShort:   net,
		FullyExplained: net.IsZero(),
		FullyReviewed:  c.IsFullyReviewed(s, entries),
		Check:          c.CanClose(s),
	}
}
