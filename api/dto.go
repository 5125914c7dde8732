/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external contract: domain amounts are decimals
  with units, JSON amounts are decimal strings (numbers are accepted on
  input).

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - JSON keys are camelCase and match the field names that appear in
    corrections (countCash, shiftLabel, deposits[2], ...)

NULL VS ABSENT:
  Sheet amounts in a PATCH body distinguish three cases:
    field absent      keep the stored value
    "countCash": null clear it (back to "not entered")
    "countCash": "12" set it
  OptionalAmount records which case it saw.

SEE ALSO:
  - handlers.go: Uses these types
  - shift/types.go: Patch and View
*/
package api

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/reconcile"
	"github.com/warp/shift-engine/shift"
)

// =============================================================================
// OPTIONAL AMOUNT
// =============================================================================

// OptionalAmount is a JSON amount that remembers whether it was present.
type OptionalAmount struct {
	Set   bool
	Value *decimal.Decimal
}

// UnmarshalJSON is called for every present key, null included.
func (o *OptionalAmount) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Value = nil
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("invalid amount %s", b)
	}
	o.Value = &d
	return nil
}

func (o OptionalAmount) field(unit generic.Unit) shift.AmountField {
	if !o.Set {
		return shift.AmountField{}
	}
	if o.Value == nil {
		return shift.SetAmount(nil)
	}
	return shift.SetAmount(generic.NewAmountFromDecimal(*o.Value, unit).Ptr())
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// SheetInput carries sheet fields for create, patch and preview.
type SheetInput struct {
	CountCash     OptionalAmount `json:"countCash"`
	SystemCash    OptionalAmount `json:"systemCash"`
	CountChecks   OptionalAmount `json:"countChecks"`
	SystemChecks  OptionalAmount `json:"systemChecks"`
	CountCredit   OptionalAmount `json:"countCredit"`
	SystemCredit  OptionalAmount `json:"systemCredit"`
	CountInHouse  OptionalAmount `json:"countInHouse"`
	SystemInHouse OptionalAmount `json:"systemInHouse"`
	CountFleet    OptionalAmount `json:"countFleet"`
	SystemFleet   OptionalAmount `json:"systemFleet"`
	CountVoucher  OptionalAmount `json:"countVoucher"`
	SystemVoucher OptionalAmount `json:"systemVoucher"`

	OtherCredit    OptionalAmount `json:"otherCredit"`
	Debit          OptionalAmount `json:"debit"`
	UnleadedVolume OptionalAmount `json:"unleadedVolume"`
	DieselVolume   OptionalAmount `json:"dieselVolume"`

	Deposits *[]decimal.Decimal `json:"deposits"`
	Notes    *string            `json:"notes"`

	HasMissingHardCopyData *bool   `json:"hasMissingHardCopyData"`
	MissingDataNotes       *string `json:"missingDataNotes"`
	OverShortExplained     *bool   `json:"overShortExplained"`
	OverShortExplanation   *string `json:"overShortExplanation"`
}

func (in SheetInput) pairs() map[reconcile.Category][2]OptionalAmount {
	return map[reconcile.Category][2]OptionalAmount{
		reconcile.Cash:    {in.CountCash, in.SystemCash},
		reconcile.Checks:  {in.CountChecks, in.SystemChecks},
		reconcile.Credit:  {in.CountCredit, in.SystemCredit},
		reconcile.InHouse: {in.CountInHouse, in.SystemInHouse},
		reconcile.Fleet:   {in.CountFleet, in.SystemFleet},
		reconcile.Voucher: {in.CountVoucher, in.SystemVoucher},
	}
}

// Patch converts the input into a sheet patch.
func (in SheetInput) Patch() shift.SheetPatch {
	p := shift.SheetPatch{
		Counted:                make(map[reconcile.Category]shift.AmountField),
		System:                 make(map[reconcile.Category]shift.AmountField),
		OtherCredit:            in.OtherCredit.field(generic.UnitCurrency),
		Debit:                  in.Debit.field(generic.UnitCurrency),
		UnleadedVolume:         in.UnleadedVolume.field(generic.UnitLitres),
		DieselVolume:           in.DieselVolume.field(generic.UnitLitres),
		Notes:                  in.Notes,
		HasMissingHardCopyData: in.HasMissingHardCopyData,
		MissingDataNotes:       in.MissingDataNotes,
		OverShortExplained:     in.OverShortExplained,
		OverShortExplanation:   in.OverShortExplanation,
	}
	for c, pair := range in.pairs() {
		if pair[0].Set {
			p.Counted[c] = pair[0].field(generic.UnitCurrency)
		}
		if pair[1].Set {
			p.System[c] = pair[1].field(generic.UnitCurrency)
		}
	}
	if in.Deposits != nil {
		deposits := make([]generic.Amount, len(*in.Deposits))
		for i, d := range *in.Deposits {
			deposits[i] = generic.NewAmountFromDecimal(d, generic.UnitCurrency)
		}
		p.Deposits = &deposits
	}
	return p
}

// Sheet builds a fresh sheet from the input.
func (in SheetInput) Sheet() reconcile.Sheet {
	return in.Patch().Apply(reconcile.Sheet{})
}

// CreateShiftRequest is the body of POST /shifts.
type CreateShiftRequest struct {
	Date         string   `json:"date"`
	ShiftLabel   string   `json:"shiftLabel"`
	Supervisor   string   `json:"supervisor"`
	Status       string   `json:"status,omitempty"`
	DocumentURLs []string `json:"documentUrls,omitempty"`
	SheetInput
}

// PatchShiftRequest is the body of PATCH /shifts/{id}.
type PatchShiftRequest struct {
	Date         *string   `json:"date"`
	ShiftLabel   *string   `json:"shiftLabel"`
	Supervisor   *string   `json:"supervisor"`
	Status       *string   `json:"status"`
	DocumentURLs *[]string `json:"documentUrls"`
	Version      *int64    `json:"version"`
	Reason       string    `json:"reason"`
	SheetInput
}

type ReopenRequest struct {
	Reason string `json:"reason"`
}

type NotesRequest struct {
	Notes string `json:"notes"`
}

// ItemRequest is the body of POST /shifts/{id}/items.
type ItemRequest struct {
	Kind            string           `json:"kind"`
	Amount          decimal.Decimal  `json:"amount"`
	Polarity        string           `json:"polarity,omitempty"`
	Description     string           `json:"description,omitempty"`
	PaymentMethod   string           `json:"paymentMethod,omitempty"`
	CustomerName    string           `json:"customerName,omitempty"`
	PreviousBalance *decimal.Decimal `json:"previousBalance,omitempty"`
}

func (r ItemRequest) Spec() activity.Spec {
	spec := activity.Spec{
		Kind:          activity.Kind(r.Kind),
		Amount:        generic.NewAmountFromDecimal(r.Amount, generic.UnitCurrency),
		Polarity:      activity.Polarity(r.Polarity),
		Description:   r.Description,
		PaymentMethod: activity.PaymentMethod(r.PaymentMethod),
		CustomerName:  r.CustomerName,
	}
	if r.PreviousBalance != nil {
		spec.PreviousBalance = generic.NewAmountFromDecimal(*r.PreviousBalance, generic.UnitCurrency).Ptr()
	}
	return spec
}

// PreviewRequest is the body of POST /preview.
type PreviewRequest struct {
	SheetInput
	Items []ItemRequest `json:"items"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type SheetDTO struct {
	CountCash     *string `json:"countCash"`
	SystemCash    *string `json:"systemCash"`
	CountChecks   *string `json:"countChecks"`
	SystemChecks  *string `json:"systemChecks"`
	CountCredit   *string `json:"countCredit"`
	SystemCredit  *string `json:"systemCredit"`
	CountInHouse  *string `json:"countInHouse"`
	SystemInHouse *string `json:"systemInHouse"`
	CountFleet    *string `json:"countFleet"`
	SystemFleet   *string `json:"systemFleet"`
	CountVoucher  *string `json:"countVoucher"`
	SystemVoucher *string `json:"systemVoucher"`

	OtherCredit    *string `json:"otherCredit"`
	Debit          *string `json:"debit"`
	UnleadedVolume *string `json:"unleadedVolume"`
	DieselVolume   *string `json:"dieselVolume"`

	Deposits []string `json:"deposits"`
	Notes    string   `json:"notes"`

	HasMissingHardCopyData bool   `json:"hasMissingHardCopyData"`
	MissingDataNotes       string `json:"missingDataNotes"`
	OverShortExplained     bool   `json:"overShortExplained"`
	OverShortExplanation   string `json:"overShortExplanation"`
}

// CloseDTO carries full-precision figures plus their 2-place display form.
type CloseDTO struct {
	PerCategory    map[reconcile.Category]string `json:"perCategory"`
	OverShortCash  string                        `json:"overShortCash"`
	OverShortTotal string                        `json:"overShortTotal"`
	TotalDeposits  string                        `json:"totalDeposits"`
	HasRedFlag     bool                          `json:"hasRedFlag"`
	Display        CloseDisplayDTO               `json:"display"`
}

type CloseDisplayDTO struct {
	OverShortCash  string `json:"overShortCash"`
	OverShortTotal string `json:"overShortTotal"`
	TotalDeposits  string `json:"totalDeposits"`
}

type ItemDTO struct {
	ID               string  `json:"id"`
	Kind             string  `json:"kind"`
	Polarity         string  `json:"polarity"`
	Amount           string  `json:"amount"`
	Description      string  `json:"description,omitempty"`
	PaymentMethod    string  `json:"paymentMethod,omitempty"`
	CustomerName     string  `json:"customerName,omitempty"`
	PreviousBalance  *string `json:"previousBalance,omitempty"`
	DispensedAmount  *string `json:"dispensedAmount,omitempty"`
	ResultingBalance *string `json:"resultingBalance,omitempty"`
	NoteOnly         bool    `json:"noteOnly"`
	CreatedBy        string  `json:"createdBy"`
	CreatedAt        string  `json:"createdAt"`
}

type CorrectionDTO struct {
	ID       string `json:"id"`
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
	Reason   string `json:"reason,omitempty"`
	Actor    string `json:"actor"`
	At       string `json:"at"`
}

type NoteChangeDTO struct {
	ID      string `json:"id"`
	OldNote string `json:"oldNote"`
	NewNote string `json:"newNote"`
	Actor   string `json:"actor"`
	At      string `json:"at"`
}

// ShiftDTO is the full view of one shift.
type ShiftDTO struct {
	ID           string   `json:"id"`
	Date         string   `json:"date"`
	ShiftLabel   string   `json:"shiftLabel"`
	Supervisor   string   `json:"supervisor"`
	Status       string   `json:"status"`
	Version      int64    `json:"version"`
	DocumentURLs []string `json:"documentUrls"`
	Sheet        SheetDTO `json:"sheet"`
	CreatedBy    string   `json:"createdBy"`
	CreatedAt    string   `json:"createdAt"`
	UpdatedAt    string   `json:"updatedAt"`

	Close          CloseDTO  `json:"close"`
	Items          []ItemDTO `json:"items"`
	NetOverShort   string    `json:"netOverShort"`
	FullyExplained bool      `json:"fullyExplained"`
	FullyReviewed  bool      `json:"fullyReviewed"`
	MissingFields  []string  `json:"missingFields"`
	RequiresNotes  bool      `json:"requiresNotes"`

	Corrections []CorrectionDTO `json:"corrections"`
	NoteHistory []NoteChangeDTO `json:"noteHistory"`
}

// ShiftSummaryDTO is one row of GET /shifts.
type ShiftSummaryDTO struct {
	ID         string   `json:"id"`
	Date       string   `json:"date"`
	ShiftLabel string   `json:"shiftLabel"`
	Supervisor string   `json:"supervisor"`
	Status     string   `json:"status"`
	Version    int64    `json:"version"`
	Close      CloseDTO `json:"close"`
}

type HistoryDTO struct {
	Corrections []CorrectionDTO `json:"corrections"`
	NoteHistory []NoteChangeDTO `json:"noteHistory"`
}

// CustomerBalanceDTO is read by client auto-fill through newBalance;
// resultingBalance carries the same value under the item's field name.
type CustomerBalanceDTO struct {
	CustomerName     string  `json:"customerName"`
	PaymentMethod    string  `json:"paymentMethod"`
	PreviousBalance  *string `json:"previousBalance,omitempty"`
	NewBalance       string  `json:"newBalance"`
	ResultingBalance string  `json:"resultingBalance"`
	AsOfShiftDate    string  `json:"asOfShiftDate"`
	ShiftID          string  `json:"shiftId"`
	ItemID           string  `json:"itemId"`
}

type PreviewDTO struct {
	Close          CloseDTO `json:"close"`
	NetOverShort   string   `json:"netOverShort"`
	FullyExplained bool     `json:"fullyExplained"`
	FullyReviewed  bool     `json:"fullyReviewed"`
	CanClose       bool     `json:"canClose"`
	MissingFields  []string `json:"missingFields"`
	RequiresNotes  bool     `json:"requiresNotes"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error         string   `json:"error"`
	Code          string   `json:"code,omitempty"`
	Fields        []string `json:"fields,omitempty"`
	RequiresNotes bool     `json:"requiresNotes,omitempty"`
	Details       any      `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func optionalString(a *generic.Amount) *string {
	if a == nil {
		return nil
	}
	s := a.String()
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func toSheetDTO(s reconcile.Sheet) SheetDTO {
	deposits := make([]string, len(s.Deposits))
	for i, d := range s.Deposits {
		deposits[i] = d.String()
	}
	return SheetDTO{
		CountCash:              optionalString(s.Cash.Counted),
		SystemCash:             optionalString(s.Cash.System),
		CountChecks:            optionalString(s.Checks.Counted),
		SystemChecks:           optionalString(s.Checks.System),
		CountCredit:            optionalString(s.Credit.Counted),
		SystemCredit:           optionalString(s.Credit.System),
		CountInHouse:           optionalString(s.InHouse.Counted),
		SystemInHouse:          optionalString(s.InHouse.System),
		CountFleet:             optionalString(s.Fleet.Counted),
		SystemFleet:            optionalString(s.Fleet.System),
		CountVoucher:           optionalString(s.Voucher.Counted),
		SystemVoucher:          optionalString(s.Voucher.System),
		OtherCredit:            optionalString(s.OtherCredit),
		Debit:                  optionalString(s.Debit),
		UnleadedVolume:         optionalString(s.UnleadedVolume),
		DieselVolume:           optionalString(s.DieselVolume),
		Deposits:               deposits,
		Notes:                  s.Notes,
		HasMissingHardCopyData: s.HasMissingHardCopyData,
		MissingDataNotes:       s.MissingDataNotes,
		OverShortExplained:     s.OverShortExplained,
		OverShortExplanation:   s.OverShortExplanation,
	}
}

func toCloseDTO(c reconcile.CloseResult) CloseDTO {
	per := make(map[reconcile.Category]string, len(c.PerCategory))
	for cat, a := range c.PerCategory {
		per[cat] = a.String()
	}
	return CloseDTO{
		PerCategory:    per,
		OverShortCash:  c.OverShortCash.String(),
		OverShortTotal: c.OverShortTotal.String(),
		TotalDeposits:  c.TotalDeposits.String(),
		HasRedFlag:     c.HasRedFlag,
		Display: CloseDisplayDTO{
			OverShortCash:  c.OverShortCash.Display(),
			OverShortTotal: c.OverShortTotal.Display(),
			TotalDeposits:  c.TotalDeposits.Display(),
		},
	}
}

func toItemDTO(item activity.Item) ItemDTO {
	r := item.ToRecord()
	return ItemDTO{
		ID:               string(r.ID),
		Kind:             string(r.Kind),
		Polarity:         string(r.Polarity),
		Amount:           r.Amount.String(),
		Description:      r.Description,
		PaymentMethod:    string(r.PaymentMethod),
		CustomerName:     r.CustomerName,
		PreviousBalance:  optionalString(r.PreviousBalance),
		DispensedAmount:  optionalString(r.DispensedAmount),
		ResultingBalance: optionalString(r.ResultingBalance),
		NoteOnly:         r.NoteOnly,
		CreatedBy:        string(r.CreatedBy),
		CreatedAt:        formatTime(r.CreatedAt),
	}
}

func toCorrectionDTOs(cs []generic.Correction) []CorrectionDTO {
	dtos := make([]CorrectionDTO, len(cs))
	for i, c := range cs {
		dtos[i] = CorrectionDTO{
			ID:       string(c.ID),
			Field:    c.Field,
			OldValue: c.OldValue,
			NewValue: c.NewValue,
			Reason:   c.Reason,
			Actor:    string(c.Actor),
			At:       formatTime(c.At),
		}
	}
	return dtos
}

func toNoteChangeDTOs(ns []generic.NoteChange) []NoteChangeDTO {
	dtos := make([]NoteChangeDTO, len(ns))
	for i, n := range ns {
		dtos[i] = NoteChangeDTO{
			ID:      string(n.ID),
			OldNote: n.OldNote,
			NewNote: n.NewNote,
			Actor:   string(n.Actor),
			At:      formatTime(n.At),
		}
	}
	return dtos
}

func toShiftDTO(v shift.View) ShiftDTO {
	s := v.Shift
	items := make([]ItemDTO, len(v.Items))
	for i, item := range v.Items {
		items[i] = toItemDTO(item)
	}
	urls := s.DocumentURLs
	if urls == nil {
		urls = []string{}
	}
	missing := v.MissingFields
	if missing == nil {
		missing = []string{}
	}
	return ShiftDTO{
		ID:             string(s.ID),
		Date:           s.Date.String(),
		ShiftLabel:     string(s.Label),
		Supervisor:     s.Supervisor,
		Status:         string(s.Status),
		Version:        s.Version,
		DocumentURLs:   urls,
		Sheet:          toSheetDTO(s.Sheet),
		CreatedBy:      string(s.CreatedBy),
		CreatedAt:      formatTime(s.CreatedAt),
		UpdatedAt:      formatTime(s.UpdatedAt),
		Close:          toCloseDTO(v.Close),
		Items:          items,
		NetOverShort:   v.NetOverShort.String(),
		FullyExplained: v.FullyExplained,
		FullyReviewed:  v.FullyReviewed,
		MissingFields:  missing,
		RequiresNotes:  v.RequiresNotes,
		Corrections:    toCorrectionDTOs(v.Corrections),
		NoteHistory:    toNoteChangeDTOs(v.NoteHistory),
	}
}

func toSummaryDTO(s shift.Summary) ShiftSummaryDTO {
	return ShiftSummaryDTO{
		ID:         string(s.Shift.ID),
		Date:       s.Shift.Date.String(),
		ShiftLabel: string(s.Shift.Label),
		Supervisor: s.Shift.Supervisor,
		Status:     string(s.Shift.Status),
		Version:    s.Shift.Version,
		Close:      toCloseDTO(s.Close),
	}
}

func toCustomerBalanceDTO(b activity.CustomerBalance) CustomerBalanceDTO {
	return CustomerBalanceDTO{
		CustomerName:     b.CustomerName,
		PaymentMethod:    string(b.PaymentMethod),
		PreviousBalance:  optionalString(b.PreviousBalance),
		NewBalance:       b.ResultingBalance.String(),
		ResultingBalance: b.ResultingBalance.String(),
		AsOfShiftDate:    b.AsOfShiftDate.String(),
		ShiftID:          string(b.ShiftID),
		ItemID:           string(b.ItemID),
	}
}

func toPreviewDTO(ev reconcile.Evaluation) PreviewDTO {
	missing := ev.Check.MissingFields
	if missing == nil {
		missing = []string{}
	}
	return PreviewDTO{
		Close:          toCloseDTO(ev.Close),
		NetOverShort:   ev.NetOverShort.String(),
		FullyExplained: ev.FullyExplained,
		FullyReviewed:  ev.FullyReviewed,
		CanClose:       ev.Check.CanClose,
		MissingFields:  missing,
		RequiresNotes:  ev.Check.RequiresNotes,
	}
}
