/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the store with realistic
	shifts for demos. Every loader goes through shift.Manager, so the data
	passes the same gates, audit and status rules as API traffic.

AVAILABLE SCENARIOS:

	balanced-week:        Reviewed shifts over three days plus one open draft
	red-flag:             An unexplained shortage next to an explained overage
	customer-accounts:    Cheque and debit customers carried across two days
	reopened-correction:  A reviewed shift reopened, corrected and re-closed

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create shifts (draft when items follow, closed otherwise)
 3. Add items to drafts, then close them

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "red-flag"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Create loader function: loadXxxScenario(ctx)
 3. Add case to LoadScenario handler

NOTE:

	Scenarios reset the store. The routes are only mounted when
	Options.EnableScenarios is set.

SEE ALSO:
  - handlers.go: Handler and error mapping
  - shift/manager.go: Lifecycle operations used by the loaders
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/reconcile"
	"github.com/warp/shift-engine/shift"
)

// scenarioActor is recorded on everything a scenario writes.
const scenarioActor generic.Actor = "scenario"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "balanced-week",
		Name:        "Balanced Week",
		Description: "Three days of balanced shifts that close straight to reviewed, plus one draft",
		Category:    "reconciliation",
	},
	{
		ID:          "red-flag",
		Name:        "Red Flag",
		Description: "A $45 unexplained shortage beside a $12 overage explained by a return",
		Category:    "reconciliation",
	},
	{
		ID:          "customer-accounts",
		Name:        "Customer Accounts",
		Description: "A cheque customer drawn down by fuel the next day, and a debit hold",
		Category:    "customers",
	},
	{
		ID:          "reopened-correction",
		Name:        "Reopened Correction",
		Description: "A reviewed shift reopened to fix the cash count, with its audit trail",
		Category:    "audit",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	if current == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, ScenarioDTO{ID: current, Name: current})
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "balanced-week":
		load = h.loadBalancedWeekScenario
	case "red-flag":
		load = h.loadRedFlagScenario
	case "customer-accounts":
		load = h.loadCustomerAccountsScenario
	case "reopened-correction":
		load = h.loadReopenedCorrectionScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// ResetDatabase clears every shift, item and audit record.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
		return
	}
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(Resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	return rs.Reset(ctx)
}

// =============================================================================
// SHEET HELPERS
// =============================================================================

func money(s string) *generic.Amount { return generic.Money(s).Ptr() }

func pair(counted, system string) reconcile.Pair {
	return reconcile.Pair{Counted: money(counted), System: money(system)}
}

// completeSheet is a fully entered sheet where only cash and checks vary.
func completeSheet(countCash, systemCash, countChecks, systemChecks string) reconcile.Sheet {
	return reconcile.Sheet{
		Cash:           pair(countCash, systemCash),
		Checks:         pair(countChecks, systemChecks),
		Credit:         pair("850.40", "850.40"),
		InHouse:        pair("0", "0"),
		Fleet:          pair("120", "120"),
		Voucher:        pair("0", "0"),
		OtherCredit:    money("0"),
		Debit:          money("310.15"),
		UnleadedVolume: generic.Litres("1480.2").Ptr(),
		DieselVolume:   generic.Litres("390").Ptr(),
		Deposits:       []generic.Amount{generic.Money("600"), generic.Money("400")},
	}
}

func (h *Handler) create(ctx context.Context, date string, label shift.Label, supervisor string, sheet reconcile.Sheet, status shift.Status) (shift.View, error) {
	return h.Manager.Create(ctx, shift.CreateInput{
		Date:       generic.MustParseDate(date),
		Label:      label,
		Supervisor: supervisor,
		Sheet:      sheet,
		Status:     status,
	}, scenarioActor)
}

// createWithItems creates a draft, attaches the items and closes it.
func (h *Handler) createWithItems(ctx context.Context, date string, label shift.Label, supervisor string, sheet reconcile.Sheet, specs ...activity.Spec) error {
	view, err := h.create(ctx, date, label, supervisor, sheet, shift.StatusDraft)
	if err != nil {
		return err
	}
	for _, spec := range specs {
		if _, err := h.Manager.AddItem(ctx, view.Shift.ID, spec, scenarioActor); err != nil {
			return err
		}
	}
	_, err = h.Manager.Close(ctx, view.Shift.ID, scenarioActor)
	return err
}

// =============================================================================
// SCENARIO: Balanced Week
// =============================================================================

func (h *Handler) loadBalancedWeekScenario(ctx context.Context) error {
	days := []string{"2024-03-04", "2024-03-05", "2024-03-06"}
	supervisors := map[shift.Label]string{
		shift.LabelMorning: "Dana",
		shift.LabelEvening: "Luis",
		shift.LabelNight:   "Priya",
	}
	for _, day := range days {
		for _, label := range []shift.Label{shift.LabelMorning, shift.LabelEvening, shift.LabelNight} {
			sheet := completeSheet("1250.75", "1250.75", "300", "300")
			if _, err := h.create(ctx, day, label, supervisors[label], sheet, shift.StatusClosed); err != nil {
				return fmt.Errorf("%s %s: %w", day, label, err)
			}
		}
	}

	// Today's morning shift is still being entered.
	draft := reconcile.Sheet{
		Cash:     reconcile.Pair{Counted: money("640")},
		Deposits: []generic.Amount{generic.Money("300")},
		Notes:    "Waiting on the POS end-of-shift report",
	}
	_, err := h.create(ctx, "2024-03-07", shift.LabelMorning, "Dana", draft, shift.StatusDraft)
	return err
}

// =============================================================================
// SCENARIO: Red Flag
// =============================================================================

func (h *Handler) loadRedFlagScenario(ctx context.Context) error {
	short := completeSheet("955", "1000", "300", "300")
	short.Notes = "Till short at handover, recount pending"
	if _, err := h.create(ctx, "2024-03-04", shift.LabelMorning, "Dana", short, shift.StatusClosed); err != nil {
		return err
	}

	over := completeSheet("1012", "1000", "300", "300")
	over.Notes = "Customer returned change"
	over.OverShortExplained = true
	over.OverShortExplanation = "Return of $12 recorded as an item"
	return h.createWithItems(ctx, "2024-03-04", shift.LabelEvening, "Luis", over, activity.Spec{
		Kind:        activity.KindReturn,
		Amount:      generic.Money("12"),
		Description: "Change handed back by customer",
	})
}

// =============================================================================
// SCENARIO: Customer Accounts
// =============================================================================

func (h *Handler) loadCustomerAccountsScenario(ctx context.Context) error {
	// Day 1: Acme prepays $500 by cheque and Bolt $200 by debit. The POS
	// knows about neither.
	day1 := completeSheet("1200", "1000", "700", "200")
	day1.Notes = "Acme Haulage and Bolt Couriers prepaid"
	day1.OverShortExplained = true
	day1.OverShortExplanation = "Payments received on account"
	err := h.createWithItems(ctx, "2024-03-04", shift.LabelMorning, "Dana", day1,
		activity.Spec{
			Kind:            activity.KindChequeReceived,
			Amount:          generic.Money("500"),
			CustomerName:    "Acme Haulage",
			PreviousBalance: money("0"),
			Description:     "Cheque #1042",
		},
		activity.Spec{
			Kind:            activity.KindDebitReceived,
			Amount:          generic.Money("200"),
			CustomerName:    "Bolt Couriers",
			PreviousBalance: money("0"),
			Description:     "Debit hold",
		},
	)
	if err != nil {
		return fmt.Errorf("day 1: %w", err)
	}

	// Day 2: Acme draws $120 of fuel against the cheque, Bolt $80 against the hold.
	day2 := completeSheet("880", "1000", "200", "200")
	day2.Notes = "Account fuel for Acme and Bolt"
	day2.OverShortExplained = true
	day2.OverShortExplanation = "Fuel taken on account"
	err = h.createWithItems(ctx, "2024-03-05", shift.LabelMorning, "Luis", day2,
		activity.Spec{
			Kind:            activity.KindFuelTaken,
			Amount:          generic.Money("120"),
			CustomerName:    "Acme Haulage",
			PaymentMethod:   activity.MethodCheque,
			PreviousBalance: money("500"),
		},
		activity.Spec{
			Kind:            activity.KindFuelTaken,
			Amount:          generic.Money("80"),
			CustomerName:    "Bolt Couriers",
			PaymentMethod:   activity.MethodDebit,
			PreviousBalance: money("200"),
		},
	)
	if err != nil {
		return fmt.Errorf("day 2: %w", err)
	}
	return nil
}

// =============================================================================
// SCENARIO: Reopened Correction
// =============================================================================

func (h *Handler) loadReopenedCorrectionScenario(ctx context.Context) error {
	view, err := h.create(ctx, "2024-03-04", shift.LabelNight, "Priya", completeSheet("800", "800", "150", "150"), shift.StatusClosed)
	if err != nil {
		return err
	}
	id := view.Shift.ID

	if _, err := h.Manager.Reopen(ctx, id, "Safe recount found an extra $10", "manager-kim"); err != nil {
		return err
	}

	status := shift.StatusClosed
	notes := "Safe recount: $10 bundled with the float"
	explained := true
	explanation := "Counting error on the first close"
	_, err = h.Manager.Patch(ctx, id, shift.Patch{
		Sheet: shift.SheetPatch{
			Counted:              map[reconcile.Category]shift.AmountField{reconcile.Cash: shift.SetAmount(money("810"))},
			Notes:                &notes,
			OverShortExplained:   &explained,
			OverShortExplanation: &explanation,
		},
		Status: &status,
		Reason: "Recount after reopen",
	}, "manager-kim")
	return err
}
