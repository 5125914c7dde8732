/*
handlers.go - HTTP API handlers for the shift reconciliation engine

PURPOSE:
  Exposes the shift lifecycle manager via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to shift.Manager.

ENDPOINTS:
  Shifts:
    GET    /api/shifts                    List shifts (from, to, status, red_flag)
    POST   /api/shifts                    Create shift (draft or closed)
    GET    /api/shifts/{id}               Full view with close figures and audit
    PATCH  /api/shifts/{id}               Partial update, optional transition
    POST   /api/shifts/{id}/close         Close a draft or reopened shift
    POST   /api/shifts/{id}/reclose       Close a reopened shift
    POST   /api/shifts/{id}/reopen        Reopen with a reason
    PUT    /api/shifts/{id}/notes         Replace notes (any status)
    GET    /api/shifts/{id}/history       Corrections and note history

  Items:
    POST   /api/shifts/{id}/items         Add an over/short item
    DELETE /api/shifts/{id}/items/{itemId} Delete an item

  Reports:
    GET    /api/customer-balances         Latest balance per customer/method
    POST   /api/preview                   Evaluate a sheet without saving

ACTOR:
  Every mutation is attributed to the X-Actor request header. Requests
  without one are attributed to generic.ActorSystem. Authentication is
  left to whatever sits in front of this server.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors (fields lists every offending field)
  - 404: Unknown shift or item
  - 409: Conflict (code carries the reason: duplicate, immutable_field,
         not_editable, invalid_transition, stale_version)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shift"
)

// ActorHeader names the request header that identifies who is acting.
const ActorHeader = "X-Actor"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Resetter is implemented by stores that can wipe themselves.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Pinger is implemented by stores backed by a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Manager *shift.Manager
	Store   shift.TxStore
	Logger  *zap.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a handler around a manager and the store it writes to.
func NewHandler(manager *shift.Manager, store shift.TxStore, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Manager: manager, Store: store, Logger: logger}
}

func actorOf(r *http.Request) generic.Actor {
	if a := r.Header.Get(ActorHeader); a != "" {
		return generic.Actor(a)
	}
	return generic.ActorSystem
}

// =============================================================================
// SHIFT HANDLERS
// =============================================================================

// ListShifts returns shift summaries, newest date first.
// GET /api/shifts?from=2024-03-01&to=2024-03-31&status=closed&red_flag=true
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter shift.ListFilter

	if v := q.Get("from"); v != "" {
		d, err := generic.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
		filter.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := generic.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
		filter.To = &d
	}
	if v := q.Get("status"); v != "" {
		status := shift.Status(v)
		if !status.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid status", nil)
			return
		}
		filter.Status = status
	}
	if v := q.Get("red_flag"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid red_flag (use true or false)", err)
			return
		}
		filter.RedFlagOnly = b
	}

	summaries, err := h.Manager.List(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list shifts", err)
		return
	}

	dtos := make([]ShiftSummaryDTO, len(summaries))
	for i, s := range summaries {
		dtos[i] = toSummaryDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateShift creates a new shift, as draft unless status is "closed".
// POST /api/shifts
func (h *Handler) CreateShift(w http.ResponseWriter, r *http.Request) {
	var req CreateShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	date, err := generic.ParseDate(req.Date)
	if err != nil {
		h.writeDomainError(w, "Invalid date", generic.NewValidationError(shift.FieldDate, "date must be YYYY-MM-DD"))
		return
	}

	view, err := h.Manager.Create(r.Context(), shift.CreateInput{
		Date:         date,
		Label:        shift.Label(req.ShiftLabel),
		Supervisor:   req.Supervisor,
		Sheet:        req.Sheet(),
		DocumentURLs: req.DocumentURLs,
		Status:       shift.Status(req.Status),
	}, actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to create shift", err)
		return
	}

	writeJSON(w, http.StatusCreated, toShiftDTO(view))
}

// GetShift returns the full view of one shift.
// GET /api/shifts/{id}
func (h *Handler) GetShift(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.Get(r.Context(), shiftID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to get shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(view))
}

// PatchShift applies a partial update.
// PATCH /api/shifts/{id}
//
// Example body (reopen and correct in one request):
//
//	{"status": "reopened", "reason": "recount", "countCash": "510", "version": 3}
func (h *Handler) PatchShift(w http.ResponseWriter, r *http.Request) {
	var req PatchShiftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	p := shift.Patch{
		Supervisor:      req.Supervisor,
		Sheet:           req.Patch(),
		DocumentURLs:    req.DocumentURLs,
		ExpectedVersion: req.Version,
		Reason:          req.Reason,
	}
	if req.Date != nil {
		date, err := generic.ParseDate(*req.Date)
		if err != nil {
			h.writeDomainError(w, "Invalid date", generic.NewValidationError(shift.FieldDate, "date must be YYYY-MM-DD"))
			return
		}
		p.Date = &date
	}
	if req.ShiftLabel != nil {
		label := shift.Label(*req.ShiftLabel)
		p.Label = &label
	}
	if req.Status != nil {
		status := shift.Status(*req.Status)
		p.Status = &status
	}

	view, err := h.Manager.Patch(r.Context(), shiftID(r), p, actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to update shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(view))
}

// CloseShift closes a draft or reopened shift. The shift lands on
// "reviewed" when it is already fully reviewed.
// POST /api/shifts/{id}/close
func (h *Handler) CloseShift(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.Close(r.Context(), shiftID(r), actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to close shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(view))
}

// RecloseShift closes a reopened shift.
// POST /api/shifts/{id}/reclose
func (h *Handler) RecloseShift(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.Reclose(r.Context(), shiftID(r), actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to re-close shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(view))
}

// ReopenShift makes a closed or reviewed shift editable again.
// POST /api/shifts/{id}/reopen
func (h *Handler) ReopenShift(w http.ResponseWriter, r *http.Request) {
	// The reason is optional, so an empty body is an empty request.
	var req ReopenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	view, err := h.Manager.Reopen(r.Context(), shiftID(r), req.Reason, actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to reopen shift", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(view))
}

// UpdateNotes replaces a shift's notes.
// PUT /api/shifts/{id}/notes
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req NotesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	view, err := h.Manager.EditNotes(r.Context(), shiftID(r), req.Notes, actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to update notes", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(view))
}

// GetHistory returns corrections and note history, newest first.
// GET /api/shifts/{id}/history
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	history, err := h.Manager.History(r.Context(), shiftID(r))
	if err != nil {
		h.writeDomainError(w, "Failed to load history", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryDTO{
		Corrections: toCorrectionDTOs(history.Corrections),
		NoteHistory: toNoteChangeDTOs(history.NoteHistory),
	})
}

// =============================================================================
// ITEM HANDLERS
// =============================================================================

// AddItem attaches an over/short item to a draft or reopened shift.
// POST /api/shifts/{id}/items
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	view, err := h.Manager.AddItem(r.Context(), shiftID(r), req.Spec(), actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to add item", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(view))
}

// DeleteItem removes an item. Deleting an unknown item id succeeds.
// DELETE /api/shifts/{id}/items/{itemId}
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID := generic.ItemID(chi.URLParam(r, "itemId"))

	view, err := h.Manager.DeleteItem(r.Context(), shiftID(r), itemID, actorOf(r))
	if err != nil {
		h.writeDomainError(w, "Failed to delete item", err)
		return
	}
	writeJSON(w, http.StatusOK, toShiftDTO(view))
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// ListCustomerBalances returns the latest carried balance per customer and
// payment method.
// GET /api/customer-balances
func (h *Handler) ListCustomerBalances(w http.ResponseWriter, r *http.Request) {
	balances, err := h.Manager.CustomerBalances(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to load customer balances", err)
		return
	}

	dtos := make([]CustomerBalanceDTO, len(balances))
	for i, b := range balances {
		dtos[i] = toCustomerBalanceDTO(b)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Preview evaluates a sheet and prospective items without saving anything.
// POST /api/preview
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	specs := make([]activity.Spec, len(req.Items))
	for i, item := range req.Items {
		specs[i] = item.Spec()
	}

	ev, err := h.Manager.Preview(req.Sheet(), specs)
	if err != nil {
		h.writeDomainError(w, "Failed to evaluate sheet", err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(ev))
}

// Health reports whether the store is reachable.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if p, ok := h.Store.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "Store unreachable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func shiftID(r *http.Request) generic.ShiftID {
	return generic.ShiftID(chi.URLParam(r, "id"))
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps the generic error categories to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	var verr *generic.ValidationError
	var cerr *generic.ConflictError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:         err.Error(),
			Code:          "validation",
			Fields:        verr.Fields,
			RequiresNotes: verr.RequiresNotes,
		})
	case errors.As(err, &cerr):
		resp := ErrorResponse{Error: cerr.Error(), Code: string(cerr.Reason)}
		if cerr.Field != "" {
			resp.Fields = []string{cerr.Field}
		}
		writeJSON(w, http.StatusConflict, resp)
	case generic.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, nil)
	}
}
