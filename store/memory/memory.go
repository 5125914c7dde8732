// Package memory provides an in-memory shift.TxStore (for tests and dev).
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
	"github.com/warp/shift-engine/shift"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Memory struct {
	mu    sync.RWMutex
	state state
}

type state struct {
	shifts      map[generic.ShiftID]shift.Shift
	byKey       map[naturalKey]generic.ShiftID
	items       []activity.Item
	corrections []generic.Correction
	notes       []generic.NoteChange
}

type naturalKey struct {
	date  string
	label shift.Label
}

func keyOf(s shift.Shift) naturalKey {
	return naturalKey{date: s.Date.String(), label: s.Label}
}

func New() *Memory {
	return &Memory{state: newState()}
}

func newState() state {
	return state{
		shifts: make(map[generic.ShiftID]shift.Shift),
		byKey:  make(map[naturalKey]generic.ShiftID),
	}
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = newState()
	return nil
}

func (m *Memory) Close() error { return nil }

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (m *Memory) WithTx(ctx context.Context, fn func(shift.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state.snapshot()
	if err := fn(&view{st: &m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

// Every Memory method takes the lock and delegates to an unlocked view.

func (m *Memory) read() *view {
	return &view{st: &m.state}
}

func (m *Memory) CreateShift(ctx context.Context, s shift.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().CreateShift(ctx, s)
}

func (m *Memory) GetShift(ctx context.Context, id generic.ShiftID) (shift.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().GetShift(ctx, id)
}

func (m *Memory) FindShift(ctx context.Context, date generic.Date, label shift.Label) (*shift.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().FindShift(ctx, date, label)
}

func (m *Memory) ListShifts(ctx context.Context, filter shift.ListFilter) ([]shift.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().ListShifts(ctx, filter)
}

func (m *Memory) UpdateShift(ctx context.Context, s shift.Shift, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().UpdateShift(ctx, s, expectedVersion)
}

func (m *Memory) AppendItem(ctx context.Context, item activity.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().AppendItem(ctx, item)
}

func (m *Memory) DeleteItem(ctx context.Context, shiftID generic.ShiftID, itemID generic.ItemID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().DeleteItem(ctx, shiftID, itemID)
}

func (m *Memory) LoadItems(ctx context.Context, shiftID generic.ShiftID) ([]activity.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().LoadItems(ctx, shiftID)
}

func (m *Memory) LoadAllItems(ctx context.Context) ([]activity.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().LoadAllItems(ctx)
}

func (m *Memory) AppendCorrections(ctx context.Context, cs []generic.Correction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().AppendCorrections(ctx, cs)
}

func (m *Memory) AppendNoteChange(ctx context.Context, nc generic.NoteChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.read().AppendNoteChange(ctx, nc)
}

func (m *Memory) LoadCorrections(ctx context.Context, shiftID generic.ShiftID) ([]generic.Correction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().LoadCorrections(ctx, shiftID)
}

func (m *Memory) LoadNoteHistory(ctx context.Context, shiftID generic.ShiftID) ([]generic.NoteChange, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.read().LoadNoteHistory(ctx, shiftID)
}

// =============================================================================
// SNAPSHOT
// =============================================================================

func (s state) snapshot() state {
	out := newState()
	for id, sh := range s.shifts {
		out.shifts[id] = cloneShift(sh)
	}
	for k, v := range s.byKey {
		out.byKey[k] = v
	}
	out.items = append([]activity.Item(nil), s.items...)
	out.corrections = append([]generic.Correction(nil), s.corrections...)
	out.notes = append([]generic.NoteChange(nil), s.notes...)
	return out
}

func cloneShift(s shift.Shift) shift.Shift {
	s.Sheet.Deposits = append([]generic.Amount(nil), s.Sheet.Deposits...)
	s.DocumentURLs = append([]string(nil), s.DocumentURLs...)
	return s
}

// =============================================================================
// VIEW - Unlocked operations; callers hold the lock
// =============================================================================

type view struct {
	st *state
}

func (v *view) CreateShift(_ context.Context, s shift.Shift) error {
	if _, taken := v.st.byKey[keyOf(s)]; taken {
		return generic.ErrDuplicateShift
	}
	v.st.shifts[s.ID] = cloneShift(s)
	v.st.byKey[keyOf(s)] = s.ID
	return nil
}

func (v *view) GetShift(_ context.Context, id generic.ShiftID) (shift.Shift, error) {
	s, ok := v.st.shifts[id]
	if !ok {
		return shift.Shift{}, &generic.NotFoundError{Kind: "shift", ID: string(id)}
	}
	return cloneShift(s), nil
}

func (v *view) FindShift(_ context.Context, date generic.Date, label shift.Label) (*shift.Shift, error) {
	id, ok := v.st.byKey[naturalKey{date: date.String(), label: label}]
	if !ok {
		return nil, nil
	}
	s := cloneShift(v.st.shifts[id])
	return &s, nil
}

func (v *view) ListShifts(_ context.Context, filter shift.ListFilter) ([]shift.Shift, error) {
	var out []shift.Shift
	for _, s := range v.st.shifts {
		if filter.From != nil && s.Date.Before(*filter.From) {
			continue
		}
		if filter.To != nil && s.Date.After(*filter.To) {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		out = append(out, cloneShift(s))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Label < out[j].Label
	})
	return out, nil
}

func (v *view) UpdateShift(_ context.Context, s shift.Shift, expectedVersion int64) error {
	current, ok := v.st.shifts[s.ID]
	if !ok {
		return &generic.NotFoundError{Kind: "shift", ID: string(s.ID)}
	}
	if current.Version != expectedVersion {
		return generic.ErrConcurrentModification
	}
	if keyOf(current) != keyOf(s) {
		if other, taken := v.st.byKey[keyOf(s)]; taken && other != s.ID {
			return generic.ErrDuplicateShift
		}
		delete(v.st.byKey, keyOf(current))
		v.st.byKey[keyOf(s)] = s.ID
	}
	v.st.shifts[s.ID] = cloneShift(s)
	return nil
}

func (v *view) AppendItem(_ context.Context, item activity.Item) error {
	if _, ok := v.st.shifts[item.ShiftID]; !ok {
		return &generic.NotFoundError{Kind: "shift", ID: string(item.ShiftID)}
	}
	v.st.items = append(v.st.items, item)
	return nil
}

func (v *view) DeleteItem(_ context.Context, shiftID generic.ShiftID, itemID generic.ItemID) (bool, error) {
	for i, item := range v.st.items {
		if item.ShiftID == shiftID && item.ID == itemID {
			v.st.items = append(v.st.items[:i:i], v.st.items[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (v *view) LoadItems(_ context.Context, shiftID generic.ShiftID) ([]activity.Item, error) {
	var out []activity.Item
	for _, item := range v.st.items {
		if item.ShiftID == shiftID {
			out = append(out, v.withShiftDate(item))
		}
	}
	return out, nil
}

func (v *view) LoadAllItems(_ context.Context) ([]activity.Item, error) {
	out := make([]activity.Item, 0, len(v.st.items))
	for _, item := range v.st.items {
		out = append(out, v.withShiftDate(item))
	}
	return out, nil
}

// withShiftDate stamps the owning shift's current date and period, which
// may have moved while the shift was a draft.
func (v *view) withShiftDate(item activity.Item) activity.Item {
	if s, ok := v.st.shifts[item.ShiftID]; ok {
		item.ShiftDate = s.Date
		item.ShiftPeriod = s.Label.Period()
	}
	return item
}

// Audit streams: append and load only.

func (v *view) AppendCorrections(_ context.Context, cs []generic.Correction) error {
	v.st.corrections = append(v.st.corrections, cs...)
	return nil
}

func (v *view) AppendNoteChange(_ context.Context, nc generic.NoteChange) error {
	v.st.notes = append(v.st.notes, nc)
	return nil
}

func (v *view) LoadCorrections(_ context.Context, shiftID generic.ShiftID) ([]generic.Correction, error) {
	var out []generic.Correction
	for _, c := range v.st.corrections {
		if c.ShiftID == shiftID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (v *view) LoadNoteHistory(_ context.Context, shiftID generic.ShiftID) ([]generic.NoteChange, error) {
	var out []generic.NoteChange
	for _, n := range v.st.notes {
		if n.ShiftID == shiftID {
			out = append(out, n)
		}
	}
	return out, nil
}

var (
	_ shift.TxStore = (*Memory)(nil)
	_ shift.Store   = (*view)(nil)
)
