package shift

import (
	"context"

	"github.com/warp/shift-engine/activity"
	"github.com/warp/shift-engine/generic"
)

// =============================================================================
// REPOSITORY - Shift record persistence
// =============================================================================

// Repository persists shift records.
type Repository interface {
	// CreateShift inserts a new shift. Returns generic.ErrDuplicateShift when
	// (date, label) is taken, regardless of the existing shift's status.
	CreateShift(ctx context.Context, s Shift) error

	// GetShift returns *generic.NotFoundError for an unknown id.
	GetShift(ctx context.Context, id generic.ShiftID) (Shift, error)

	// FindShift looks a shift up by its natural key. Returns nil when absent.
	FindShift(ctx context.Context, date generic.Date, label Label) (*Shift, error)

	// ListShifts returns shifts ordered by date descending, then label.
	ListShifts(ctx context.Context, filter ListFilter) ([]Shift, error)

	// UpdateShift overwrites a shift whose stored version equals
	// expectedVersion. Returns generic.ErrConcurrentModification otherwise.
	UpdateShift(ctx context.Context, s Shift, expectedVersion int64) error
}

// Store is everything the lifecycle needs from persistence: shift records,
// activity items and the append-only audit streams.
// IMPORTANT: the audit half exposes no update or delete.
type Store interface {
	Repository
	activity.Store
	generic.AuditLog
}

// =============================================================================
// TRANSACTIONAL STORE - For atomic multi-write mutations
// =============================================================================

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
