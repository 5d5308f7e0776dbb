/*
store.go - Persistence interfaces consumed by the engine

PURPOSE:
  The engine is pure computation over in-memory records; these interfaces
  are its only contact with storage. Implementations:
    - engine/store: in-memory (tests/dev)
    - store/sqlite: SQLite

ATOMICITY:
  A reconciliation is one read-modify-write unit: update the target period,
  optionally insert one extension period, update the metadata, insert one
  payment audit record. Store.WithTx makes those writes all-or-nothing.
*/
package engine

import (
	"context"
	"time"
)

// =============================================================================
// STORE INTERFACES
// =============================================================================

// ScheduleStore persists schedule periods.
type ScheduleStore interface {
	// ListPeriods returns the loan's periods with due date in [from, to],
	// ordered by due date ascending.
	ListPeriods(ctx context.Context, loanID string, from, to time.Time) ([]ScheduleEntry, error)

	// ListSchedule returns all periods of a loan, ordered by period number.
	ListSchedule(ctx context.Context, loanID string) ([]ScheduleEntry, error)

	// MaxPeriod returns the loan's highest period number, 0 when the loan
	// has no schedule.
	MaxPeriod(ctx context.Context, loanID string) (int, error)

	// UpdatePeriod rewrites the mutable fields of one period, keyed by
	// (loan id, period).
	UpdatePeriod(ctx context.Context, entry ScheduleEntry) error

	// InsertPeriod appends one period (extension periods).
	InsertPeriod(ctx context.Context, entry ScheduleEntry) error

	// InsertSchedule bulk-creates a new loan's periods.
	InsertSchedule(ctx context.Context, entries []ScheduleEntry) error
}

// MetadataStore persists loan-level aggregates.
type MetadataStore interface {
	// GetMetadata returns the loan's metadata, or ErrLoanNotFound.
	GetMetadata(ctx context.Context, loanID string) (*LoanMetadata, error)

	ListMetadata(ctx context.Context) ([]LoanMetadata, error)
	ListMetadataByUser(ctx context.Context, userID string) ([]LoanMetadata, error)

	InsertMetadata(ctx context.Context, meta LoanMetadata) error
	UpdateMetadata(ctx context.Context, meta LoanMetadata) error
}

// PaymentStore is the append-only payment audit log.
type PaymentStore interface {
	InsertPaymentRecord(ctx context.Context, rec PaymentRecord) error
}

// Store bundles all persistence the engine needs, plus transactions.
type Store interface {
	ScheduleStore
	MetadataStore
	PaymentStore

	// WithTx executes fn atomically. If fn returns an error, nothing it
	// wrote is persisted.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// CLOCK
// =============================================================================

// Clock supplies the evaluation date. Injected so tests and month-offset
// projections control time explicitly.
type Clock interface {
	Today() time.Time
}

// SystemClock is the wall-clock implementation.
type SystemClock struct{}

func (SystemClock) Today() time.Time {
	now := time.Now().UTC()
	return dateOnly(now)
}
