/*
errors.go - Centralized error types for the reconciliation engine

ERROR CATEGORIES:
  1. Terminal outcomes   - Not fatal; callers branch on them (no applicable period)
  2. Validation errors   - Malformed input (numeric format)
  3. Store errors        - Transient data-access failures, lock contention

USAGE:
  Callers branch with errors.Is:

    entry, err := eng.RecordPayment(ctx, ev)
    if errors.Is(err, engine.ErrNoApplicablePeriod) {
        // valid terminal outcome, not a failure
    }
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrLoanNotFound is returned when no metadata exists for a loan id.
	ErrLoanNotFound = errors.New("loan not found")

	// ErrNoApplicablePeriod is returned when the due-date window matches no
	// schedule period. This is a valid terminal outcome (schedule exhausted
	// or window misaligned), not a failure.
	ErrNoApplicablePeriod = errors.New("no applicable period")

	// ErrInvalidNumericFormat is returned when a numeric input string is not
	// numeric after decimal-separator substitution.
	ErrInvalidNumericFormat = errors.New("invalid numeric format")

	// ErrStoreUnavailable marks a transient data-access failure. Retryable
	// at the caller's discretion.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrConcurrentModification is returned on lock contention while a loan
	// is being reconciled. Retryable.
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidNumericFormatError reports the raw value that failed to parse.
type InvalidNumericFormatError struct {
	Raw string
}

func (e *InvalidNumericFormatError) Error() string {
	return fmt.Sprintf("invalid numeric format: %q", e.Raw)
}

func (e *InvalidNumericFormatError) Unwrap() error {
	return ErrInvalidNumericFormat
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing loan or period.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound) ||
		errors.Is(err, ErrNoApplicablePeriod)
}
