package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// PERIOD SELECTOR - Which period does a payment apply to?
// =============================================================================

// Selection is the explicit (predecessor, current) pair a payment targets.
// Periods are reconciled strictly in order and each period's fee/status
// computation depends on exactly the immediately preceding period's terminal
// state, so a 2-row due-date window is the minimal context needed.
type Selection struct {
	Target ScheduleEntry

	// Carried-forward state from the predecessor period. Zero-valued when
	// IsFirstPeriod is true.
	OutstandingFromPrev  decimal.Decimal
	LastStatus           Status
	ConsecutiveDefaulted int
	IsFirstPeriod        bool
}

// SelectPeriod chooses the schedule period a payment dated paymentDate
// applies to. The window is [last day of payment month - 2 months, last day
// of payment month]; of the (at most 2) periods due inside it, the later is
// the reconciliation target and the earlier supplies the carried-forward
// state. A single match means this is the loan's first-ever reconciliation.
//
// Returns ErrNoApplicablePeriod when the window matches nothing - a valid
// terminal outcome, e.g. schedule exhausted or window misaligned.
func SelectPeriod(ctx context.Context, store ScheduleStore, loanID string, paymentDate time.Time) (*Selection, error) {
	end := LastDayOfMonth(paymentDate)
	start := AddMonths(end, -2)

	rows, err := store.ListPeriods(ctx, loanID, start, end)
	if err != nil {
		return nil, err
	}
	if len(rows) > 2 {
		rows = rows[:2]
	}

	switch len(rows) {
	case 0:
		return nil, ErrNoApplicablePeriod
	case 1:
		return &Selection{
			Target:              rows[0],
			OutstandingFromPrev: decimal.Zero,
			LastStatus:          StatusNone,
			IsFirstPeriod:       true,
		}, nil
	default:
		prev, target := rows[0], rows[1]
		return &Selection{
			Target:               target,
			OutstandingFromPrev:  prev.OutstandingBalance,
			LastStatus:           prev.Status,
			ConsecutiveDefaulted: prev.ConsecutiveDefaulted,
		}, nil
	}
}
