/*
reconcile.go - The period reconciler

PURPOSE:
  Recomputes one schedule period's fields given a new payment. Combines the
  fee policy (fees.go) and the status state machine (status.go), then derives
  the cumulative balances.

ALGORITHM (given target period + carried-forward context + payment):
  1. is_late        = payment date past due date
  2. payment_in_full = carried shortfall covered by prior + new payments
  3. Fee policy     -> late fee and the adjusted default streak
                       (incremented on repeat lateness, reset by a full
                       on-time catch-up)
  4. total_due      = installment - outstanding_from_prev + late fee
                      (subtracting a negative carried balance adds it; a
                       carried overpayment reduces what's due)
  5. payed_amount  += payment
  6. calc_installment = max(0, total_due - payed_amount)
  7. outstanding    = payed_amount - total_due
  8. status         = state machine on the FINAL outstanding
  9. late_days      = days past due, 0 when on time

All derived money is rounded to 2 decimal places, half away from zero.
The reconciler is pure: it never touches the store. Extension periods are
decided by the engine (engine.go), which knows the loan's last period.
*/
package engine

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RECONCILIATION CONTEXT
// =============================================================================

// ReconciliationInput is the full, explicit context for reconciling one
// period. The carried-forward fields come from the predecessor period's
// terminal state (see selector.go); they are zero-valued for a loan's
// first-ever reconciliation.
type ReconciliationInput struct {
	// Entry is the target period as currently stored.
	Entry ScheduleEntry

	// Carried-forward context from the predecessor period.
	OutstandingFromPrev  decimal.Decimal // signed; negative = shortfall
	LastStatus           Status          // StatusNone when no predecessor
	ConsecutiveDefaulted int
	IsFirstPeriod        bool

	// The payment being applied now.
	Payment     decimal.Decimal
	PaymentDate time.Time
}

// ReconciliationResult is the reconciled period plus the derived facts the
// aggregation layer needs.
type ReconciliationResult struct {
	Entry ScheduleEntry

	TotalDue      decimal.Decimal
	IsLate        bool
	PaymentInFull bool

	// PrevStatus is the target period's own status before this
	// reconciliation (not the predecessor period's).
	PrevStatus Status
	// SettledNow is true when this reconciliation moved the period from
	// owing to settled. The metadata aggregator retires principal on this
	// transition, exactly once per period.
	SettledNow bool
}

// =============================================================================
// RECONCILER
// =============================================================================

// Reconcile recomputes the target period's fields for one payment.
func Reconcile(in ReconciliationInput) ReconciliationResult {
	entry := in.Entry
	prevStatus := entry.Status

	isLate := dateOnly(in.PaymentDate).After(dateOnly(entry.DueDate))
	paymentInFull := in.OutstandingFromPrev.Abs().
		LessThan(entry.PayedAmount.Add(in.Payment))

	fees := applyFeePolicy(in, isLate, paymentInFull)
	entry.LatePaymentFee = fees.fee
	entry.ConsecutiveDefaulted = fees.consecutiveDefaulted

	totalDue := round2(entry.Installment.
		Sub(in.OutstandingFromPrev).
		Add(entry.LatePaymentFee))

	entry.PayedAmount = entry.PayedAmount.Add(in.Payment)
	entry.CalcInstallment = maxZero(round2(totalDue.Sub(entry.PayedAmount)))
	entry.OutstandingBalance = round2(entry.PayedAmount.Sub(totalDue))

	entry.Status = NextStatus(entry.ConsecutiveDefaulted, in.LastStatus, isLate, entry.OutstandingBalance)

	if isLate {
		entry.LateDays = DaysLate(entry.DueDate, in.PaymentDate)
	} else {
		entry.LateDays = 0
	}

	paymentDate := dateOnly(in.PaymentDate)
	entry.PaymentDate = &paymentDate
	if in.Payment.IsPositive() {
		entry.ReceiptID = fmt.Sprintf("R-%s-%d", entry.LoanID, entry.Period)
	}

	settled := !entry.OutstandingBalance.IsNegative()
	return ReconciliationResult{
		Entry:         entry,
		TotalDue:      totalDue,
		IsLate:        isLate,
		PaymentInFull: paymentInFull,
		PrevStatus:    prevStatus,
		SettledNow:    settled && prevStatus != StatusPayed,
	}
}
