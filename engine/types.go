/*
Package engine implements the period reconciliation core for amortizing loans.

PURPOSE:
  A loan is a fixed schedule of installment periods plus a stream of incoming
  payments. This package reconciles each payment against the schedule: it
  selects the period the payment applies to, computes late fees and a new
  settlement status, derives the running balances, and synthesizes a trailing
  extension period when the final scheduled period cannot be fully settled.

KEY CONCEPTS IN THIS FILE (types.go):
  - ScheduleEntry: One installment period of a loan's amortization plan
  - LoanMetadata:  Loan-level aggregates (balance, cumulative paid, risk)
  - PaymentEvent:  An incoming payment to reconcile (ephemeral input)
  - Status:        Settlement state of a period (pending/payed/late/default/blocked)

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors; all
     money is rounded to 2 decimal places, half away from zero.
  2. Explicit context: Everything a reconciliation depends on is passed in a
     typed input struct - no process-wide mutable state.
  3. Pure core: Fee policy, status machine, and the reconciler are pure
     functions; persistence happens only at the Store boundary.

SEE ALSO:
  - reconcile.go: The central reconciliation algorithm
  - fees.go:      Late fee policy
  - status.go:    Settlement status state machine
  - store.go:     Persistence interfaces
*/
package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STATUS - Settlement state of a period
// =============================================================================

// Status is the settlement state of a schedule period.
type Status string

const (
	StatusPending Status = "pending"
	StatusPayed   Status = "payed"
	StatusLate    Status = "late"
	StatusDefault Status = "default"
	StatusBlocked Status = "blocked"

	// StatusNone marks the absence of a predecessor period (first-ever
	// reconciliation of a loan).
	StatusNone Status = ""
)

// =============================================================================
// SCHEDULE ENTRY - One installment period
// =============================================================================

// ScheduleEntry is one installment period of a loan's amortization plan.
// Period numbers for a loan form a contiguous ascending sequence starting
// at 1; extension periods append to that sequence.
type ScheduleEntry struct {
	LoanID string
	Period int

	DueDate time.Time

	// Contractual amounts, fixed at schedule creation.
	Installment  decimal.Decimal
	Principal    decimal.Decimal
	Interest     decimal.Decimal
	ServiceFee   decimal.Decimal
	InsuranceFee decimal.Decimal

	// Mutable reconciliation state.
	LatePaymentFee decimal.Decimal
	PayedAmount    decimal.Decimal // cumulative, non-decreasing
	// OutstandingBalance is signed: negative = still owed, positive = overpaid.
	OutstandingBalance decimal.Decimal
	// CalcInstallment is the total still due this period, including
	// carried-forward shortfall and fee; 0 once fully covered.
	CalcInstallment      decimal.Decimal
	LateDays             int
	Status               Status
	PaymentDate          *time.Time
	ReceiptID            string
	ConsecutiveDefaulted int
}

// =============================================================================
// LOAN METADATA - Loan-level aggregates, 1:1 with a schedule
// =============================================================================

// LoanMetadata carries the loan-level aggregates for one loan.
type LoanMetadata struct {
	UserID string
	LoanID string

	Amount      decimal.Decimal // original principal
	Term        int             // months
	Rate        decimal.Decimal // annual rate, percent
	Installment decimal.Decimal // contractual installment of the first period

	// Running aggregates, updated after each reconciliation.
	Payed             decimal.Decimal // cumulative paid, non-decreasing
	Balance           decimal.Decimal // remaining principal, non-increasing
	DefaultedPayments int
	DefaultedAmount   decimal.Decimal

	StartDate time.Time
	EndDate   time.Time

	// Risk attributes are static, set at creation; the reconciliation
	// engine never touches them.
	RiskDistance   decimal.Decimal
	RiskScore      decimal.Decimal
	RiskCategory   string
	ClosestCluster int
	UserRisk       decimal.Decimal
}

// =============================================================================
// PAYMENT EVENT - Input to a reconciliation
// =============================================================================

// PaymentEvent is an incoming payment to reconcile. It is not persisted as
// its own entity; a PaymentRecord is written to the audit store instead.
type PaymentEvent struct {
	LoanID     string
	UserID     string
	DocumentID string
	Amount     decimal.Decimal
	// MonthOffset shifts the evaluation date forward by whole months,
	// used to force reconciliation of a specific period.
	MonthOffset int
}

// PaymentRecord is the audit row written for every non-zero payment.
type PaymentRecord struct {
	UserID      string
	LoanID      string
	DocumentID  string
	PaymentDate time.Time
	Amount      decimal.Decimal
}

// =============================================================================
// MONEY HELPERS
// =============================================================================

// round2 rounds to 2 decimal places, half away from zero. This is the single
// rounding rule for all money in the engine.
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// maxZero clamps negative amounts to zero.
func maxZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
