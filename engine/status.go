package engine

import "github.com/shopspring/decimal"

// =============================================================================
// STATUS STATE MACHINE
// =============================================================================

// NextStatus is the terminal classification of a period after reconciliation.
// It is a pure function of the carried-forward default streak, the
// predecessor's status, lateness, and the period's final outstanding balance.
// There is no state beyond these four inputs.
//
// Precedence, first match wins:
//
//	blocked  - streak of 2+ defaults, or already blocked (absorbing state)
//	default  - late again while still owing on a late/default streak
//	late     - late with money still owed
//	payed    - settled or overpaid
//	pending  - owing, but not late
func NextStatus(consecutiveDefaulted int, lastStatus Status, isLate bool, outstanding decimal.Decimal) Status {
	owed := outstanding.IsNegative()

	switch {
	case consecutiveDefaulted >= 2 || lastStatus == StatusBlocked:
		return StatusBlocked
	case isLate && owed && (lastStatus == StatusDefault || lastStatus == StatusLate):
		return StatusDefault
	case isLate && owed:
		return StatusLate
	case !owed:
		return StatusPayed
	default:
		return StatusPending
	}
}
