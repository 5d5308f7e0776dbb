package engine

import "github.com/shopspring/decimal"

// =============================================================================
// METADATA AGGREGATOR - Loan-level roll-up after a reconciliation
// =============================================================================

// ApplyToMetadata folds a reconciled period into the loan-level aggregates:
//
//   - payed accumulates every payment, unconditionally
//   - balance retires the period's principal exactly once, on the
//     reconciliation that moves the period from owing to settled, clamped
//     at zero. Balance never increases.
//   - defaulted counters advance when a reconciliation newly leaves the
//     period in default or blocked; the defaulted amount is the unpaid
//     remainder at that point.
func ApplyToMetadata(meta *LoanMetadata, res ReconciliationResult, payment decimal.Decimal) {
	meta.Payed = round2(meta.Payed.Add(payment))

	if res.SettledNow {
		meta.Balance = maxZero(round2(meta.Balance.Sub(res.Entry.Principal)))
	}

	delinquent := res.Entry.Status == StatusDefault || res.Entry.Status == StatusBlocked
	wasDelinquent := res.PrevStatus == StatusDefault || res.PrevStatus == StatusBlocked
	if delinquent && !wasDelinquent {
		meta.DefaultedPayments++
		meta.DefaultedAmount = round2(meta.DefaultedAmount.Add(res.Entry.CalcInstallment))
	}
}
