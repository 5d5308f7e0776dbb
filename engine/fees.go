/*
fees.go - Late fee policy

PURPOSE:
  Computes the late payment fee for a period from its relationship to the
  predecessor period's unpaid balance and status history. Rules are applied
  in a fixed priority order - the first matching rule wins.

FEE TIERS:
  10%  escalated: loan blocked or on a 2+ default streak
   5%  repeat: still owing from a late/default predecessor AND late again
       (increments the default streak)
   3%  standard: first lateness, or catching up on a shortfall on time
   0   full catch-up payment on time after a late period (resets the
       default streak)

The base for percentage fees is the contractual installment plus the
absolute carried-forward shortfall. Fees are rounded to 2 decimal places,
half away from zero.
*/
package engine

import "github.com/shopspring/decimal"

var (
	feeRateBlocked  = decimal.NewFromFloat(0.10)
	feeRateRepeat   = decimal.NewFromFloat(0.05)
	feeRateStandard = decimal.NewFromFloat(0.03)
)

// feeOutcome is what the fee policy decides for one reconciliation.
type feeOutcome struct {
	fee decimal.Decimal
	// consecutiveDefaulted carries the adjusted default streak: incremented
	// on a repeat lateness, reset by a full on-time catch-up.
	consecutiveDefaulted int
}

// applyFeePolicy runs the priority-ordered fee rules for the target period.
// outstandingFromPrev is the predecessor's signed terminal balance
// (negative = shortfall carried forward).
func applyFeePolicy(in ReconciliationInput, isLate, paymentInFull bool) feeOutcome {
	out := feeOutcome{
		fee:                  in.Entry.LatePaymentFee,
		consecutiveDefaulted: in.ConsecutiveDefaulted,
	}

	carried := in.OutstandingFromPrev.Abs()
	base := in.Entry.Installment.Add(carried)
	owedFromPrev := in.OutstandingFromPrev.IsNegative()

	switch {
	case in.ConsecutiveDefaulted >= 2 || in.LastStatus == StatusBlocked:
		out.fee = round2(base.Mul(feeRateBlocked))

	case owedFromPrev && (in.LastStatus == StatusLate || in.LastStatus == StatusDefault) && isLate:
		out.fee = round2(base.Mul(feeRateRepeat))
		out.consecutiveDefaulted++

	case owedFromPrev && in.LastStatus == StatusLate && !isLate:
		if paymentInFull {
			// Full on-time catch-up: the fee is waived and the default
			// streak ends here.
			out.fee = decimal.Zero
			out.consecutiveDefaulted = 0
		} else {
			out.fee = round2(carried.Mul(feeRateStandard))
		}

	case (!owedFromPrev || in.IsFirstPeriod) && isLate:
		out.fee = round2(base.Mul(feeRateStandard))
	}

	return out
}
