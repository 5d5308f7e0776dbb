package engine

import "github.com/shopspring/decimal"

// =============================================================================
// EXTENSION PERIOD GENERATOR
// =============================================================================

// defaultMonthlyRate applies when loan metadata is unavailable: 2% monthly.
var defaultMonthlyRate = decimal.NewFromFloat(0.02)

var (
	monthsPerYear = decimal.NewFromInt(12)
	hundred       = decimal.NewFromInt(100)
)

// NewExtensionPeriod synthesizes a trailing period covering the unpaid
// remainder of the loan's last scheduled period. The shortfall becomes the
// new principal, one month of interest is added on top, and the period is
// due one month after the last. This converts an unpaid tail into one more
// fully-amortizing period instead of leaving an unresolved residual.
//
// The caller is responsible for the trigger condition: last scheduled
// period, outstanding balance negative.
func NewExtensionPeriod(last ScheduleEntry, meta *LoanMetadata) ScheduleEntry {
	monthlyRate := defaultMonthlyRate
	if meta != nil && meta.Rate.IsPositive() {
		monthlyRate = meta.Rate.Div(monthsPerYear).Div(hundred)
	}

	principal := round2(last.OutstandingBalance.Abs())
	interest := round2(principal.Mul(monthlyRate))
	installment := round2(principal.Add(interest))

	return ScheduleEntry{
		LoanID:               last.LoanID,
		Period:               last.Period + 1,
		DueDate:              AddMonths(last.DueDate, 1),
		Installment:          installment,
		Principal:            principal,
		Interest:             interest,
		ServiceFee:           decimal.Zero,
		InsuranceFee:         decimal.Zero,
		LatePaymentFee:       decimal.Zero,
		PayedAmount:          decimal.Zero,
		OutstandingBalance:   installment.Neg(),
		CalcInstallment:      installment,
		Status:               StatusPending,
		ConsecutiveDefaulted: last.ConsecutiveDefaulted,
	}
}
