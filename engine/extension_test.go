package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meridianbank/loan-engine/engine"
)

func lastEntryWithShortfall(outstanding string) engine.ScheduleEntry {
	return engine.ScheduleEntry{
		LoanID:             "loan-1",
		Period:             12,
		DueDate:            date(2025, time.December, 31),
		Installment:        dec("1000"),
		OutstandingBalance: dec(outstanding),
		Status:             engine.StatusLate,
	}
}

func TestNewExtensionPeriod_UsesLoanRate(t *testing.T) {
	// GIVEN: The final period ends 500 short on a loan at 24% annual
	// WHEN: An extension period is synthesized
	// THEN: Principal 500, one month of interest at 2% (10), installment 510

	meta := &engine.LoanMetadata{LoanID: "loan-1", Rate: dec("24")}
	ext := engine.NewExtensionPeriod(lastEntryWithShortfall("-500"), meta)

	assert.Equal(t, 13, ext.Period)
	assert.Equal(t, date(2026, time.January, 31), ext.DueDate)
	assert.True(t, dec("500").Equal(ext.Principal), "got %s", ext.Principal)
	assert.True(t, dec("10").Equal(ext.Interest), "got %s", ext.Interest)
	assert.True(t, dec("510").Equal(ext.Installment))
	assert.True(t, dec("-510").Equal(ext.OutstandingBalance))
	assert.True(t, dec("510").Equal(ext.CalcInstallment))
	assert.Equal(t, engine.StatusPending, ext.Status)
	assert.True(t, ext.PayedAmount.IsZero())
	assert.True(t, ext.LatePaymentFee.IsZero())
}

func TestNewExtensionPeriod_DefaultRateWithoutMetadata(t *testing.T) {
	// GIVEN: No metadata is available for the loan
	// WHEN: An extension period is synthesized over a 1000 shortfall
	// THEN: The 2% monthly fallback applies (interest 20)

	ext := engine.NewExtensionPeriod(lastEntryWithShortfall("-1000"), nil)

	assert.True(t, dec("20").Equal(ext.Interest), "got %s", ext.Interest)
	assert.True(t, dec("1020").Equal(ext.Installment))
}

func TestNewExtensionPeriod_DefaultRateWhenRateUnset(t *testing.T) {
	meta := &engine.LoanMetadata{LoanID: "loan-1"} // zero rate
	ext := engine.NewExtensionPeriod(lastEntryWithShortfall("-1000"), meta)

	assert.True(t, dec("20").Equal(ext.Interest))
}

func TestNewExtensionPeriod_CarriesDefaultStreak(t *testing.T) {
	last := lastEntryWithShortfall("-500")
	last.ConsecutiveDefaulted = 2

	ext := engine.NewExtensionPeriod(last, nil)
	assert.Equal(t, 2, ext.ConsecutiveDefaulted)
}
