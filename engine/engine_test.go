package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianbank/loan-engine/engine"
	"github.com/meridianbank/loan-engine/engine/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type fakeClock struct {
	today time.Time
}

func (c *fakeClock) Today() time.Time { return c.today }

// newTestEngine seeds a 3-period loan due Jan/Feb/Mar 15, installment 1000,
// principal 900 each, at 24% annual.
func newTestEngine(t *testing.T, today time.Time) (*engine.Engine, *store.Memory, *fakeClock) {
	t.Helper()
	mem := store.NewMemory()
	clock := &fakeClock{today: today}
	eng := engine.New(mem, clock, nil)

	ctx := context.Background()
	entries := make([]engine.ScheduleEntry, 3)
	for i := range entries {
		entries[i] = engine.ScheduleEntry{
			LoanID:      "loan-1",
			Period:      i + 1,
			DueDate:     date(2025, time.Month(i+1), 15),
			Installment: dec("1000"),
			Principal:   dec("900"),
			Interest:    dec("100"),
			Status:      engine.StatusPending,
		}
	}
	require.NoError(t, mem.InsertSchedule(ctx, entries))
	require.NoError(t, mem.InsertMetadata(ctx, engine.LoanMetadata{
		LoanID:      "loan-1",
		UserID:      "user-1",
		Amount:      dec("3000"),
		Term:        3,
		Rate:        dec("24"),
		Installment: dec("1000"),
		Balance:     dec("3000"),
		StartDate:   date(2025, time.January, 15),
		EndDate:     date(2025, time.March, 15),
	}))
	return eng, mem, clock
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

func TestRecordPayment_FirstPeriod_OnTime(t *testing.T) {
	// GIVEN: A fresh loan and a payment before the first due date
	// WHEN: The payment is recorded
	// THEN: Period settles, metadata rolls up, audit record written

	eng, mem, _ := newTestEngine(t, date(2025, time.January, 10))
	ctx := context.Background()

	entry, err := eng.RecordPayment(ctx, engine.PaymentEvent{
		LoanID:     "loan-1",
		UserID:     "user-1",
		DocumentID: "doc-42",
		Amount:     dec("1000"),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, entry.Period)
	assert.Equal(t, engine.StatusPayed, entry.Status)
	assert.Equal(t, "R-loan-1-1", entry.ReceiptID)
	assert.True(t, entry.OutstandingBalance.IsZero())

	meta, err := mem.GetMetadata(ctx, "loan-1")
	require.NoError(t, err)
	assert.True(t, dec("1000").Equal(meta.Payed))
	assert.True(t, dec("2100").Equal(meta.Balance), "principal retired on settle, got %s", meta.Balance)

	records := mem.PaymentRecords()
	require.Len(t, records, 1)
	assert.Equal(t, "doc-42", records[0].DocumentID)
	assert.True(t, dec("1000").Equal(records[0].Amount))
	assert.Equal(t, date(2025, time.January, 10), records[0].PaymentDate)
}

func TestRecordPayment_SecondPeriod_InheritsPredecessorState(t *testing.T) {
	// GIVEN: Period 1 closed late with a shortfall
	// WHEN: Period 2 is paid late and short
	// THEN: Period 2 defaults and the metadata counters advance

	eng, mem, clock := newTestEngine(t, date(2025, time.January, 20))
	ctx := context.Background()

	// Period 1: 600 paid 5 days late leaves a shortfall.
	entry, err := eng.RecordPayment(ctx, engine.PaymentEvent{
		LoanID: "loan-1", UserID: "user-1", Amount: dec("600"),
	})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusLate, entry.Status)
	assert.True(t, dec("-430").Equal(entry.OutstandingBalance), "1030 due, 600 paid, got %s", entry.OutstandingBalance)

	// Period 2: another late, short payment.
	clock.today = date(2025, time.February, 20)
	entry, err = eng.RecordPayment(ctx, engine.PaymentEvent{
		LoanID: "loan-1", UserID: "user-1", Amount: dec("200"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Period)
	assert.Equal(t, engine.StatusDefault, entry.Status)
	assert.Equal(t, 1, entry.ConsecutiveDefaulted)

	meta, err := mem.GetMetadata(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, 1, meta.DefaultedPayments)
	assert.True(t, meta.DefaultedAmount.IsPositive())
}

func TestRecordPayment_NoApplicablePeriod(t *testing.T) {
	eng, _, _ := newTestEngine(t, date(2024, time.June, 1))

	_, err := eng.RecordPayment(context.Background(), engine.PaymentEvent{
		LoanID: "loan-1", Amount: dec("100"),
	})
	assert.ErrorIs(t, err, engine.ErrNoApplicablePeriod)
}

func TestRecordPayment_MissingMetadata_Tolerated(t *testing.T) {
	// GIVEN: A schedule whose metadata row is absent
	// WHEN: A payment is recorded
	// THEN: The period reconciles; only the metadata roll-up is skipped

	mem := store.NewMemory()
	clock := &fakeClock{today: date(2025, time.January, 10)}
	eng := engine.New(mem, clock, nil)
	seedSchedule(t, mem, "orphan", date(2025, time.January, 15))

	entry, err := eng.RecordPayment(context.Background(), engine.PaymentEvent{
		LoanID: "orphan", Amount: dec("1000"),
	})
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPayed, entry.Status)
}

// =============================================================================
// EXTENSION PERIODS
// =============================================================================

func TestRecordPayment_LastPeriodShortfall_CreatesExtension(t *testing.T) {
	// GIVEN: The loan's final scheduled period
	// WHEN: It reconciles with money still owed
	// THEN: One extension period is appended, priced at the loan's rate

	eng, mem, _ := newTestEngine(t, date(2025, time.March, 10))
	ctx := context.Background()

	entry, err := eng.RecordPayment(ctx, engine.PaymentEvent{
		LoanID: "loan-1", UserID: "user-1", Amount: dec("400"),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Period)
	assert.True(t, dec("-600").Equal(entry.OutstandingBalance))

	schedule, err := mem.ListSchedule(ctx, "loan-1")
	require.NoError(t, err)
	require.Len(t, schedule, 4, "extension appended")

	ext := schedule[3]
	assert.Equal(t, 4, ext.Period)
	assert.Equal(t, date(2025, time.April, 15), ext.DueDate)
	assert.True(t, dec("600").Equal(ext.Principal))
	assert.True(t, dec("12").Equal(ext.Interest), "24%% annual = 2%% monthly, got %s", ext.Interest)
	assert.True(t, dec("612").Equal(ext.Installment))
	assert.Equal(t, engine.StatusPending, ext.Status)
}

func TestRecordPayment_MidScheduleShortfall_NoExtension(t *testing.T) {
	// GIVEN: A shortfall on a period that is not the loan's last
	// WHEN: The payment is recorded
	// THEN: No extension period appears

	eng, mem, _ := newTestEngine(t, date(2025, time.January, 10))
	ctx := context.Background()

	_, err := eng.RecordPayment(ctx, engine.PaymentEvent{
		LoanID: "loan-1", Amount: dec("400"),
	})
	require.NoError(t, err)

	schedule, err := mem.ListSchedule(ctx, "loan-1")
	require.NoError(t, err)
	assert.Len(t, schedule, 3)
}

// =============================================================================
// ADVANCE PAYMENT
// =============================================================================

func TestAdvancePayment_ShiftsEvaluationDate_AndPersists(t *testing.T) {
	// GIVEN: Today is in the first period's month
	// WHEN: Advancing one month with a zero payment
	// THEN: The second period reconciles and the write sticks

	eng, mem, _ := newTestEngine(t, date(2025, time.January, 10))
	ctx := context.Background()

	entry, err := eng.AdvancePayment(ctx, "loan-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, entry.Period)
	assert.Empty(t, entry.ReceiptID, "zero payment issues no receipt")
	assert.Empty(t, mem.PaymentRecords(), "zero payment writes no audit record")

	schedule, err := mem.ListSchedule(ctx, "loan-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPending, schedule[1].Status)
	assert.True(t, dec("-1000").Equal(schedule[1].OutstandingBalance))
}

// =============================================================================
// END-OF-MONTH SWEEP
// =============================================================================

func TestEndOfMonthSweep_OnlyRunsOnLastDay(t *testing.T) {
	eng, mem, _ := newTestEngine(t, date(2025, time.January, 30))

	updated, err := eng.EndOfMonthSweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, updated)

	schedule, err := mem.ListSchedule(context.Background(), "loan-1")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusPending, schedule[0].Status, "nothing reconciled off-schedule")
}

func TestEndOfMonthSweep_RollsLatenessForward(t *testing.T) {
	// GIVEN: Jan 31, with period 1 unpaid since Jan 15
	// WHEN: The sweep runs
	// THEN: The period turns late with a fee, no receipt, no audit record

	eng, mem, _ := newTestEngine(t, date(2025, time.January, 31))
	ctx := context.Background()

	updated, err := eng.EndOfMonthSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	schedule, err := mem.ListSchedule(ctx, "loan-1")
	require.NoError(t, err)
	first := schedule[0]
	assert.Equal(t, engine.StatusLate, first.Status)
	assert.Equal(t, 16, first.LateDays)
	assert.True(t, dec("30").Equal(first.LatePaymentFee))
	assert.Empty(t, first.ReceiptID)
	assert.Empty(t, mem.PaymentRecords())
}

func TestEndOfMonthSweep_SkipsLoansWithoutApplicablePeriod(t *testing.T) {
	// GIVEN: A second loan whose schedule starts months later
	// WHEN: The sweep runs
	// THEN: That loan is skipped, not treated as a failure

	eng, mem, _ := newTestEngine(t, date(2025, time.January, 31))
	ctx := context.Background()

	seedSchedule(t, mem, "loan-2", date(2025, time.December, 15))
	require.NoError(t, mem.InsertMetadata(ctx, engine.LoanMetadata{
		LoanID: "loan-2", UserID: "user-2",
		Amount: dec("1000"), Balance: dec("1000"),
		StartDate: date(2025, time.December, 15),
		EndDate:   date(2025, time.December, 15),
	}))

	updated, err := eng.EndOfMonthSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

// =============================================================================
// LOAN CREATION
// =============================================================================

func TestCreateLoan_PersistsScheduleAndMetadata(t *testing.T) {
	mem := store.NewMemory()
	eng := engine.New(mem, &fakeClock{today: date(2025, time.January, 1)}, nil)
	ctx := context.Background()

	meta := engine.LoanMetadata{
		LoanID: "loan-new", UserID: "user-9",
		Amount: dec("2000"), Term: 2, Rate: dec("18"),
		Installment: dec("1030"), Balance: dec("2000"),
		StartDate: date(2025, time.February, 15),
		EndDate:   date(2025, time.March, 15),
	}
	entries := []engine.ScheduleEntry{
		{LoanID: "loan-new", Period: 1, DueDate: date(2025, time.February, 15), Installment: dec("1030"), Principal: dec("1000"), Status: engine.StatusPending},
		{LoanID: "loan-new", Period: 2, DueDate: date(2025, time.March, 15), Installment: dec("1030"), Principal: dec("1000"), Status: engine.StatusPending},
	}

	require.NoError(t, eng.CreateLoan(ctx, meta, entries))

	schedule, err := mem.ListSchedule(ctx, "loan-new")
	require.NoError(t, err)
	assert.Len(t, schedule, 2)

	got, err := mem.GetMetadata(ctx, "loan-new")
	require.NoError(t, err)
	assert.Equal(t, "user-9", got.UserID)
}

func TestCreateLoan_RejectsBrokenPeriodSequence(t *testing.T) {
	mem := store.NewMemory()
	eng := engine.New(mem, nil, nil)

	entries := []engine.ScheduleEntry{
		{LoanID: "loan-bad", Period: 1, DueDate: date(2025, time.February, 15)},
		{LoanID: "loan-bad", Period: 3, DueDate: date(2025, time.March, 15)},
	}
	err := eng.CreateLoan(context.Background(), engine.LoanMetadata{LoanID: "loan-bad", UserID: "u"}, entries)
	assert.Error(t, err)

	schedule, listErr := mem.ListSchedule(context.Background(), "loan-bad")
	require.NoError(t, listErr)
	assert.Empty(t, schedule, "nothing persisted on validation failure")
}

func TestCreateLoan_RejectsEmptySchedule(t *testing.T) {
	eng := engine.New(store.NewMemory(), nil, nil)
	err := eng.CreateLoan(context.Background(), engine.LoanMetadata{LoanID: "loan-x", UserID: "u"}, nil)
	assert.Error(t, err)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestRecordPayment_ConcurrentSameLoan_NoLostUpdates(t *testing.T) {
	// GIVEN: Many small payments racing on the same loan and period
	// WHEN: All are recorded concurrently
	// THEN: The cumulative paid amount equals their sum

	eng, mem, _ := newTestEngine(t, date(2025, time.January, 10))
	ctx := context.Background()

	const n = 10
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := eng.RecordPayment(ctx, engine.PaymentEvent{
				LoanID: "loan-1", UserID: "user-1", Amount: dec("10"),
			})
			done <- err
		}()
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-done)
	}

	schedule, err := mem.ListSchedule(ctx, "loan-1")
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(schedule[0].PayedAmount), "got %s", schedule[0].PayedAmount)

	meta, err := mem.GetMetadata(ctx, "loan-1")
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(meta.Payed))
	assert.Len(t, mem.PaymentRecords(), n)
}
