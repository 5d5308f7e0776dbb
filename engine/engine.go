/*
engine.go - Reconciliation engine facade

PURPOSE:
  Orchestrates one reconciliation end to end: select the target period,
  reconcile it, synthesize an extension period when the last scheduled
  period stays underpaid, roll the result up into the loan metadata, and
  write the payment audit record - all inside one store transaction.

CONCURRENCY:
  Two concurrent payments racing on the same loan would corrupt
  consecutive_defaulted / payed / balance through lost updates, so the
  read-modify-write cycle is serialized per loan with a keyed mutex.
  Different loans reconcile in parallel. Each reconciliation is a short,
  bounded computation; there is no internal cancellation point beyond the
  store's context handling.
*/
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Engine runs payment reconciliations against a Store.
type Engine struct {
	store Store
	clock Clock
	log   *logrus.Logger

	mu        sync.Mutex
	loanLocks map[string]*sync.Mutex
}

// New creates an Engine. clock may be nil, in which case the system clock
// is used.
func New(store Store, clock Clock, log *logrus.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &Engine{
		store:     store,
		clock:     clock,
		log:       log,
		loanLocks: make(map[string]*sync.Mutex),
	}
}

// lockLoan acquires the per-loan mutex and returns the unlock function.
func (e *Engine) lockLoan(loanID string) func() {
	e.mu.Lock()
	lock, ok := e.loanLocks[loanID]
	if !ok {
		lock = &sync.Mutex{}
		e.loanLocks[loanID] = lock
	}
	e.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// =============================================================================
// RECORD PAYMENT
// =============================================================================

// RecordPayment reconciles one payment against the loan's schedule and
// persists the outcome atomically. The evaluation date is today shifted by
// the event's month offset. Returns the reconciled period, or
// ErrNoApplicablePeriod when the due-date window matches nothing.
func (e *Engine) RecordPayment(ctx context.Context, ev PaymentEvent) (*ScheduleEntry, error) {
	paymentDate := AddMonths(e.clock.Today(), ev.MonthOffset)

	unlock := e.lockLoan(ev.LoanID)
	defer unlock()

	var reconciled *ScheduleEntry
	err := e.store.WithTx(ctx, func(s Store) error {
		sel, err := SelectPeriod(ctx, s, ev.LoanID, paymentDate)
		if err != nil {
			return err
		}

		res := Reconcile(ReconciliationInput{
			Entry:                sel.Target,
			OutstandingFromPrev:  sel.OutstandingFromPrev,
			LastStatus:           sel.LastStatus,
			ConsecutiveDefaulted: sel.ConsecutiveDefaulted,
			IsFirstPeriod:        sel.IsFirstPeriod,
			Payment:              ev.Amount,
			PaymentDate:          paymentDate,
		})

		if err := s.UpdatePeriod(ctx, res.Entry); err != nil {
			return fmt.Errorf("update period %d: %w", res.Entry.Period, err)
		}

		meta, err := s.GetMetadata(ctx, ev.LoanID)
		if err != nil && !IsNotFound(err) {
			return err
		}

		if res.Entry.OutstandingBalance.IsNegative() {
			maxPeriod, err := s.MaxPeriod(ctx, ev.LoanID)
			if err != nil {
				return err
			}
			if res.Entry.Period == maxPeriod {
				ext := NewExtensionPeriod(res.Entry, meta)
				if err := s.InsertPeriod(ctx, ext); err != nil {
					return fmt.Errorf("insert extension period %d: %w", ext.Period, err)
				}
				e.log.WithFields(logrus.Fields{
					"loan_id":     ev.LoanID,
					"period":      ext.Period,
					"installment": ext.Installment,
				}).Info("extension period created")
			}
		}

		if meta != nil {
			ApplyToMetadata(meta, res, ev.Amount)
			if err := s.UpdateMetadata(ctx, *meta); err != nil {
				return err
			}
		}

		if ev.Amount.IsPositive() {
			rec := PaymentRecord{
				UserID:      ev.UserID,
				LoanID:      ev.LoanID,
				DocumentID:  ev.DocumentID,
				PaymentDate: paymentDate,
				Amount:      ev.Amount,
			}
			if err := s.InsertPaymentRecord(ctx, rec); err != nil {
				return err
			}
		}

		reconciled = &res.Entry
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"loan_id": ev.LoanID,
		"period":  reconciled.Period,
		"status":  reconciled.Status,
		"amount":  ev.Amount,
	}).Info("payment reconciled")
	return reconciled, nil
}

// AdvancePayment reconciles the loan at today + monthOffset months with a
// zero payment. Despite taking no money, this is a WRITE: lateness, fees,
// and status changes are computed and persisted exactly as for a real
// payment. There is no read-only preview.
func (e *Engine) AdvancePayment(ctx context.Context, loanID string, monthOffset int) (*ScheduleEntry, error) {
	return e.RecordPayment(ctx, PaymentEvent{
		LoanID:      loanID,
		Amount:      decimal.Zero,
		MonthOffset: monthOffset,
	})
}

// =============================================================================
// END-OF-MONTH SWEEP
// =============================================================================

// EndOfMonthSweep reconciles every loan with a zero payment, rolling
// lateness and fees forward even absent a payment. It only acts on the last
// calendar day of the month; on other days it is a no-op. Returns the number
// of loans updated.
func (e *Engine) EndOfMonthSweep(ctx context.Context) (int, error) {
	today := e.clock.Today()
	if !IsLastDayOfMonth(today) {
		e.log.WithField("date", today.Format("2006-01-02")).
			Debug("sweep skipped: not the last day of the month")
		return 0, nil
	}

	loans, err := e.store.ListMetadata(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, meta := range loans {
		_, err := e.RecordPayment(ctx, PaymentEvent{
			LoanID: meta.LoanID,
			UserID: meta.UserID,
			Amount: decimal.Zero,
		})
		switch {
		case err == nil:
			updated++
		case IsNotFound(err):
			// Schedule exhausted or window misaligned; nothing to roll.
		default:
			return updated, fmt.Errorf("sweep loan %s: %w", meta.LoanID, err)
		}
	}

	e.log.WithField("updated_loans", updated).Info("end-of-month sweep completed")
	return updated, nil
}

// =============================================================================
// LOAN CREATION
// =============================================================================

// CreateLoan persists a new loan's schedule and metadata atomically. Input
// shaping (numeric normalization, id assignment, derived dates) is the
// factory package's job; this only validates the period sequence and writes.
func (e *Engine) CreateLoan(ctx context.Context, meta LoanMetadata, entries []ScheduleEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("loan %s: empty schedule", meta.LoanID)
	}
	for i, entry := range entries {
		if entry.Period != i+1 {
			return fmt.Errorf("loan %s: period %d at position %d breaks the contiguous sequence",
				meta.LoanID, entry.Period, i)
		}
	}

	unlock := e.lockLoan(meta.LoanID)
	defer unlock()

	err := e.store.WithTx(ctx, func(s Store) error {
		if err := s.InsertSchedule(ctx, entries); err != nil {
			return err
		}
		return s.InsertMetadata(ctx, meta)
	})
	if err != nil {
		return err
	}

	e.log.WithFields(logrus.Fields{
		"loan_id": meta.LoanID,
		"user_id": meta.UserID,
		"periods": len(entries),
	}).Info("loan schedule created")
	return nil
}
