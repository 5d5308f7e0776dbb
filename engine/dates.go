package engine

import "time"

// =============================================================================
// DATE WINDOW UTILITIES - Pure date arithmetic
// =============================================================================

// dateOnly truncates a time to midnight UTC. All schedule arithmetic is done
// at day granularity.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysLate returns the whole days the payment is past the due date,
// never negative. Returns 0 if either date is missing.
func DaysLate(dueDate, paymentDate time.Time) int {
	if dueDate.IsZero() || paymentDate.IsZero() {
		return 0
	}
	delta := int(dateOnly(paymentDate).Sub(dateOnly(dueDate)).Hours() / 24)
	if delta < 0 {
		return 0
	}
	return delta
}

// LastDayOfMonth returns the calendar last day of the month containing t.
func LastDayOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return firstOfNext.AddDate(0, 0, -1)
}

// AddMonths shifts a date by whole months, clamping the day to the target
// month's last day. Go's AddDate normalizes Nov 31 to Dec 1; schedule windows
// anchored to month-end dates need Jan 31 - 2 months = Nov 30.
func AddMonths(t time.Time, months int) time.Time {
	t = dateOnly(t)
	anchor := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, months, 0)
	day := t.Day()
	if last := LastDayOfMonth(anchor).Day(); day > last {
		day = last
	}
	return time.Date(anchor.Year(), anchor.Month(), day, 0, 0, 0, 0, time.UTC)
}

// IsLastDayOfMonth reports whether t is the last calendar day of its month.
func IsLastDayOfMonth(t time.Time) bool {
	return t.Day() == LastDayOfMonth(t).Day()
}
