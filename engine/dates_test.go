package engine_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meridianbank/loan-engine/engine"
)

func TestDaysLate(t *testing.T) {
	due := date(2025, time.March, 31)

	assert.Equal(t, 0, engine.DaysLate(due, due), "on the due date")
	assert.Equal(t, 0, engine.DaysLate(due, due.AddDate(0, 0, -3)), "early is not late")
	assert.Equal(t, 5, engine.DaysLate(due, due.AddDate(0, 0, 5)))
	assert.Equal(t, 0, engine.DaysLate(time.Time{}, due), "missing due date")
	assert.Equal(t, 0, engine.DaysLate(due, time.Time{}), "missing payment date")
}

func TestLastDayOfMonth(t *testing.T) {
	assert.Equal(t, date(2025, time.January, 31), engine.LastDayOfMonth(date(2025, time.January, 10)))
	assert.Equal(t, date(2025, time.February, 28), engine.LastDayOfMonth(date(2025, time.February, 1)))
	assert.Equal(t, date(2024, time.February, 29), engine.LastDayOfMonth(date(2024, time.February, 15)), "leap year")
	assert.Equal(t, date(2025, time.April, 30), engine.LastDayOfMonth(date(2025, time.April, 30)))
}

func TestAddMonths_ClampsToMonthEnd(t *testing.T) {
	// Month-end anchors must stay month-end, not spill into the next month.
	assert.Equal(t, date(2024, time.November, 30), engine.AddMonths(date(2025, time.January, 31), -2))
	assert.Equal(t, date(2025, time.February, 28), engine.AddMonths(date(2025, time.January, 31), 1))
	assert.Equal(t, date(2024, time.February, 29), engine.AddMonths(date(2024, time.January, 31), 1), "leap year")
	assert.Equal(t, date(2025, time.March, 15), engine.AddMonths(date(2025, time.January, 15), 2), "mid-month needs no clamp")
	assert.Equal(t, date(2025, time.June, 30), engine.AddMonths(date(2025, time.June, 30), 0))
}

func TestIsLastDayOfMonth(t *testing.T) {
	assert.True(t, engine.IsLastDayOfMonth(date(2025, time.January, 31)))
	assert.True(t, engine.IsLastDayOfMonth(date(2025, time.February, 28)))
	assert.False(t, engine.IsLastDayOfMonth(date(2024, time.February, 28)), "leap February runs to 29")
	assert.False(t, engine.IsLastDayOfMonth(date(2025, time.January, 30)))
}
