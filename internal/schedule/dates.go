// Package schedule provides the calendar arithmetic behind recurring ledger
// entries. Each recurrence interval has its own advance strategy, registered
// in a lookup table keyed by interval.
package schedule

import (
	"errors"
	"fmt"
	"time"

	"github.com/budgetwise/backend/internal/models"
)

// ErrUnknownInterval is returned when a recurrence interval has no registered
// advance strategy. Callers are expected to reject the input rather than
// silently keep the date unchanged.
var ErrUnknownInterval = errors.New("unknown recurrence interval")

type advanceFunc func(time.Time) time.Time

var advancers = map[models.RecurrenceInterval]advanceFunc{
	models.IntervalDaily:   func(t time.Time) time.Time { return t.AddDate(0, 0, 1) },
	models.IntervalWeekly:  func(t time.Time) time.Time { return t.AddDate(0, 0, 7) },
	models.IntervalMonthly: nextMonth,
}

// NextOccurrence computes the date a recurring entry fires next, given its
// base date and interval. It is a pure function: deterministic for a given
// (date, interval) pair, no clock access.
func NextOccurrence(date time.Time, interval models.RecurrenceInterval) (time.Time, error) {
	advance, ok := advancers[interval]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownInterval, interval)
	}
	return advance(date), nil
}

// ValidInterval reports whether an advance strategy exists for the interval.
func ValidInterval(interval models.RecurrenceInterval) bool {
	_, ok := advancers[interval]
	return ok
}

// nextMonth advances by one calendar month, preserving the day-of-month when
// it fits and clamping to the last day of the target month otherwise
// (Jan 31 -> Feb 29 on leap years, Feb 28 otherwise).
func nextMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	// Day 0 of month+2 normalizes to the last day of month+1.
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	hour, min, sec := t.Clock()
	return time.Date(year, month+1, day, hour, min, sec, t.Nanosecond(), t.Location())
}
