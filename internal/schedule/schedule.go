// Package schedule computes obligation due dates and selects obligations
// that need a reminder. Everything here is pure: callers pass "now".
package schedule

import (
	"time"

	"fintrack/internal/domain"
)

const DateLayout = "2006-01-02"

// Civil truncates t to its calendar day, expressed as midnight UTC.
func Civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the civil date of now in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return Civil(now.In(loc))
}

// Date builds a civil date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DaysIn returns the length of the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// DaysBetween counts whole days from a to b (negative when b is earlier).
func DaysBetween(a, b time.Time) int {
	return int(Civil(b).Sub(Civil(a)).Hours() / 24)
}

// Weekday converts to the Monday=0 convention used by anchors.
func Weekday(d time.Time) int {
	return (int(d.Weekday()) + 6) % 7
}

// AddMonths moves d by n months keeping its day, clamped to the target month.
func AddMonths(d time.Time, n int) time.Time {
	first := time.Date(d.Year(), d.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	return clampDay(first.Year(), first.Month(), d.Day())
}

// NextWeekday returns the first date after from that falls on weekday.
// The same weekday rolls a full week forward.
func NextWeekday(from time.Time, weekday int) time.Time {
	from = Civil(from)
	ahead := (weekday - Weekday(from) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return from.AddDate(0, 0, ahead)
}

// NextMonthDay returns the day-th of from's month (clamped) when it is after
// from, otherwise the same day in the following month (clamped independently).
func NextMonthDay(from time.Time, day int) time.Time {
	from = Civil(from)
	candidate := clampDay(from.Year(), from.Month(), day)
	if candidate.After(from) {
		return candidate
	}
	next := time.Date(from.Year(), from.Month()+1, 1, 0, 0, 0, 0, time.UTC)
	return clampDay(next.Year(), next.Month(), day)
}

// NextDueDate returns the occurrence of o strictly after ref.
// Settlement passes the stored due date as ref; normalization passes today.
// One-off obligations keep their due date. A recurring obligation with
// neither a due date nor an anchor starts the day after ref.
func NextDueDate(o domain.Obligation, ref time.Time) time.Time {
	base := Civil(ref)
	switch o.Frequency {
	case domain.FrequencyWeekly:
		return stepDays(o, base, 7)
	case domain.FrequencyBiweekly:
		return stepDays(o, base, 14)
	case domain.FrequencyMonthly:
		day := o.DueDate.Day()
		if o.DayOfMonth != nil {
			day = *o.DayOfMonth
		} else if o.DueDate.IsZero() {
			return base.AddDate(0, 0, 1)
		}
		return NextMonthDay(base, day)
	case domain.FrequencyQuarterly:
		return stepMonths(o.DueDate, base, 3)
	case domain.FrequencyYearly:
		return stepMonths(o.DueDate, base, 12)
	default:
		return o.DueDate
	}
}

// FirstDueDate computes the initial due date for a new obligation from its
// anchor. Frequencies without an anchor need an explicit date.
func FirstDueDate(freq domain.Frequency, weekday, dayOfMonth *int, today time.Time) (time.Time, bool) {
	switch {
	case freq.UsesWeekday() && weekday != nil:
		return NextWeekday(today, *weekday), true
	case freq == domain.FrequencyMonthly && dayOfMonth != nil:
		return NextMonthDay(today, *dayOfMonth), true
	default:
		return time.Time{}, false
	}
}

func stepDays(o domain.Obligation, base time.Time, step int) time.Time {
	due := Civil(o.DueDate)
	if o.DueDate.IsZero() {
		if o.Weekday == nil {
			return base.AddDate(0, 0, 1)
		}
		due = NextWeekday(base, *o.Weekday)
	}
	if due.After(base) {
		return due
	}
	periods := DaysBetween(due, base)/step + 1
	return due.AddDate(0, 0, periods*step)
}

// stepMonths always offsets from the original date so a clamped
// intermediate (Feb 28) never shortens later occurrences.
func stepMonths(due, base time.Time, step int) time.Time {
	if due.IsZero() {
		return base.AddDate(0, 0, 1)
	}
	due = Civil(due)
	next := due
	for k := 1; !next.After(base); k++ {
		next = AddMonths(due, k*step)
	}
	return next
}

func clampDay(year int, month time.Month, day int) time.Time {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return Date(year, month, day)
}
