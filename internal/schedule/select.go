package schedule

import (
	"sort"
	"time"

	"fintrack/internal/domain"
)

// DefaultOverdueThrottle is the minimum gap between overdue notices.
const DefaultOverdueThrottle = 8 * time.Hour

// DueTomorrow selects unreminded active obligations due on today+1.
func DueTomorrow(obs []domain.Obligation, today time.Time) []domain.Obligation {
	tomorrow := Civil(today).AddDate(0, 0, 1)
	return filter(obs, func(o domain.Obligation) bool {
		return pending(o) && Civil(o.DueDate).Equal(tomorrow)
	})
}

// MonthlyWithin3Days scans today+1..today+3 and returns the batch of the
// nearest day that has any unreminded monthly obligation. Later days in the
// window wait for a subsequent run.
func MonthlyWithin3Days(obs []domain.Obligation, today time.Time) []domain.Obligation {
	for i := 1; i <= 3; i++ {
		day := Civil(today).AddDate(0, 0, i)
		batch := filter(obs, func(o domain.Obligation) bool {
			return o.Frequency == domain.FrequencyMonthly && pending(o) && Civil(o.DueDate).Equal(day)
		})
		if len(batch) > 0 {
			return batch
		}
	}
	return nil
}

// YearlyWithin7Days accumulates unreminded yearly obligations due anywhere
// in today+1..today+7.
func YearlyWithin7Days(obs []domain.Obligation, today time.Time) []domain.Obligation {
	var out []domain.Obligation
	for i := 1; i <= 7; i++ {
		day := Civil(today).AddDate(0, 0, i)
		out = append(out, filter(obs, func(o domain.Obligation) bool {
			return o.Frequency == domain.FrequencyYearly && pending(o) && Civil(o.DueDate).Equal(day)
		})...)
	}
	return out
}

// Overdue selects active obligations due before today whose last overdue
// notice is absent or at least throttle old. ReminderSent is ignored.
func Overdue(obs []domain.Obligation, now, today time.Time, throttle time.Duration) []domain.Obligation {
	if throttle <= 0 {
		throttle = DefaultOverdueThrottle
	}
	today = Civil(today)
	return filter(obs, func(o domain.Obligation) bool {
		if !o.Active() || !Civil(o.DueDate).Before(today) {
			return false
		}
		return o.OverdueLastSentAt == nil || now.Sub(*o.OverdueLastSentAt) >= throttle
	})
}

// Select runs the selector for class.
func Select(class domain.ReminderClass, obs []domain.Obligation, now, today time.Time, throttle time.Duration) []domain.Obligation {
	switch class {
	case domain.ReminderDueTomorrow:
		return DueTomorrow(obs, today)
	case domain.ReminderMonthly3Day:
		return MonthlyWithin3Days(obs, today)
	case domain.ReminderYearly7Day:
		return YearlyWithin7Days(obs, today)
	case domain.ReminderOverdue:
		return Overdue(obs, now, today, throttle)
	default:
		return nil
	}
}

// Reminders resolves the notifier payload for each selected obligation.
func Reminders(class domain.ReminderClass, obs []domain.Obligation, today time.Time) []domain.Reminder {
	out := make([]domain.Reminder, 0, len(obs))
	for _, o := range obs {
		r := domain.Reminder{
			ObligationID: o.ID,
			OwnerID:      o.OwnerID,
			Class:        class,
			Description:  o.Label(),
			Category:     o.Category,
			Amount:       o.Amount,
			Frequency:    o.Frequency,
			DueDate:      Civil(o.DueDate),
		}
		if d := DaysBetween(today, o.DueDate); d >= 0 {
			r.DaysUntil = d
		} else {
			r.DaysOverdue = -d
		}
		out = append(out, r)
	}
	return out
}

func pending(o domain.Obligation) bool {
	return o.Active() && !o.ReminderSent
}

// filter keeps matches ordered by due date, then id.
func filter(obs []domain.Obligation, keep func(domain.Obligation) bool) []domain.Obligation {
	var out []domain.Obligation
	for _, o := range obs {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].DueDate.Equal(out[j].DueDate) {
			return out[i].DueDate.Before(out[j].DueDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
