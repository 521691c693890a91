package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/domain"
	"fintrack/internal/schedule"
)

// Report periods accepted by PeriodRange.
const (
	PeriodDaily   = "daily"
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
	PeriodYearly  = "yearly"
)

type CategoryTotal struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Percent  float64         `json:"percent"`
}

type MonthTotal struct {
	Year  int             `json:"year"`
	Month time.Month      `json:"month"`
	Total decimal.Decimal `json:"total"`
}

// ExpenseReport aggregates expenses over an inclusive date range. Months is
// filled only when the range spans more than one calendar month.
type ExpenseReport struct {
	From       time.Time        `json:"from"`
	To         time.Time        `json:"to"`
	Total      decimal.Decimal  `json:"total"`
	Count      int              `json:"count"`
	Categories []CategoryTotal  `json:"categories"`
	Months     []MonthTotal     `json:"months,omitempty"`
	Expenses   []domain.Expense `json:"expenses"`
}

func (e Engine) Report(ctx context.Context, ownerID int64, from, to time.Time) (ExpenseReport, error) {
	from, to = schedule.Civil(from), schedule.Civil(to)
	if to.Before(from) {
		return ExpenseReport{}, invalid("range", "end %s is before start %s", to.Format(schedule.DateLayout), from.Format(schedule.DateLayout))
	}
	expenses, err := e.ListExpenses(ctx, ownerID, from, to)
	if err != nil {
		return ExpenseReport{}, err
	}
	return buildReport(from, to, expenses), nil
}

// ReportFor resolves a named period around today and reports on it.
func (e Engine) ReportFor(ctx context.Context, ownerID int64, period string) (ExpenseReport, error) {
	from, to, err := PeriodRange(period, e.today())
	if err != nil {
		return ExpenseReport{}, err
	}
	return e.Report(ctx, ownerID, from, to)
}

func buildReport(from, to time.Time, expenses []domain.Expense) ExpenseReport {
	r := ExpenseReport{From: from, To: to, Total: decimal.Zero, Count: len(expenses), Expenses: expenses}
	byCategory := map[string]decimal.Decimal{}
	for _, ex := range expenses {
		r.Total = r.Total.Add(ex.Amount)
		byCategory[ex.Category] = byCategory[ex.Category].Add(ex.Amount)
	}
	for cat, total := range byCategory {
		ct := CategoryTotal{Category: cat, Total: total}
		if r.Total.IsPositive() {
			ct.Percent = total.Div(r.Total).Mul(decimal.NewFromInt(100)).Round(1).InexactFloat64()
		}
		r.Categories = append(r.Categories, ct)
	}
	sort.Slice(r.Categories, func(i, j int) bool {
		if c := r.Categories[i].Total.Cmp(r.Categories[j].Total); c != 0 {
			return c > 0
		}
		return r.Categories[i].Category < r.Categories[j].Category
	})
	if from.Year() != to.Year() || from.Month() != to.Month() {
		for cur := schedule.Date(from.Year(), from.Month(), 1); !cur.After(to); cur = schedule.AddMonths(cur, 1) {
			mt := MonthTotal{Year: cur.Year(), Month: cur.Month(), Total: decimal.Zero}
			for _, ex := range expenses {
				if ex.Date.Year() == cur.Year() && ex.Date.Month() == cur.Month() {
					mt.Total = mt.Total.Add(ex.Amount)
				}
			}
			r.Months = append(r.Months, mt)
		}
	}
	return r
}

// PeriodRange maps a period name to its inclusive range containing today.
func PeriodRange(period string, today time.Time) (time.Time, time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case PeriodDaily:
		from, to := DayRange(today)
		return from, to, nil
	case PeriodWeekly:
		from, to := WeekRange(today)
		return from, to, nil
	case PeriodMonthly:
		from, to := MonthRange(today.Year(), today.Month())
		return from, to, nil
	case PeriodYearly:
		from, to := YearRange(today.Year())
		return from, to, nil
	default:
		return time.Time{}, time.Time{}, invalid("period", "unknown period %q", period)
	}
}

func DayRange(d time.Time) (time.Time, time.Time) {
	d = schedule.Civil(d)
	return d, d
}

// WeekRange returns Monday through Sunday of d's week.
func WeekRange(d time.Time) (time.Time, time.Time) {
	start := schedule.Civil(d).AddDate(0, 0, -schedule.Weekday(d))
	return start, start.AddDate(0, 0, 6)
}

// MonthRange accepts out-of-range months and normalizes them like time.Date.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first, schedule.Date(first.Year(), first.Month(), schedule.DaysIn(first.Year(), first.Month()))
}

func YearRange(year int) (time.Time, time.Time) {
	return schedule.Date(year, time.January, 1), schedule.Date(year, time.December, 31)
}

// String renders the period for logs and CLI headers.
func (r ExpenseReport) String() string {
	return fmt.Sprintf("%s..%s total=%s count=%d", r.From.Format(schedule.DateLayout), r.To.Format(schedule.DateLayout), r.Total.String(), r.Count)
}
