package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/domain"
	"fintrack/internal/schedule"
)

// ObligationDraft accumulates creation input one validated step at a time.
// The command layer owns the draft; the engine only sees it once complete.
type ObligationDraft struct {
	Amount          decimal.Decimal
	Category        string
	Description     *string
	DueDate         *time.Time
	Frequency       domain.Frequency
	Weekday         *int
	DayOfMonth      *int
	OccurrencesLeft *int
}

func (d *ObligationDraft) SetFrequency(s string) error {
	f, err := domain.ParseFrequency(s)
	if err != nil {
		return invalid("frequency", "unknown frequency %q", s)
	}
	d.Frequency = f
	return nil
}

func (d *ObligationDraft) SetWeekday(v int) error {
	if v < 0 || v > 6 {
		return invalid("weekday", "must be 0 (Monday) to 6 (Sunday), got %d", v)
	}
	d.Weekday = &v
	return nil
}

func (d *ObligationDraft) SetDayOfMonth(v int) error {
	if v < 1 || v > 31 {
		return invalid("day_of_month", "must be 1 to 31, got %d", v)
	}
	d.DayOfMonth = &v
	return nil
}

func (d *ObligationDraft) SetOccurrences(v int) error {
	if v <= 0 {
		return invalid("occurrences", "must be positive, got %d", v)
	}
	d.OccurrencesLeft = &v
	return nil
}

func (d *ObligationDraft) SetAmount(s string) error {
	amount, err := ParseAmount(s)
	if err != nil {
		return err
	}
	d.Amount = amount
	return nil
}

func (d *ObligationDraft) SetCategory(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return invalid("category", "must not be empty")
	}
	d.Category = s
	return nil
}

// SetDescription stores free text; blank input clears it.
func (d *ObligationDraft) SetDescription(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		d.Description = nil
		return
	}
	d.Description = &s
}

func (d *ObligationDraft) SetDueDate(s string, today time.Time) error {
	due, err := ParseDate(s, today)
	if err != nil {
		return err
	}
	d.DueDate = &due
	return nil
}

// Complete derives whatever the anchors imply: the first due date when none
// was given, and the anchor itself when only a due date was given.
func (d *ObligationDraft) Complete(today time.Time) error {
	if d.DueDate == nil {
		due, ok := schedule.FirstDueDate(d.Frequency, d.Weekday, d.DayOfMonth, today)
		if !ok {
			return invalid("due_date", "required for %s obligations without an anchor", d.frequencyName())
		}
		d.DueDate = &due
	}
	if d.Frequency.UsesWeekday() && d.Weekday == nil {
		wd := schedule.Weekday(*d.DueDate)
		d.Weekday = &wd
	}
	if d.Frequency == domain.FrequencyMonthly && d.DayOfMonth == nil {
		dom := d.DueDate.Day()
		d.DayOfMonth = &dom
	}
	return d.Validate()
}

// Validate checks the draft as a whole.
func (d ObligationDraft) Validate() error {
	if d.Frequency == "" {
		return invalid("frequency", "required")
	}
	if _, err := domain.ParseFrequency(string(d.Frequency)); err != nil {
		return invalid("frequency", "unknown frequency %q", d.Frequency)
	}
	if !d.Amount.IsPositive() {
		return invalid("amount", "must be positive")
	}
	if strings.TrimSpace(d.Category) == "" {
		return invalid("category", "must not be empty")
	}
	if d.DueDate == nil {
		return invalid("due_date", "required")
	}
	if d.Weekday != nil && !d.Frequency.UsesWeekday() {
		return invalid("weekday", "only weekly and biweekly obligations take a weekday")
	}
	if d.DayOfMonth != nil && d.Frequency != domain.FrequencyMonthly {
		return invalid("day_of_month", "only monthly obligations take a day of month")
	}
	if d.OccurrencesLeft != nil {
		if !d.Frequency.Recurring() {
			return invalid("occurrences", "only recurring obligations take an occurrence count")
		}
		if *d.OccurrencesLeft <= 0 {
			return invalid("occurrences", "must be positive")
		}
	}
	return nil
}

// DraftFields is raw creation input as it arrives from flags or a request
// body. Empty strings and nil pointers mean "not given".
type DraftFields struct {
	Amount      string
	Category    string
	Description string
	Frequency   string
	DueDate     string
	Weekday     *int
	DayOfMonth  *int
	Occurrences *int
}

// Draft runs every given field through its setter and stops at the first
// invalid one.
func (f DraftFields) Draft(today time.Time) (ObligationDraft, error) {
	var d ObligationDraft
	freq := f.Frequency
	if strings.TrimSpace(freq) == "" {
		freq = string(domain.FrequencyOnce)
	}
	if err := d.SetFrequency(freq); err != nil {
		return d, err
	}
	if err := d.SetAmount(f.Amount); err != nil {
		return d, err
	}
	if err := d.SetCategory(f.Category); err != nil {
		return d, err
	}
	d.SetDescription(f.Description)
	if strings.TrimSpace(f.DueDate) != "" {
		if err := d.SetDueDate(f.DueDate, today); err != nil {
			return d, err
		}
	}
	if f.Weekday != nil {
		if err := d.SetWeekday(*f.Weekday); err != nil {
			return d, err
		}
	}
	if f.DayOfMonth != nil {
		if err := d.SetDayOfMonth(*f.DayOfMonth); err != nil {
			return d, err
		}
	}
	if f.Occurrences != nil {
		if err := d.SetOccurrences(*f.Occurrences); err != nil {
			return d, err
		}
	}
	return d, nil
}

func (d ObligationDraft) frequencyName() string {
	if d.Frequency == "" {
		return "unscheduled"
	}
	return string(d.Frequency)
}

// ParseAmount accepts thousands separators ("500 000", "1,250.50") and
// rejects zero or negative values.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', ',', '_', '\u00a0':
			return -1
		}
		return r
	}, strings.TrimSpace(s))
	if cleaned == "" {
		return decimal.Zero, invalid("amount", "must not be empty")
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, invalid("amount", "%q is not a number", s)
	}
	if !amount.IsPositive() {
		return decimal.Zero, invalid("amount", "must be positive")
	}
	return amount, nil
}

var dateLayouts = []string{
	"2.1.2006", "2/1/2006", "2-1-2006",
	"2006.1.2", "2006/1/2", "2006-1-2",
	"2.1.06", "2/1/06", "2-1-06",
}

// ParseDate reads day-first and ISO dates plus relative forms: today,
// tomorrow, yesterday and +N days.
func ParseDate(s string, today time.Time) (time.Time, error) {
	raw := strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return schedule.Civil(t), nil
		}
	}
	today = schedule.Civil(today)
	switch v := strings.ToLower(raw); {
	case v == "today":
		return today, nil
	case v == "tomorrow":
		return today.AddDate(0, 0, 1), nil
	case v == "yesterday":
		return today.AddDate(0, 0, -1), nil
	case strings.HasPrefix(v, "+"):
		if n, err := strconv.Atoi(v[1:]); err == nil && n >= 0 {
			return today.AddDate(0, 0, n), nil
		}
	}
	return time.Time{}, invalid("date", "unrecognized date %q", s)
}
