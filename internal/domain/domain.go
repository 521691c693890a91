package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the recurrence class of an obligation.
type Frequency string

const (
	FrequencyOnce      Frequency = "once"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Frequencies lists every supported frequency in display order.
var Frequencies = []Frequency{
	FrequencyOnce,
	FrequencyWeekly,
	FrequencyBiweekly,
	FrequencyMonthly,
	FrequencyQuarterly,
	FrequencyYearly,
}

// ParseFrequency accepts a frequency name in any case.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Frequencies {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown frequency %q", s)
}

// Recurring reports whether occurrences reschedule instead of terminating.
func (f Frequency) Recurring() bool {
	return f != FrequencyOnce && f != ""
}

// UsesWeekday reports whether the weekday anchor is meaningful.
func (f Frequency) UsesWeekday() bool {
	return f == FrequencyWeekly || f == FrequencyBiweekly
}

// Obligation is a scheduled payment, one-off or recurring.
//
// DueDate and PaymentDate are civil dates: midnight UTC carrying the
// calendar day in the configured timezone. Weekday uses 0=Monday..6=Sunday.
type Obligation struct {
	ID                string          `json:"id"`
	OwnerID           int64           `json:"owner_id"`
	Amount            decimal.Decimal `json:"amount"`
	Category          string          `json:"category"`
	Description       *string         `json:"description,omitempty"`
	DueDate           time.Time       `json:"due_date"`
	Frequency         Frequency       `json:"frequency"`
	Weekday           *int            `json:"weekday,omitempty"`
	DayOfMonth        *int            `json:"day_of_month,omitempty"`
	OccurrencesLeft   *int            `json:"occurrences_left,omitempty"`
	IsPaid            bool            `json:"is_paid"`
	IsSkipped         bool            `json:"is_skipped"`
	ReminderSent      bool            `json:"reminder_sent"`
	OverdueLastSentAt *time.Time      `json:"overdue_last_sent_at,omitempty"`
	PaymentDate       *time.Time      `json:"payment_date,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Active is true until a one-off occurrence is paid or skipped.
func (o Obligation) Active() bool {
	return !o.IsPaid && !o.IsSkipped
}

// Label is the description, falling back to the category.
func (o Obligation) Label() string {
	if o.Description != nil && strings.TrimSpace(*o.Description) != "" {
		return *o.Description
	}
	return o.Category
}

// ExpenseKind mirrors how the ledger classifies a spend.
type ExpenseKind string

const (
	ExpenseOnce    ExpenseKind = "once"
	ExpenseDaily   ExpenseKind = "daily"
	ExpenseWeekly  ExpenseKind = "weekly"
	ExpenseMonthly ExpenseKind = "monthly"
	ExpenseYearly  ExpenseKind = "yearly"
)

// ParseExpenseKind defaults to once for empty input.
func ParseExpenseKind(s string) (ExpenseKind, error) {
	switch k := ExpenseKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "":
		return ExpenseOnce, nil
	case ExpenseOnce, ExpenseDaily, ExpenseWeekly, ExpenseMonthly, ExpenseYearly:
		return k, nil
	default:
		return "", fmt.Errorf("unknown expense kind %q", s)
	}
}

// Expense is an append-only ledger record.
type Expense struct {
	ID           string          `json:"id"`
	OwnerID      int64           `json:"owner_id"`
	Amount       decimal.Decimal `json:"amount"`
	Category     string          `json:"category"`
	Description  *string         `json:"description,omitempty"`
	Date         time.Time       `json:"date"`
	Kind         ExpenseKind     `json:"kind"`
	ObligationID *string         `json:"obligation_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Income struct {
	ID          string          `json:"id"`
	OwnerID     int64           `json:"owner_id"`
	Amount      decimal.Decimal `json:"amount"`
	Category    string          `json:"category"`
	Description *string         `json:"description,omitempty"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	OwnerID    *int64 `json:"owner_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Actor      string `json:"actor"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at"`
}

// ReminderClass names one of the independent reminder scans.
type ReminderClass string

const (
	ReminderDueTomorrow ReminderClass = "due_tomorrow"
	ReminderMonthly3Day ReminderClass = "monthly_3day"
	ReminderYearly7Day  ReminderClass = "yearly_7day"
	ReminderOverdue     ReminderClass = "overdue"
)

var ReminderClasses = []ReminderClass{
	ReminderDueTomorrow,
	ReminderMonthly3Day,
	ReminderYearly7Day,
	ReminderOverdue,
}

func ParseReminderClass(s string) (ReminderClass, error) {
	c := ReminderClass(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ReminderClasses {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown reminder class %q", s)
}

// Reminder is the payload handed to notifiers. Every field is resolved.
type Reminder struct {
	ObligationID string          `json:"obligation_id"`
	OwnerID      int64           `json:"owner_id"`
	Class        ReminderClass   `json:"class"`
	Description  string          `json:"description"`
	Category     string          `json:"category"`
	Amount       decimal.Decimal `json:"amount"`
	Frequency    Frequency       `json:"frequency"`
	DueDate      time.Time       `json:"due_date"`
	DaysUntil    int             `json:"days_until"`
	DaysOverdue  int             `json:"days_overdue"`
}

// DailySummary is one owner's spending on Date, sent at the end of the day.
type DailySummary struct {
	OwnerID    int64           `json:"owner_id"`
	Date       time.Time       `json:"date"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Categories []CategoryShare `json:"categories"`
}

// CategoryShare is a category's total and its percentage of the day.
type CategoryShare struct {
	Category string          `json:"category"`
	Total    decimal.Decimal `json:"total"`
	Percent  float64         `json:"percent"`
}

// Occurrence names one due date of an obligation. Reminder bookkeeping is
// keyed on it so a mark never lands on a later occurrence.
type Occurrence struct {
	ObligationID string    `json:"obligation_id"`
	OwnerID      int64     `json:"owner_id"`
	DueDate      time.Time `json:"due_date"`
}

func (r Reminder) Occurrence() Occurrence {
	return Occurrence{ObligationID: r.ObligationID, OwnerID: r.OwnerID, DueDate: r.DueDate}
}
