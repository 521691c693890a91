package server

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/domain"
	"fintrack/internal/engine"
	"fintrack/internal/schedule"
)

// Request payloads

type CreateObligationRequest struct {
	Amount      string  `json:"amount" example:"500000"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
	Frequency   string  `json:"frequency" enum:"once,weekly,biweekly,monthly,quarterly,yearly"`
	DueDate     *string `json:"due_date,omitempty" example:"2026-03-31" doc:"YYYY-MM-DD, DD.MM.YYYY, today, tomorrow or +N"`
	Weekday     *int    `json:"weekday,omitempty" minimum:"0" maximum:"6" doc:"0=Monday"`
	DayOfMonth  *int    `json:"day_of_month,omitempty" minimum:"1" maximum:"31"`
	Occurrences *int    `json:"occurrences,omitempty" doc:"omit for unlimited"`
}

type CreateEntryRequest struct {
	Amount      string  `json:"amount" example:"42000"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	Kind        string  `json:"kind,omitempty" enum:"once,daily,weekly,monthly,yearly"`
}

// ReminderAck names the occurrence a reminder was delivered for, as
// returned by the scan.
type ReminderAck struct {
	ObligationID string `json:"obligation_id"`
	DueDate      string `json:"due_date" example:"2026-03-31" doc:"YYYY-MM-DD, as returned by the scan"`
}

type ReminderAckRequest struct {
	Reminders []ReminderAck `json:"reminders" minItems:"1"`
}

type DevLoginRequest struct {
	OwnerID    int64 `json:"owner_id"`
	TTLSeconds int   `json:"ttl_seconds,omitempty"`
}

type CreateAPIKeyRequest struct {
	Name string `json:"name,omitempty"`
}

// Response payloads

type ObligationResponse struct {
	ID                string  `json:"id"`
	OwnerID           int64   `json:"owner_id"`
	Amount            string  `json:"amount"`
	Category          string  `json:"category"`
	Description       *string `json:"description,omitempty"`
	Label             string  `json:"label"`
	DueDate           string  `json:"due_date" format:"date"`
	Frequency         string  `json:"frequency" enum:"once,weekly,biweekly,monthly,quarterly,yearly"`
	Weekday           *int    `json:"weekday,omitempty"`
	DayOfMonth        *int    `json:"day_of_month,omitempty"`
	OccurrencesLeft   *int    `json:"occurrences_left,omitempty"`
	IsPaid            bool    `json:"is_paid"`
	IsSkipped         bool    `json:"is_skipped"`
	ReminderSent      bool    `json:"reminder_sent"`
	OverdueLastSentAt *string `json:"overdue_last_sent_at,omitempty" format:"date-time"`
	PaymentDate       *string `json:"payment_date,omitempty" format:"date"`
	CreatedAt         string  `json:"created_at" format:"date-time"`
}

type ExpenseResponse struct {
	ID           string  `json:"id"`
	Amount       string  `json:"amount"`
	Category     string  `json:"category"`
	Description  *string `json:"description,omitempty"`
	Date         string  `json:"date" format:"date"`
	Kind         string  `json:"kind"`
	ObligationID *string `json:"obligation_id,omitempty"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type IncomeResponse struct {
	ID          string  `json:"id"`
	Amount      string  `json:"amount"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
	Date        string  `json:"date" format:"date"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

type PayResponse struct {
	Obligation ObligationResponse `json:"obligation"`
	Expense    ExpenseResponse    `json:"expense"`
	Retired    bool               `json:"retired"`
}

type ReminderResponse struct {
	ObligationID string `json:"obligation_id"`
	Class        string `json:"class"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Amount       string `json:"amount"`
	Frequency    string `json:"frequency"`
	DueDate      string `json:"due_date" format:"date"`
	DaysUntil    int    `json:"days_until"`
	DaysOverdue  int    `json:"days_overdue"`
}

type MonthSummaryResponse struct {
	Year        int                  `json:"year"`
	Month       int                  `json:"month"`
	From        string               `json:"from" format:"date"`
	To          string               `json:"to" format:"date"`
	Total       string               `json:"total"`
	Count       int                  `json:"count"`
	Obligations []ObligationResponse `json:"obligations"`
}

type MonthBalanceResponse struct {
	Year         int    `json:"year"`
	Month        int    `json:"month"`
	Income       string `json:"income"`
	IncomeCount  int    `json:"income_count"`
	Expenses     string `json:"expenses"`
	ExpenseCount int    `json:"expense_count"`
	Available    string `json:"available"`
	CarryOver    string `json:"carry_over"`
	Closing      string `json:"closing"`
}

type YearBalanceResponse struct {
	Year     int                    `json:"year"`
	Income   string                 `json:"income"`
	Expenses string                 `json:"expenses"`
	Balance  string                 `json:"balance"`
	Months   []MonthBalanceResponse `json:"months"`
}

type CategoryTotalResponse struct {
	Category string  `json:"category"`
	Total    string  `json:"total"`
	Percent  float64 `json:"percent"`
}

type MonthTotalResponse struct {
	Year  int    `json:"year"`
	Month int    `json:"month"`
	Total string `json:"total"`
}

type ReportResponse struct {
	From       string                  `json:"from" format:"date"`
	To         string                  `json:"to" format:"date"`
	Total      string                  `json:"total"`
	Count      int                     `json:"count"`
	Categories []CategoryTotalResponse `json:"categories"`
	Months     []MonthTotalResponse    `json:"months,omitempty"`
	Expenses   []ExpenseResponse       `json:"expenses"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
	// Key is only returned on creation.
	Key string `json:"key,omitempty"`
}

type WhoAmIResponse struct {
	OwnerID int64  `json:"owner_id"`
	Source  string `json:"source"`
	KeyID   string `json:"key_id,omitempty"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}

func dateString(t time.Time) string {
	return t.Format(schedule.DateLayout)
}

func amountString(d decimal.Decimal) string {
	return d.String()
}

func obligationResponse(o domain.Obligation) ObligationResponse {
	resp := ObligationResponse{
		ID:              o.ID,
		OwnerID:         o.OwnerID,
		Amount:          amountString(o.Amount),
		Category:        o.Category,
		Description:     o.Description,
		Label:           o.Label(),
		DueDate:         dateString(o.DueDate),
		Frequency:       string(o.Frequency),
		Weekday:         o.Weekday,
		DayOfMonth:      o.DayOfMonth,
		OccurrencesLeft: o.OccurrencesLeft,
		IsPaid:          o.IsPaid,
		IsSkipped:       o.IsSkipped,
		ReminderSent:    o.ReminderSent,
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
	}
	if o.OverdueLastSentAt != nil {
		s := o.OverdueLastSentAt.UTC().Format(time.RFC3339)
		resp.OverdueLastSentAt = &s
	}
	if o.PaymentDate != nil {
		s := dateString(*o.PaymentDate)
		resp.PaymentDate = &s
	}
	return resp
}

func mapObligations(items []domain.Obligation) []ObligationResponse {
	out := make([]ObligationResponse, 0, len(items))
	for _, o := range items {
		out = append(out, obligationResponse(o))
	}
	return out
}

func expenseResponse(e domain.Expense) ExpenseResponse {
	return ExpenseResponse{
		ID:           e.ID,
		Amount:       amountString(e.Amount),
		Category:     e.Category,
		Description:  e.Description,
		Date:         dateString(e.Date),
		Kind:         string(e.Kind),
		ObligationID: e.ObligationID,
		CreatedAt:    e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapExpenses(items []domain.Expense) []ExpenseResponse {
	out := make([]ExpenseResponse, 0, len(items))
	for _, e := range items {
		out = append(out, expenseResponse(e))
	}
	return out
}

func incomeResponse(i domain.Income) IncomeResponse {
	return IncomeResponse{
		ID:          i.ID,
		Amount:      amountString(i.Amount),
		Category:    i.Category,
		Description: i.Description,
		Date:        dateString(i.Date),
		CreatedAt:   i.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapIncomes(items []domain.Income) []IncomeResponse {
	out := make([]IncomeResponse, 0, len(items))
	for _, i := range items {
		out = append(out, incomeResponse(i))
	}
	return out
}

func reminderResponse(r domain.Reminder) ReminderResponse {
	return ReminderResponse{
		ObligationID: r.ObligationID,
		Class:        string(r.Class),
		Description:  r.Description,
		Category:     r.Category,
		Amount:       amountString(r.Amount),
		Frequency:    string(r.Frequency),
		DueDate:      dateString(r.DueDate),
		DaysUntil:    r.DaysUntil,
		DaysOverdue:  r.DaysOverdue,
	}
}

func monthBalanceResponse(b engine.MonthBalance) MonthBalanceResponse {
	return MonthBalanceResponse{
		Year:         b.Year,
		Month:        int(b.Month),
		Income:       amountString(b.Income),
		IncomeCount:  b.IncomeCount,
		Expenses:     amountString(b.Expenses),
		ExpenseCount: b.ExpenseCount,
		Available:    amountString(b.Available),
		CarryOver:    amountString(b.CarryOver),
		Closing:      amountString(b.Closing),
	}
}

func yearBalanceResponse(b engine.YearBalance) YearBalanceResponse {
	resp := YearBalanceResponse{
		Year:     b.Year,
		Income:   amountString(b.Income),
		Expenses: amountString(b.Expenses),
		Balance:  amountString(b.Balance),
		Months:   make([]MonthBalanceResponse, 0, len(b.Months)),
	}
	for _, m := range b.Months {
		resp.Months = append(resp.Months, monthBalanceResponse(m))
	}
	return resp
}

func reportResponse(r engine.ExpenseReport) ReportResponse {
	resp := ReportResponse{
		From:       dateString(r.From),
		To:         dateString(r.To),
		Total:      amountString(r.Total),
		Count:      r.Count,
		Categories: make([]CategoryTotalResponse, 0, len(r.Categories)),
		Expenses:   mapExpenses(r.Expenses),
	}
	for _, c := range r.Categories {
		resp.Categories = append(resp.Categories, CategoryTotalResponse{Category: c.Category, Total: amountString(c.Total), Percent: c.Percent})
	}
	for _, m := range r.Months {
		resp.Months = append(resp.Months, MonthTotalResponse{Year: m.Year, Month: int(m.Month), Total: amountString(m.Total)})
	}
	return resp
}

func summaryResponse(s engine.MonthSummary) MonthSummaryResponse {
	return MonthSummaryResponse{
		Year:        s.Year,
		Month:       int(s.Month),
		From:        dateString(s.From),
		To:          dateString(s.To),
		Total:       amountString(s.Total),
		Count:       s.Count,
		Obligations: mapObligations(s.Obligations),
	}
}

func eventResponse(evt domain.Event) EventResponse {
	payload := map[string]any{}
	if evt.Payload != "" {
		_ = json.Unmarshal([]byte(evt.Payload), &payload)
	}
	return EventResponse{
		ID:         evt.ID,
		TS:         evt.TS,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		Actor:      evt.Actor,
		Payload:    payload,
	}
}

func apiKeyResponse(k domain.APIKey) APIKeyResponse {
	return APIKeyResponse{ID: k.ID, Name: k.Name, CreatedAt: k.CreatedAt}
}
