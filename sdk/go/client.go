package fintracksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal Fintrack HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Obligation is a planned payment. Amounts are decimal strings.
type Obligation struct {
	ID              string  `json:"id"`
	OwnerID         int64   `json:"owner_id"`
	Amount          string  `json:"amount"`
	Category        string  `json:"category"`
	Description     *string `json:"description,omitempty"`
	Label           string  `json:"label"`
	DueDate         string  `json:"due_date"`
	Frequency       string  `json:"frequency"`
	Weekday         *int    `json:"weekday,omitempty"`
	DayOfMonth      *int    `json:"day_of_month,omitempty"`
	OccurrencesLeft *int    `json:"occurrences_left,omitempty"`
	IsPaid          bool    `json:"is_paid"`
	IsSkipped       bool    `json:"is_skipped"`
	ReminderSent    bool    `json:"reminder_sent"`
	PaymentDate     *string `json:"payment_date,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// NewObligation is the create request. Leave DueDate empty to derive it
// from the weekday or day-of-month anchor.
type NewObligation struct {
	Amount      string  `json:"amount"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
	Frequency   string  `json:"frequency"`
	DueDate     *string `json:"due_date,omitempty"`
	Weekday     *int    `json:"weekday,omitempty"`
	DayOfMonth  *int    `json:"day_of_month,omitempty"`
	Occurrences *int    `json:"occurrences,omitempty"`
}

type Expense struct {
	ID           string  `json:"id"`
	Amount       string  `json:"amount"`
	Category     string  `json:"category"`
	Description  *string `json:"description,omitempty"`
	Date         string  `json:"date"`
	Kind         string  `json:"kind"`
	ObligationID *string `json:"obligation_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

type Income struct {
	ID          string  `json:"id"`
	Amount      string  `json:"amount"`
	Category    string  `json:"category"`
	Description *string `json:"description,omitempty"`
	Date        string  `json:"date"`
	CreatedAt   string  `json:"created_at"`
}

// Entry records an expense or income. Kind only applies to expenses.
type Entry struct {
	Amount      string  `json:"amount"`
	Category    string  `json:"category,omitempty"`
	Description string  `json:"description,omitempty"`
	Date        *string `json:"date,omitempty"`
	Kind        string  `json:"kind,omitempty"`
}

type PayResult struct {
	Obligation Obligation `json:"obligation"`
	Expense    Expense    `json:"expense"`
	Retired    bool       `json:"retired"`
}

type Reminder struct {
	ObligationID string `json:"obligation_id"`
	Class        string `json:"class"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Amount       string `json:"amount"`
	Frequency    string `json:"frequency"`
	DueDate      string `json:"due_date"`
	DaysUntil    int    `json:"days_until"`
	DaysOverdue  int    `json:"days_overdue"`
}

type MonthBalance struct {
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

type Report struct {
	From       string `json:"from"`
	To         string `json:"to"`
	Total      string `json:"total"`
	Count      int    `json:"count"`
	Categories []struct {
		Category string  `json:"category"`
		Total    string  `json:"total"`
		Percent  float64 `json:"percent"`
	} `json:"categories"`
	Expenses []Expense `json:"expenses"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id"`
	Actor      string         `json:"actor"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses. Code and Message come from the error
// envelope when the server sent one.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

func (c *Client) CreateObligation(ctx context.Context, in NewObligation) (Obligation, error) {
	var resp Obligation
	err := c.do(ctx, http.MethodPost, "obligations", in, &resp)
	return resp, err
}

// ListObligations returns active obligations, or all of them with
// includeSettled.
func (c *Client) ListObligations(ctx context.Context, includeSettled bool) ([]Obligation, error) {
	var resp []Obligation
	q := url.Values{}
	if includeSettled {
		q.Set("include_settled", "true")
	}
	err := c.do(ctx, http.MethodGet, withQuery("obligations", q), nil, &resp)
	return resp, err
}

func (c *Client) GetObligation(ctx context.Context, id string) (Obligation, error) {
	var resp Obligation
	err := c.do(ctx, http.MethodGet, "obligations/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) DeleteObligation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "obligations/"+url.PathEscape(id), nil, nil)
}

// Upcoming lists obligations due within days.
func (c *Client) Upcoming(ctx context.Context, days int) ([]Obligation, error) {
	var resp []Obligation
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}
	err := c.do(ctx, http.MethodGet, withQuery("obligations/upcoming", q), nil, &resp)
	return resp, err
}

func (c *Client) Overdue(ctx context.Context) ([]Obligation, error) {
	var resp []Obligation
	err := c.do(ctx, http.MethodGet, "obligations/overdue", nil, &resp)
	return resp, err
}

// Pay settles the current occurrence. An empty amount pays the planned one.
func (c *Client) Pay(ctx context.Context, id, amount string) (PayResult, error) {
	q := url.Values{}
	if amount != "" {
		q.Set("amount", amount)
	}
	var resp PayResult
	err := c.do(ctx, http.MethodPost, withQuery("obligations/"+url.PathEscape(id)+"/pay", q), nil, &resp)
	return resp, err
}

func (c *Client) Skip(ctx context.Context, id string) (Obligation, error) {
	var resp Obligation
	err := c.do(ctx, http.MethodPost, "obligations/"+url.PathEscape(id)+"/skip", nil, &resp)
	return resp, err
}

// Normalize returns how many obligations were rolled forward.
func (c *Client) Normalize(ctx context.Context) (int, error) {
	var resp struct {
		Advanced int `json:"advanced"`
	}
	err := c.do(ctx, http.MethodPost, "normalize", nil, &resp)
	return resp.Advanced, err
}

// Reminders scans one class without marking anything.
func (c *Client) Reminders(ctx context.Context, class string) ([]Reminder, error) {
	var resp []Reminder
	err := c.do(ctx, http.MethodGet, "reminders/"+url.PathEscape(class), nil, &resp)
	return resp, err
}

// AckReminders records delivery of reminders returned by Reminders. Each
// one is acked for the due date it was scanned with, so an obligation
// settled in between is not marked.
func (c *Client) AckReminders(ctx context.Context, class string, reminders []Reminder) (int64, error) {
	type ack struct {
		ObligationID string `json:"obligation_id"`
		DueDate      string `json:"due_date"`
	}
	body := struct {
		Reminders []ack `json:"reminders"`
	}{Reminders: make([]ack, 0, len(reminders))}
	for _, r := range reminders {
		body.Reminders = append(body.Reminders, ack{ObligationID: r.ObligationID, DueDate: r.DueDate})
	}
	var resp struct {
		Marked int64 `json:"marked"`
	}
	err := c.do(ctx, http.MethodPost, "reminders/"+url.PathEscape(class)+"/ack", body, &resp)
	return resp.Marked, err
}

func (c *Client) AddExpense(ctx context.Context, in Entry) (Expense, error) {
	var resp Expense
	err := c.do(ctx, http.MethodPost, "expenses", in, &resp)
	return resp, err
}

// ListExpenses returns expenses between from and to (YYYY-MM-DD), or the
// newest ones when both are empty.
func (c *Client) ListExpenses(ctx context.Context, from, to string) ([]Expense, error) {
	var resp []Expense
	err := c.do(ctx, http.MethodGet, withQuery("expenses", rangeValues(from, to)), nil, &resp)
	return resp, err
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "expenses/"+url.PathEscape(id), nil, nil)
}

func (c *Client) AddIncome(ctx context.Context, in Entry) (Income, error) {
	var resp Income
	err := c.do(ctx, http.MethodPost, "incomes", in, &resp)
	return resp, err
}

func (c *Client) ListIncomes(ctx context.Context, from, to string) ([]Income, error) {
	var resp []Income
	err := c.do(ctx, http.MethodGet, withQuery("incomes", rangeValues(from, to)), nil, &resp)
	return resp, err
}

// Balance returns one month; zero year or month means the current one.
func (c *Client) Balance(ctx context.Context, year, month int) (MonthBalance, error) {
	q := url.Values{}
	if year > 0 {
		q.Set("year", strconv.Itoa(year))
	}
	if month > 0 {
		q.Set("month", strconv.Itoa(month))
	}
	var resp MonthBalance
	err := c.do(ctx, http.MethodGet, withQuery("balance", q), nil, &resp)
	return resp, err
}

// Report fetches a daily, weekly, monthly or yearly report.
func (c *Client) Report(ctx context.Context, period string) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, "reports/"+url.PathEscape(period), nil, &resp)
	return resp, err
}

func (c *Client) ReportRange(ctx context.Context, from, to string) (Report, error) {
	var resp Report
	err := c.do(ctx, http.MethodGet, withQuery("reports", rangeValues(from, to)), nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code, apiErr.Message = envelope.Error.Code, envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func rangeValues(from, to string) url.Values {
	q := url.Values{}
	if from != "" {
		q.Set("from", from)
	}
	if to != "" {
		q.Set("to", to)
	}
	return q
}
