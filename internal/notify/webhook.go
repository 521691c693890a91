package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/domain"
	"fintrack/internal/schedule"
)

const defaultWebhookTimeout = 5 * time.Second

// Webhook POSTs each reminder as JSON.
type Webhook struct {
	URL     string
	Secret  string
	Timeout time.Duration
	Client  *http.Client
	classes classFilter
}

func NewWebhook(hook config.WebhookConfig) (*Webhook, error) {
	if strings.TrimSpace(hook.URL) == "" {
		return nil, fmt.Errorf("url is required")
	}
	classes, err := newClassFilter(hook.Classes)
	if err != nil {
		return nil, err
	}
	timeout := defaultWebhookTimeout
	if hook.TimeoutSeconds > 0 {
		timeout = time.Duration(hook.TimeoutSeconds) * time.Second
	}
	return &Webhook{
		URL:     hook.URL,
		Secret:  hook.Secret,
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
		classes: classes,
	}, nil
}

type webhookReminder struct {
	ObligationID string `json:"obligation_id"`
	OwnerID      int64  `json:"owner_id"`
	Class        string `json:"class"`
	Description  string `json:"description"`
	Category     string `json:"category"`
	Amount       string `json:"amount"`
	Frequency    string `json:"frequency"`
	DueDate      string `json:"due_date"`
	DaysUntil    int    `json:"days_until"`
	DaysOverdue  int    `json:"days_overdue"`
	Text         string `json:"text"`
}

func (w *Webhook) Notify(ctx context.Context, r domain.Reminder) error {
	if !w.classes.match(r.Class) {
		return ErrSkipped
	}
	body := webhookReminder{
		ObligationID: r.ObligationID,
		OwnerID:      r.OwnerID,
		Class:        string(r.Class),
		Description:  r.Description,
		Category:     r.Category,
		Amount:       r.Amount.String(),
		Frequency:    string(r.Frequency),
		DueDate:      r.DueDate.Format(schedule.DateLayout),
		DaysUntil:    r.DaysUntil,
		DaysOverdue:  r.DaysOverdue,
		Text:         Message(r),
	}
	return w.post(ctx, "reminder."+string(r.Class), r.ObligationID+"@"+body.DueDate, body)
}

type webhookCategory struct {
	Category string  `json:"category"`
	Total    string  `json:"total"`
	Percent  float64 `json:"percent"`
}

type webhookSummary struct {
	OwnerID    int64             `json:"owner_id"`
	Date       string            `json:"date"`
	Total      string            `json:"total"`
	Count      int               `json:"count"`
	Categories []webhookCategory `json:"categories"`
	Text       string            `json:"text"`
}

// NotifySummary posts the summary when the hook subscribes to it: an empty
// class list or one naming daily_summary.
func (w *Webhook) NotifySummary(ctx context.Context, s domain.DailySummary) error {
	if !w.classes.match(SummaryEvent) {
		return ErrSkipped
	}
	body := webhookSummary{
		OwnerID:    s.OwnerID,
		Date:       s.Date.Format(schedule.DateLayout),
		Total:      s.Total.String(),
		Count:      s.Count,
		Categories: make([]webhookCategory, 0, len(s.Categories)),
		Text:       SummaryMessage(s),
	}
	for _, c := range s.Categories {
		body.Categories = append(body.Categories, webhookCategory{Category: c.Category, Total: c.Total.String(), Percent: c.Percent})
	}
	return w.post(ctx, SummaryEvent, fmt.Sprintf("%d@%s", s.OwnerID, body.Date), body)
}

func (w *Webhook) post(ctx context.Context, event, delivery string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: defaultWebhookTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fintrack-Event", event)
	req.Header.Set("X-Fintrack-Delivery", delivery)
	if strings.TrimSpace(w.Secret) != "" {
		req.Header.Set("X-Fintrack-Secret", w.Secret)
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("webhook %s: status %d: %s", w.URL, res.StatusCode, strings.TrimSpace(string(bodyBytes)))
	}
	return nil
}
