// Package notify delivers reminders to people: webhooks, Telegram and the
// process log, fanned out by Multi.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"fintrack/internal/config"
	"fintrack/internal/domain"
	"fintrack/internal/schedule"
)

// Notifier delivers a single reminder.
type Notifier interface {
	Notify(ctx context.Context, r domain.Reminder) error
}

// SummaryNotifier delivers end-of-day expense summaries. Sinks that do not
// implement it are left out of summary fan-out.
type SummaryNotifier interface {
	NotifySummary(ctx context.Context, s domain.DailySummary) error
}

// ErrSkipped is returned by a sink that is not subscribed to a reminder's
// class. It is neither a delivery nor a failure.
var ErrSkipped = errors.New("reminder class not subscribed")

// SummaryEvent is the webhook class name that subscribes to daily summaries.
const SummaryEvent = "daily_summary"

// Message renders the plain-text body used by chat sinks.
func Message(r domain.Reminder) string {
	var b strings.Builder
	switch r.Class {
	case domain.ReminderOverdue:
		fmt.Fprintf(&b, "Overdue by %d day(s): %s", r.DaysOverdue, r.Description)
	case domain.ReminderDueTomorrow:
		fmt.Fprintf(&b, "Due tomorrow: %s", r.Description)
	default:
		fmt.Fprintf(&b, "Due in %d day(s): %s", r.DaysUntil, r.Description)
	}
	fmt.Fprintf(&b, "\nAmount: %s", r.Amount.StringFixedBank(2))
	if r.Category != "" && r.Category != r.Description {
		fmt.Fprintf(&b, "\nCategory: %s", r.Category)
	}
	fmt.Fprintf(&b, "\nDue date: %s (%s)", r.DueDate.Format(schedule.DateLayout), r.Frequency)
	return b.String()
}

// SummaryMessage renders a daily summary: total, count and each category's
// share of the day.
func SummaryMessage(s domain.DailySummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Daily report for %s", s.Date.Format("02.01.2006"))
	fmt.Fprintf(&b, "\nTotal spent: %s", s.Total.StringFixedBank(2))
	fmt.Fprintf(&b, "\nExpenses: %d", s.Count)
	if len(s.Categories) > 0 {
		b.WriteString("\n\nBy category:")
		for _, c := range s.Categories {
			fmt.Fprintf(&b, "\n- %s: %s (%.1f%%)", c.Category, c.Total.StringFixedBank(2), c.Percent)
		}
	}
	return b.String()
}

// classFilter matches everything when built from an empty list.
type classFilter map[domain.ReminderClass]struct{}

func newClassFilter(classes []string) (classFilter, error) {
	if len(classes) == 0 {
		return nil, nil
	}
	f := classFilter{}
	for _, c := range classes {
		if strings.EqualFold(strings.TrimSpace(c), SummaryEvent) {
			f[SummaryEvent] = struct{}{}
			continue
		}
		class, err := domain.ParseReminderClass(c)
		if err != nil {
			return nil, err
		}
		f[class] = struct{}{}
	}
	return f, nil
}

func (f classFilter) match(c domain.ReminderClass) bool {
	if len(f) == 0 {
		return true
	}
	_, ok := f[c]
	return ok
}

// FromConfig assembles the configured sinks. The Telegram token is read from
// the environment variable named in the config.
func FromConfig(cfg config.NotifyConfig, logger *slog.Logger) (Multi, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var sinks Multi
	if cfg.Log {
		sinks = append(sinks, Log{Logger: logger})
	}
	for i, hook := range cfg.Webhooks {
		if hook.Enabled != nil && !*hook.Enabled {
			continue
		}
		w, err := NewWebhook(hook)
		if err != nil {
			return nil, fmt.Errorf("notify.webhooks[%d]: %w", i, err)
		}
		sinks = append(sinks, w)
	}
	if cfg.Telegram.Enabled {
		token := strings.TrimSpace(os.Getenv(cfg.Telegram.TokenEnv))
		if token == "" {
			return nil, fmt.Errorf("telegram enabled but %s is empty", cfg.Telegram.TokenEnv)
		}
		tg, err := NewTelegram(token)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, tg)
	}
	if len(sinks) == 0 {
		logger.Warn("no reminder sinks configured; reminders will only be logged")
		sinks = append(sinks, Log{Logger: logger})
	}
	return sinks, nil
}
