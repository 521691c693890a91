package notify

import (
	"context"
	"errors"
	"log/slog"

	"fintrack/internal/domain"
)

// Log writes reminders to the structured log.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(ctx context.Context, r domain.Reminder) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "reminder",
		"class", r.Class,
		"obligation_id", r.ObligationID,
		"owner_id", r.OwnerID,
		"description", r.Description,
		"amount", r.Amount.String(),
		"due_date", r.DueDate.Format("2006-01-02"),
		"days_until", r.DaysUntil,
		"days_overdue", r.DaysOverdue,
	)
	return nil
}

func (l Log) NotifySummary(ctx context.Context, s domain.DailySummary) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "daily summary",
		"owner_id", s.OwnerID,
		"date", s.Date.Format("2006-01-02"),
		"total", s.Total.String(),
		"count", s.Count,
		"categories", len(s.Categories),
	)
	return nil
}

// Multi fans a reminder out to every sink. It succeeds when at least one
// sink delivered, or when every sink skipped the class; otherwise it
// returns the joined sink errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, r domain.Reminder) error {
	var errs []error
	delivered := false
	for _, n := range m {
		err := n.Notify(ctx, r)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrSkipped):
		default:
			errs = append(errs, err)
		}
	}
	if delivered || len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}

// NotifySummary fans a summary out to the sinks that take summaries, with
// the same success rule as Notify.
func (m Multi) NotifySummary(ctx context.Context, s domain.DailySummary) error {
	var errs []error
	delivered := false
	for _, n := range m {
		sn, ok := n.(SummaryNotifier)
		if !ok {
			continue
		}
		err := sn.NotifySummary(ctx, s)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrSkipped):
		default:
			errs = append(errs, err)
		}
	}
	if delivered || len(errs) == 0 {
		return nil
	}
	return errors.Join(errs...)
}
