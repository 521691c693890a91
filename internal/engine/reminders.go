package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fintrack/internal/domain"
	"fintrack/internal/events"
	"fintrack/internal/repo"
	"fintrack/internal/schedule"
)

// Notifier delivers a single reminder. Implementations live in package notify.
type Notifier interface {
	Notify(ctx context.Context, r domain.Reminder) error
}

// Scan normalizes first so no reminder fires against a stale past date,
// then returns the reminders of class that are still due for delivery.
func (e Engine) Scan(ctx context.Context, class domain.ReminderClass, ownerID *int64) ([]domain.Reminder, error) {
	if _, err := domain.ParseReminderClass(string(class)); err != nil {
		return nil, invalid("class", "%v", err)
	}
	if _, err := e.Normalize(ctx, ownerID); err != nil {
		return nil, err
	}
	obs, err := e.Repo.ListObligations(ctx, nil, repo.ObligationFilter{OwnerID: ownerID, ActiveOnly: true})
	if err != nil {
		return nil, fmt.Errorf("load active obligations: %w", err)
	}
	now := e.now()
	today := e.today()
	selected := schedule.Select(class, obs, now, today, e.cfg().Reminders.OverdueThrottle)
	return schedule.Reminders(class, selected, today), nil
}

// Mark records delivery of each occurrence: overdue stamps the throttle
// timestamp, every other class sets the reminder flag. An occurrence settled
// since its scan is not touched, so the next one keeps its own reminder.
// It returns how many rows were marked.
func (e Engine) Mark(ctx context.Context, class domain.ReminderClass, occ []domain.Occurrence) (int64, error) {
	if class == domain.ReminderOverdue {
		return e.MarkOverdueSent(ctx, occ)
	}
	return e.MarkReminderSent(ctx, occ)
}

func (e Engine) MarkReminderSent(ctx context.Context, occ []domain.Occurrence) (int64, error) {
	return e.mark(ctx, occ, "reminder_sent", func(tx *sql.Tx, o domain.Occurrence) (bool, error) {
		return e.Repo.MarkReminderSent(ctx, tx, o)
	})
}

func (e Engine) MarkOverdueSent(ctx context.Context, occ []domain.Occurrence) (int64, error) {
	now := e.now()
	return e.mark(ctx, occ, "overdue_last_sent_at", func(tx *sql.Tx, o domain.Occurrence) (bool, error) {
		return e.Repo.MarkOverdueSent(ctx, tx, o, now)
	})
}

func (e Engine) mark(ctx context.Context, occ []domain.Occurrence, field string, update func(*sql.Tx, domain.Occurrence) (bool, error)) (int64, error) {
	if len(occ) == 0 {
		return 0, nil
	}
	var n int64
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		n = 0
		for _, o := range occ {
			ok, err := update(tx, o)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			n++
			if err := e.writer().Append(ctx, tx, events.ReminderMarked, o.OwnerID, entityObligation, o.ObligationID, "", events.EventPayload{
				"field":    field,
				"due_date": o.DueDate.Format(schedule.DateLayout),
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return n, err
}

// DispatchReport summarizes one Dispatch run.
type DispatchReport struct {
	Class     domain.ReminderClass `json:"class"`
	Selected  int                  `json:"selected"`
	Delivered int                  `json:"delivered"`
	Failed    int                  `json:"failed"`
}

// Dispatch scans class across all owners and hands each reminder to n.
// Only reminders n accepted are marked; a failing or panicking delivery is
// logged and the rest of the batch still goes out.
func (e Engine) Dispatch(ctx context.Context, class domain.ReminderClass, n Notifier) (DispatchReport, error) {
	started := time.Now()
	report := DispatchReport{Class: class}
	reminders, err := e.Scan(ctx, class, nil)
	if err != nil {
		return report, err
	}
	report.Selected = len(reminders)
	log := e.logger().With("class", class)
	var delivered []domain.Occurrence
	for _, r := range reminders {
		if err := deliver(ctx, n, r); err != nil {
			report.Failed++
			log.Warn("reminder delivery failed", "obligation_id", r.ObligationID, "owner_id", r.OwnerID, "error", err)
			continue
		}
		delivered = append(delivered, r.Occurrence())
	}
	report.Delivered = len(delivered)
	if _, err := e.Mark(ctx, class, delivered); err != nil {
		return report, fmt.Errorf("mark %s reminders: %w", class, err)
	}
	e.Metrics.ObserveDispatch(string(class), report.Delivered, report.Failed, time.Since(started))
	if report.Selected > 0 {
		log.Info("reminders dispatched", "selected", report.Selected, "delivered", report.Delivered, "failed", report.Failed)
	}
	return report, nil
}

func deliver(ctx context.Context, n Notifier, r domain.Reminder) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panic: %v", p)
		}
	}()
	return n.Notify(ctx, r)
}
