package engine

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/domain"
)

// SummaryNotifier delivers an end-of-day expense summary.
type SummaryNotifier interface {
	NotifySummary(ctx context.Context, s domain.DailySummary) error
}

// SummaryReport summarizes one SendDailySummaries run.
type SummaryReport struct {
	Date      time.Time `json:"date"`
	Owners    int       `json:"owners"`
	Delivered int       `json:"delivered"`
	Failed    int       `json:"failed"`
}

// DailySummary reports ownerID's expenses for today. Count is zero on a day
// without spending.
func (e Engine) DailySummary(ctx context.Context, ownerID int64) (domain.DailySummary, error) {
	today := e.today()
	rep, err := e.Report(ctx, ownerID, today, today)
	if err != nil {
		return domain.DailySummary{}, err
	}
	s := domain.DailySummary{OwnerID: ownerID, Date: today, Total: rep.Total, Count: rep.Count}
	for _, c := range rep.Categories {
		s.Categories = append(s.Categories, domain.CategoryShare{Category: c.Category, Total: c.Total, Percent: c.Percent})
	}
	return s, nil
}

// SendDailySummaries hands today's summary of every owner who spent
// something today to n. Owners without expenses get nothing.
func (e Engine) SendDailySummaries(ctx context.Context, n SummaryNotifier) (SummaryReport, error) {
	started := time.Now()
	today := e.today()
	report := SummaryReport{Date: today}
	owners, err := e.Repo.ExpenseOwners(ctx, today, today)
	if err != nil {
		return report, fmt.Errorf("load expense owners: %w", err)
	}
	report.Owners = len(owners)
	log := e.logger().With("job", "daily_summary")
	for _, owner := range owners {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s, err := e.DailySummary(ctx, owner)
		if err != nil {
			return report, err
		}
		if err := deliverSummary(ctx, n, s); err != nil {
			report.Failed++
			log.Warn("daily summary delivery failed", "owner_id", owner, "error", err)
			continue
		}
		report.Delivered++
	}
	e.Metrics.ObserveDispatch("daily_summary", report.Delivered, report.Failed, time.Since(started))
	if report.Owners > 0 {
		log.Info("daily summaries sent", "owners", report.Owners, "delivered", report.Delivered, "failed", report.Failed)
	}
	return report, nil
}

func deliverSummary(ctx context.Context, n SummaryNotifier, s domain.DailySummary) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("notifier panic: %v", p)
		}
	}()
	return n.NotifySummary(ctx, s)
}
