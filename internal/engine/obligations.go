package engine

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/domain"
	"fintrack/internal/events"
	"fintrack/internal/repo"
	"fintrack/internal/schedule"
)

const entityObligation = "obligation"

// CreateObligation completes and validates the draft, then persists it with
// an audit event. Nothing is written when the draft is invalid.
func (e Engine) CreateObligation(ctx context.Context, ownerID int64, draft ObligationDraft, actorID string) (domain.Obligation, error) {
	if ownerID == 0 {
		return domain.Obligation{}, invalid("owner", "required")
	}
	if err := draft.Complete(e.today()); err != nil {
		return domain.Obligation{}, err
	}
	o := domain.Obligation{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Amount:          draft.Amount,
		Category:        draft.Category,
		Description:     draft.Description,
		DueDate:         schedule.Civil(*draft.DueDate),
		Frequency:       draft.Frequency,
		Weekday:         draft.Weekday,
		DayOfMonth:      draft.DayOfMonth,
		OccurrencesLeft: draft.OccurrencesLeft,
		CreatedAt:       e.now().UTC().Truncate(time.Second),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertObligation(ctx, tx, o); err != nil {
			return err
		}
		return e.writer().Append(ctx, tx, events.ObligationCreated, ownerID, entityObligation, o.ID, actorID, events.EventPayload{
			"amount":    o.Amount.String(),
			"frequency": o.Frequency,
			"due_date":  o.DueDate.Format(schedule.DateLayout),
		})
	})
	if err != nil {
		return domain.Obligation{}, err
	}
	return o, nil
}

// GetObligation returns an obligation in any state.
func (e Engine) GetObligation(ctx context.Context, id string, ownerID int64) (domain.Obligation, error) {
	return e.Repo.GetObligation(ctx, nil, id, ownerID)
}

// ListOptions narrows ListObligations.
type ListOptions struct {
	IncludeSettled bool
	Frequency      domain.Frequency
	Limit          int
}

// ListObligations normalizes the owner's schedule, then lists it.
func (e Engine) ListObligations(ctx context.Context, ownerID int64, opts ListOptions) ([]domain.Obligation, error) {
	if _, err := e.Normalize(ctx, &ownerID); err != nil {
		return nil, err
	}
	return e.Repo.ListObligations(ctx, nil, repo.ObligationFilter{
		OwnerID:    &ownerID,
		ActiveOnly: !opts.IncludeSettled,
		Frequency:  opts.Frequency,
		Limit:      opts.Limit,
	})
}

// UpcomingObligations lists active obligations due within today..today+days.
func (e Engine) UpcomingObligations(ctx context.Context, ownerID int64, days int) ([]domain.Obligation, error) {
	if days <= 0 {
		days = 30
	}
	today := e.today()
	return e.activeBetween(ctx, ownerID, today, today.AddDate(0, 0, days))
}

// UpcomingThisMonth lists active obligations due from today to month end.
func (e Engine) UpcomingThisMonth(ctx context.Context, ownerID int64) ([]domain.Obligation, error) {
	today := e.today()
	_, end := MonthRange(today.Year(), today.Month())
	return e.activeBetween(ctx, ownerID, today, end)
}

// FutureObligations lists the next active obligations from today on.
func (e Engine) FutureObligations(ctx context.Context, ownerID int64, limit int) ([]domain.Obligation, error) {
	if _, err := e.Normalize(ctx, &ownerID); err != nil {
		return nil, err
	}
	today := e.today()
	if limit <= 0 {
		limit = 10
	}
	return e.Repo.ListObligations(ctx, nil, repo.ObligationFilter{OwnerID: &ownerID, ActiveOnly: true, DueFrom: &today, Limit: limit})
}

// OverdueObligations lists active obligations still due before today after
// normalization, which leaves only one-off occurrences behind.
func (e Engine) OverdueObligations(ctx context.Context, ownerID int64) ([]domain.Obligation, error) {
	if _, err := e.Normalize(ctx, &ownerID); err != nil {
		return nil, err
	}
	today := e.today()
	return e.Repo.ListObligations(ctx, nil, repo.ObligationFilter{OwnerID: &ownerID, ActiveOnly: true, DueBefore: &today})
}

// MonthSummary totals active obligations due in the current month.
type MonthSummary struct {
	Year        int                 `json:"year"`
	Month       time.Month          `json:"month"`
	From        time.Time           `json:"from"`
	To          time.Time           `json:"to"`
	Total       decimal.Decimal     `json:"total"`
	Count       int                 `json:"count"`
	Obligations []domain.Obligation `json:"obligations"`
}

func (e Engine) MonthlyObligationSummary(ctx context.Context, ownerID int64) (MonthSummary, error) {
	today := e.today()
	from, to := MonthRange(today.Year(), today.Month())
	obs, err := e.activeBetween(ctx, ownerID, from, to)
	if err != nil {
		return MonthSummary{}, err
	}
	sum := MonthSummary{Year: today.Year(), Month: today.Month(), From: from, To: to, Total: decimal.Zero, Count: len(obs), Obligations: obs}
	for _, o := range obs {
		sum.Total = sum.Total.Add(o.Amount)
	}
	return sum, nil
}

func (e Engine) activeBetween(ctx context.Context, ownerID int64, from, to time.Time) ([]domain.Obligation, error) {
	if _, err := e.Normalize(ctx, &ownerID); err != nil {
		return nil, err
	}
	return e.Repo.ListObligations(ctx, nil, repo.ObligationFilter{OwnerID: &ownerID, ActiveOnly: true, DueFrom: &from, DueTo: &to})
}

// Delete removes an obligation regardless of state. It reports false when
// there was nothing to delete.
func (e Engine) Delete(ctx context.Context, id string, ownerID int64, actorID string) (bool, error) {
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.DeleteObligation(ctx, tx, id, ownerID); err != nil {
			return err
		}
		return e.writer().Append(ctx, tx, events.ObligationDeleted, ownerID, entityObligation, id, actorID, nil)
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
