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

// PayOptions identifies the occurrence to settle. Amount overrides the
// obligation's planned amount for the recorded expense.
type PayOptions struct {
	ObligationID string
	OwnerID      int64
	Amount       *decimal.Decimal
	ActorID      string
}

// PayResult carries the obligation after settlement. When Retired is set
// the row no longer exists and Obligation is its final state.
type PayResult struct {
	Obligation domain.Obligation `json:"obligation"`
	Expense    domain.Expense    `json:"expense"`
	Retired    bool              `json:"retired"`
}

// Pay settles the current occurrence and records exactly one expense dated
// today. The expense, the obligation change and the audit event commit
// together or not at all.
func (e Engine) Pay(ctx context.Context, opts PayOptions) (res PayResult, err error) {
	defer func() { e.Metrics.ObserveSettlement("pay", err) }()
	amount, err := e.payAmount(opts.Amount)
	if err != nil {
		return PayResult{}, err
	}
	today := e.today()
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		o, err := e.Repo.GetActiveObligation(ctx, tx, opts.ObligationID, opts.OwnerID)
		if err != nil {
			return err
		}
		if amount == nil {
			amount = &o.Amount
		}
		exp := domain.Expense{
			ID:           uuid.NewString(),
			OwnerID:      o.OwnerID,
			Amount:       *amount,
			Category:     o.Category,
			Description:  o.Description,
			Date:         today,
			Kind:         domain.ExpenseOnce,
			ObligationID: &o.ID,
			CreatedAt:    e.now().UTC().Truncate(time.Second),
		}
		if exp.Category == "" {
			exp.Category = e.cfg().Ledger.PaymentCategory
		}

		next := o
		next.PaymentDate = &today
		next.OverdueLastSentAt = nil
		evtType := events.ObligationPaid
		switch {
		case !o.Frequency.Recurring():
			next.IsPaid = true
			next.ReminderSent = true
			err = e.Repo.UpdateObligationIfCurrent(ctx, tx, o, next)
		case o.OccurrencesLeft != nil && *o.OccurrencesLeft-1 <= 0:
			left := 0
			next.OccurrencesLeft = &left
			evtType = events.ObligationRetired
			res.Retired = true
			err = e.Repo.DeleteObligationIfCurrent(ctx, tx, o)
		default:
			if o.OccurrencesLeft != nil {
				left := *o.OccurrencesLeft - 1
				next.OccurrencesLeft = &left
			}
			next.DueDate = schedule.NextDueDate(o, o.DueDate)
			next.ReminderSent = false
			err = e.Repo.UpdateObligationIfCurrent(ctx, tx, o, next)
		}
		if err != nil {
			return err
		}
		if err := e.Repo.InsertExpense(ctx, tx, exp); err != nil {
			return err
		}
		payload := events.EventPayload{
			"expense_id": exp.ID,
			"amount":     exp.Amount.String(),
			"prev_due":   o.DueDate.Format(schedule.DateLayout),
		}
		if !res.Retired {
			payload["next_due"] = next.DueDate.Format(schedule.DateLayout)
		}
		if err := e.writer().Append(ctx, tx, evtType, o.OwnerID, entityObligation, o.ID, opts.ActorID, payload); err != nil {
			return err
		}
		res.Obligation = next
		res.Expense = exp
		return nil
	})
	if err != nil {
		return PayResult{}, err
	}
	return res, nil
}

func (e Engine) payAmount(override *decimal.Decimal) (*decimal.Decimal, error) {
	if override == nil {
		return nil, nil
	}
	if !override.IsPositive() {
		return nil, invalid("amount", "must be positive")
	}
	v := *override
	return &v, nil
}

// Skip passes over the current occurrence without recording an expense.
// A one-off becomes skipped; a recurring obligation advances as Pay would.
func (e Engine) Skip(ctx context.Context, id string, ownerID int64, actorID string) (o domain.Obligation, err error) {
	defer func() { e.Metrics.ObserveSettlement("skip", err) }()
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		prev, err := e.Repo.GetActiveObligation(ctx, tx, id, ownerID)
		if err != nil {
			return err
		}
		next := prev
		next.OverdueLastSentAt = nil
		if prev.Frequency.Recurring() {
			next.DueDate = schedule.NextDueDate(prev, prev.DueDate)
			next.ReminderSent = false
		} else {
			next.IsSkipped = true
			next.ReminderSent = true
		}
		if err := e.Repo.UpdateObligationIfCurrent(ctx, tx, prev, next); err != nil {
			return err
		}
		if err := e.writer().Append(ctx, tx, events.ObligationSkipped, ownerID, entityObligation, id, actorID, events.EventPayload{
			"prev_due": prev.DueDate.Format(schedule.DateLayout),
			"next_due": next.DueDate.Format(schedule.DateLayout),
		}); err != nil {
			return err
		}
		o = next
		return nil
	})
	if err != nil {
		return domain.Obligation{}, err
	}
	return o, nil
}

// Normalize rolls every active recurring obligation whose due date is before
// today forward to its next occurrence after today. A nil owner normalizes
// everyone. Running it twice is a no-op the second time.
func (e Engine) Normalize(ctx context.Context, ownerID *int64) (int, error) {
	today := e.today()
	advanced := 0
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		stale, err := e.Repo.ListObligations(ctx, tx, repo.ObligationFilter{
			OwnerID:       ownerID,
			ActiveOnly:    true,
			RecurringOnly: true,
			DueBefore:     &today,
		})
		if err != nil {
			return err
		}
		for _, o := range stale {
			next := o
			next.DueDate = schedule.NextDueDate(o, today)
			next.ReminderSent = false
			next.OverdueLastSentAt = nil
			err := e.Repo.UpdateObligationIfCurrent(ctx, tx, o, next)
			if errors.Is(err, repo.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if err := e.writer().Append(ctx, tx, events.ObligationNormalized, o.OwnerID, entityObligation, o.ID, "", events.EventPayload{
				"prev_due": o.DueDate.Format(schedule.DateLayout),
				"next_due": next.DueDate.Format(schedule.DateLayout),
			}); err != nil {
				return err
			}
			advanced++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if advanced > 0 {
		e.logger().Debug("normalized obligations", "count", advanced, "today", today.Format(schedule.DateLayout))
	}
	e.Metrics.ObserveNormalized(advanced)
	return advanced, nil
}
