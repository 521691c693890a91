package engine

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"fintrack/internal/domain"
	"fintrack/internal/events"
	"fintrack/internal/repo"
	"fintrack/internal/schedule"
)

const (
	entityExpense = "expense"
	entityIncome  = "income"
)

// EntryInput is the shared shape of a manual expense or income.
type EntryInput struct {
	OwnerID     int64
	Amount      decimal.Decimal
	Category    string
	Description string
	// Date defaults to today.
	Date    *time.Time
	Kind    domain.ExpenseKind
	ActorID string
}

func (in EntryInput) validate() error {
	if in.OwnerID == 0 {
		return invalid("owner", "required")
	}
	if !in.Amount.IsPositive() {
		return invalid("amount", "must be positive")
	}
	return nil
}

func (e Engine) AddExpense(ctx context.Context, in EntryInput) (domain.Expense, error) {
	if err := in.validate(); err != nil {
		return domain.Expense{}, err
	}
	if strings.TrimSpace(in.Category) == "" {
		return domain.Expense{}, invalid("category", "must not be empty")
	}
	kind := in.Kind
	if kind == "" {
		kind = domain.ExpenseOnce
	}
	exp := domain.Expense{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Amount:      in.Amount,
		Category:    strings.TrimSpace(in.Category),
		Description: optionalText(in.Description),
		Date:        e.entryDate(in.Date),
		Kind:        kind,
		CreatedAt:   e.now().UTC().Truncate(time.Second),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertExpense(ctx, tx, exp); err != nil {
			return err
		}
		return e.writer().Append(ctx, tx, events.ExpenseAdded, exp.OwnerID, entityExpense, exp.ID, in.ActorID, events.EventPayload{
			"amount":   exp.Amount.String(),
			"category": exp.Category,
		})
	})
	if err != nil {
		return domain.Expense{}, err
	}
	return exp, nil
}

func (e Engine) AddIncome(ctx context.Context, in EntryInput) (domain.Income, error) {
	if err := in.validate(); err != nil {
		return domain.Income{}, err
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = e.cfg().Ledger.IncomeCategory
	}
	inc := domain.Income{
		ID:          uuid.NewString(),
		OwnerID:     in.OwnerID,
		Amount:      in.Amount,
		Category:    category,
		Description: optionalText(in.Description),
		Date:        e.entryDate(in.Date),
		CreatedAt:   e.now().UTC().Truncate(time.Second),
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertIncome(ctx, tx, inc); err != nil {
			return err
		}
		return e.writer().Append(ctx, tx, events.IncomeAdded, inc.OwnerID, entityIncome, inc.ID, in.ActorID, events.EventPayload{
			"amount":   inc.Amount.String(),
			"category": inc.Category,
		})
	})
	if err != nil {
		return domain.Income{}, err
	}
	return inc, nil
}

// ListExpenses returns expenses dated within [from, to]; zero bounds are open.
func (e Engine) ListExpenses(ctx context.Context, ownerID int64, from, to time.Time) ([]domain.Expense, error) {
	return e.Repo.ListExpenses(ctx, ledgerFilter(ownerID, from, to))
}

// LastExpenses returns the newest expenses first.
func (e Engine) LastExpenses(ctx context.Context, ownerID int64, limit int) ([]domain.Expense, error) {
	if limit <= 0 {
		limit = 10
	}
	return e.Repo.ListExpenses(ctx, repo.LedgerFilter{OwnerID: ownerID, Limit: limit, Newest: true})
}

func (e Engine) ListIncomes(ctx context.Context, ownerID int64, from, to time.Time) ([]domain.Income, error) {
	return e.Repo.ListIncomes(ctx, ledgerFilter(ownerID, from, to))
}

// DeleteExpense reports false when the expense does not exist.
func (e Engine) DeleteExpense(ctx context.Context, id string, ownerID int64, actorID string) (bool, error) {
	return e.deleteEntry(ctx, events.ExpenseDeleted, entityExpense, id, ownerID, actorID, e.Repo.DeleteExpense)
}

func (e Engine) DeleteIncome(ctx context.Context, id string, ownerID int64, actorID string) (bool, error) {
	return e.deleteEntry(ctx, events.IncomeDeleted, entityIncome, id, ownerID, actorID, e.Repo.DeleteIncome)
}

func (e Engine) deleteEntry(ctx context.Context, evtType, kind, id string, ownerID int64, actorID string,
	del func(context.Context, *sql.Tx, string, int64) error) (bool, error) {
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := del(ctx, tx, id, ownerID); err != nil {
			return err
		}
		return e.writer().Append(ctx, tx, evtType, ownerID, kind, id, actorID, nil)
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (e Engine) entryDate(d *time.Time) time.Time {
	if d == nil {
		return e.today()
	}
	return schedule.Civil(*d)
}

func ledgerFilter(ownerID int64, from, to time.Time) repo.LedgerFilter {
	f := repo.LedgerFilter{OwnerID: ownerID}
	if !from.IsZero() {
		f.From = &from
	}
	if !to.IsZero() {
		f.To = &to
	}
	return f
}

func optionalText(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
