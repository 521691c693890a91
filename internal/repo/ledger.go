package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fintrack/internal/domain"
)

// LedgerFilter selects expenses or incomes for one owner. From and To are
// inclusive civil dates.
type LedgerFilter struct {
	OwnerID  int64
	From     *time.Time
	To       *time.Time
	Category string
	Limit    int
	// Newest orders by date descending; default is chronological.
	Newest bool
}

func (f LedgerFilter) where() (string, []any) {
	clauses := []string{"owner_id=?"}
	args := []any{f.OwnerID}
	if f.From != nil {
		clauses = append(clauses, "date>=?")
		args = append(args, f.From.Format(dateLayout))
	}
	if f.To != nil {
		clauses = append(clauses, "date<=?")
		args = append(args, f.To.Format(dateLayout))
	}
	if f.Category != "" {
		clauses = append(clauses, "category=?")
		args = append(args, f.Category)
	}
	order := "date ASC, created_at ASC"
	if f.Newest {
		order = "date DESC, created_at DESC"
	}
	query := " WHERE " + strings.Join(clauses, " AND ") + " ORDER BY " + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return query, args
}

const expenseColumns = `id,owner_id,amount,category,description,date,kind,obligation_id,created_at`

func scanExpense(row rowScanner) (domain.Expense, error) {
	var (
		e                  domain.Expense
		amount, date, kind string
		ts                 string
		desc, obligation   sql.NullString
	)
	err := row.Scan(&e.ID, &e.OwnerID, &amount, &e.Category, &desc, &date, &kind, &obligation, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if e.Amount, err = parseAmount(amount); err != nil {
		return e, err
	}
	if e.Date, err = parseDate(date); err != nil {
		return e, err
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339, ts); err != nil {
		return e, fmt.Errorf("stored created_at %q: %w", ts, err)
	}
	e.Kind = domain.ExpenseKind(kind)
	e.Description = optionalString(desc)
	e.ObligationID = optionalString(obligation)
	return e, nil
}

func (r Repo) InsertExpense(ctx context.Context, tx *sql.Tx, e domain.Expense) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO expenses(`+expenseColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.ID, e.OwnerID, e.Amount.String(), e.Category, nullableStringPtr(e.Description), e.Date.Format(dateLayout),
		string(e.Kind), nullableStringPtr(e.ObligationID), e.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (r Repo) GetExpense(ctx context.Context, id string, ownerID int64) (domain.Expense, error) {
	return scanExpense(r.DB.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id=? AND owner_id=?`, id, ownerID))
}

func (r Repo) ListExpenses(ctx context.Context, f LedgerFilter) ([]domain.Expense, error) {
	where, args := f.where()
	rows, err := r.DB.QueryContext(ctx, `SELECT `+expenseColumns+` FROM expenses`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// ExpenseOwners lists the owners with at least one expense in [from, to].
func (r Repo) ExpenseOwners(ctx context.Context, from, to time.Time) ([]int64, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT DISTINCT owner_id FROM expenses WHERE date>=? AND date<=? ORDER BY owner_id`,
		from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var owners []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		owners = append(owners, id)
	}
	return owners, rows.Err()
}

func (r Repo) DeleteExpense(ctx context.Context, tx *sql.Tx, id string, ownerID int64) error {
	return r.deleteOwned(ctx, tx, "expenses", id, ownerID)
}

const incomeColumns = `id,owner_id,amount,category,description,date,created_at`

func scanIncome(row rowScanner) (domain.Income, error) {
	var (
		in               domain.Income
		amount, date, ts string
		desc             sql.NullString
	)
	err := row.Scan(&in.ID, &in.OwnerID, &amount, &in.Category, &desc, &date, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return in, ErrNotFound
	}
	if err != nil {
		return in, err
	}
	if in.Amount, err = parseAmount(amount); err != nil {
		return in, err
	}
	if in.Date, err = parseDate(date); err != nil {
		return in, err
	}
	if in.CreatedAt, err = time.Parse(time.RFC3339, ts); err != nil {
		return in, fmt.Errorf("stored created_at %q: %w", ts, err)
	}
	in.Description = optionalString(desc)
	return in, nil
}

func (r Repo) InsertIncome(ctx context.Context, tx *sql.Tx, in domain.Income) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO incomes(`+incomeColumns+`) VALUES (?,?,?,?,?,?,?)`,
		in.ID, in.OwnerID, in.Amount.String(), in.Category, nullableStringPtr(in.Description), in.Date.Format(dateLayout),
		in.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert income: %w", err)
	}
	return nil
}

func (r Repo) ListIncomes(ctx context.Context, f LedgerFilter) ([]domain.Income, error) {
	where, args := f.where()
	rows, err := r.DB.QueryContext(ctx, `SELECT `+incomeColumns+` FROM incomes`+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Income
	for rows.Next() {
		in, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, in)
	}
	return res, rows.Err()
}

func (r Repo) DeleteIncome(ctx context.Context, tx *sql.Tx, id string, ownerID int64) error {
	return r.deleteOwned(ctx, tx, "incomes", id, ownerID)
}

func (r Repo) deleteOwned(ctx context.Context, tx *sql.Tx, table, id string, ownerID int64) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM `+table+` WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
