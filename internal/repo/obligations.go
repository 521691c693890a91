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

const obligationColumns = `id,owner_id,amount,category,description,due_date,frequency,weekday,day_of_month,occurrences_left,
is_paid,is_skipped,reminder_sent,overdue_last_sent_at,payment_date,created_at`

// activeGuard matches a row that is still open for settlement.
const activeGuard = `is_paid=0 AND is_skipped=0`

func scanObligation(row rowScanner) (domain.Obligation, error) {
	var (
		o                        domain.Obligation
		amount, due, freq, ts    string
		desc, overdue, paidOn    sql.NullString
		weekday, dom, occurrence sql.NullInt64
	)
	err := row.Scan(&o.ID, &o.OwnerID, &amount, &o.Category, &desc, &due, &freq, &weekday, &dom, &occurrence,
		&o.IsPaid, &o.IsSkipped, &o.ReminderSent, &overdue, &paidOn, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return o, ErrNotFound
	}
	if err != nil {
		return o, err
	}
	if o.Amount, err = parseAmount(amount); err != nil {
		return o, err
	}
	if o.DueDate, err = parseDate(due); err != nil {
		return o, err
	}
	if o.OverdueLastSentAt, err = parseOptionalTS(overdue); err != nil {
		return o, err
	}
	if o.PaymentDate, err = parseOptionalDate(paidOn); err != nil {
		return o, err
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339, ts); err != nil {
		return o, fmt.Errorf("stored created_at %q: %w", ts, err)
	}
	o.Frequency = domain.Frequency(freq)
	o.Description = optionalString(desc)
	o.Weekday = optionalInt(weekday)
	o.DayOfMonth = optionalInt(dom)
	o.OccurrencesLeft = optionalInt(occurrence)
	return o, nil
}

func (r Repo) InsertObligation(ctx context.Context, tx *sql.Tx, o domain.Obligation) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO obligations(`+obligationColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.OwnerID, o.Amount.String(), o.Category, nullableStringPtr(o.Description), o.DueDate.Format(dateLayout), string(o.Frequency),
		nullableIntPtr(o.Weekday), nullableIntPtr(o.DayOfMonth), nullableIntPtr(o.OccurrencesLeft),
		o.IsPaid, o.IsSkipped, o.ReminderSent, nullableTS(o.OverdueLastSentAt), nullableDate(o.PaymentDate),
		o.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert obligation: %w", err)
	}
	return nil
}

// GetObligation loads an obligation owned by ownerID in any state.
func (r Repo) GetObligation(ctx context.Context, tx *sql.Tx, id string, ownerID int64) (domain.Obligation, error) {
	return scanObligation(r.q(tx).QueryRowContext(ctx, `SELECT `+obligationColumns+` FROM obligations WHERE id=? AND owner_id=?`, id, ownerID))
}

// GetActiveObligation loads an obligation that is neither paid nor skipped.
func (r Repo) GetActiveObligation(ctx context.Context, tx *sql.Tx, id string, ownerID int64) (domain.Obligation, error) {
	return scanObligation(r.q(tx).QueryRowContext(ctx, `SELECT `+obligationColumns+` FROM obligations WHERE id=? AND owner_id=? AND `+activeGuard, id, ownerID))
}

// ObligationFilter narrows ListObligations. Date bounds are inclusive
// except DueBefore.
type ObligationFilter struct {
	OwnerID       *int64
	ActiveOnly    bool
	RecurringOnly bool
	Frequency     domain.Frequency
	DueFrom       *time.Time
	DueTo         *time.Time
	DueBefore     *time.Time
	Limit         int
}

// ListObligations returns matches ordered by due date, then id.
func (r Repo) ListObligations(ctx context.Context, tx *sql.Tx, f ObligationFilter) ([]domain.Obligation, error) {
	clauses := []string{"1=1"}
	var args []any
	if f.OwnerID != nil {
		clauses = append(clauses, "owner_id=?")
		args = append(args, *f.OwnerID)
	}
	if f.ActiveOnly {
		clauses = append(clauses, activeGuard)
	}
	if f.RecurringOnly {
		clauses = append(clauses, "frequency<>'once'")
	}
	if f.Frequency != "" {
		clauses = append(clauses, "frequency=?")
		args = append(args, string(f.Frequency))
	}
	if f.DueFrom != nil {
		clauses = append(clauses, "due_date>=?")
		args = append(args, f.DueFrom.Format(dateLayout))
	}
	if f.DueTo != nil {
		clauses = append(clauses, "due_date<=?")
		args = append(args, f.DueTo.Format(dateLayout))
	}
	if f.DueBefore != nil {
		clauses = append(clauses, "due_date<?")
		args = append(args, f.DueBefore.Format(dateLayout))
	}
	query := `SELECT ` + obligationColumns + ` FROM obligations WHERE ` + strings.Join(clauses, " AND ") + ` ORDER BY due_date ASC, id ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.q(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

// UpdateObligationIfCurrent writes the schedule state of next only when the
// stored row still matches prev: same owner, still active and still on
// prev's due date. A concurrent settlement therefore yields ErrNotFound.
func (r Repo) UpdateObligationIfCurrent(ctx context.Context, tx *sql.Tx, prev, next domain.Obligation) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE obligations SET due_date=?, occurrences_left=?, is_paid=?, is_skipped=?, reminder_sent=?,
overdue_last_sent_at=?, payment_date=? WHERE id=? AND owner_id=? AND due_date=? AND `+activeGuard,
		next.DueDate.Format(dateLayout), nullableIntPtr(next.OccurrencesLeft), next.IsPaid, next.IsSkipped, next.ReminderSent,
		nullableTS(next.OverdueLastSentAt), nullableDate(next.PaymentDate),
		prev.ID, prev.OwnerID, prev.DueDate.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("update obligation %s: %w", prev.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteObligationIfCurrent retires prev under the same guard as
// UpdateObligationIfCurrent.
func (r Repo) DeleteObligationIfCurrent(ctx context.Context, tx *sql.Tx, prev domain.Obligation) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM obligations WHERE id=? AND owner_id=? AND due_date=? AND `+activeGuard,
		prev.ID, prev.OwnerID, prev.DueDate.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("retire obligation %s: %w", prev.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteObligation removes an obligation regardless of state.
func (r Repo) DeleteObligation(ctx context.Context, tx *sql.Tx, id string, ownerID int64) error {
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM obligations WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkReminderSent flags occ as reminded. It reports false when the
// occurrence was settled or advanced since it was scanned.
func (r Repo) MarkReminderSent(ctx context.Context, tx *sql.Tx, occ domain.Occurrence) (bool, error) {
	return r.markOccurrence(ctx, tx, `reminder_sent=1`, nil, occ)
}

// MarkOverdueSent stamps the last overdue notice time on occ.
func (r Repo) MarkOverdueSent(ctx context.Context, tx *sql.Tx, occ domain.Occurrence, at time.Time) (bool, error) {
	return r.markOccurrence(ctx, tx, `overdue_last_sent_at=?`, []any{at.UTC().Format(time.RFC3339)}, occ)
}

func (r Repo) markOccurrence(ctx context.Context, tx *sql.Tx, set string, setArgs []any, occ domain.Occurrence) (bool, error) {
	args := append(append([]any{}, setArgs...), occ.ObligationID, occ.OwnerID, occ.DueDate.Format(dateLayout))
	res, err := r.q(tx).ExecContext(ctx, `UPDATE obligations SET `+set+` WHERE id=? AND owner_id=? AND due_date=? AND `+activeGuard, args...)
	if err != nil {
		return false, fmt.Errorf("mark obligation %s: %w", occ.ObligationID, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
