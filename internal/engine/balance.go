package engine

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fintrack/internal/repo"
	"fintrack/internal/schedule"
)

// MonthBalance is one month of the ledger. CarryOver is the previous
// month's closing balance; Closing never drops below zero.
type MonthBalance struct {
	Year         int             `json:"year"`
	Month        time.Month      `json:"month"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Income       decimal.Decimal `json:"income"`
	IncomeCount  int             `json:"income_count"`
	Expenses     decimal.Decimal `json:"expenses"`
	ExpenseCount int             `json:"expense_count"`
	Available    decimal.Decimal `json:"available"`
	CarryOver    decimal.Decimal `json:"carry_over"`
	Closing      decimal.Decimal `json:"closing"`
}

type YearBalance struct {
	Year     int             `json:"year"`
	Months   []MonthBalance  `json:"months"`
	Income   decimal.Decimal `json:"income"`
	Expenses decimal.Decimal `json:"expenses"`
	Balance  decimal.Decimal `json:"balance"`
}

// MonthlyBalance folds forward from balance_lookback_months before the
// requested month, so the carry-over has a fixed horizon.
func (e Engine) MonthlyBalance(ctx context.Context, ownerID int64, year int, month time.Month) (MonthBalance, error) {
	months, err := e.balanceSeries(ctx, ownerID, year, month, 1)
	if err != nil {
		return MonthBalance{}, err
	}
	return months[0], nil
}

// YearlyBalance returns January through December of year.
func (e Engine) YearlyBalance(ctx context.Context, ownerID int64, year int) (YearBalance, error) {
	months, err := e.balanceSeries(ctx, ownerID, year, time.January, 12)
	if err != nil {
		return YearBalance{}, err
	}
	yb := YearBalance{Year: year, Months: months, Income: decimal.Zero, Expenses: decimal.Zero}
	for _, m := range months {
		yb.Income = yb.Income.Add(m.Income)
		yb.Expenses = yb.Expenses.Add(m.Expenses)
	}
	yb.Balance = yb.Income.Sub(yb.Expenses)
	return yb, nil
}

// balanceSeries returns count consecutive months starting at year/month,
// each carrying the closing balance of the month before.
func (e Engine) balanceSeries(ctx context.Context, ownerID int64, year int, month time.Month, count int) ([]MonthBalance, error) {
	lookback := e.cfg().Ledger.BalanceLookbackMonths
	first := schedule.Date(year, month, 1)
	start := schedule.AddMonths(first, -lookback)
	_, end := MonthRange(year, month+time.Month(count-1))

	buckets, err := e.monthBuckets(ctx, ownerID, start, end)
	if err != nil {
		return nil, err
	}
	carry := decimal.Zero
	out := make([]MonthBalance, 0, count)
	for cur := start; !cur.After(end); cur = schedule.AddMonths(cur, 1) {
		from, to := MonthRange(cur.Year(), cur.Month())
		b := buckets[from]
		mb := MonthBalance{
			Year:         cur.Year(),
			Month:        cur.Month(),
			From:         from,
			To:           to,
			Income:       b.income,
			IncomeCount:  b.incomes,
			Expenses:     b.expenses,
			ExpenseCount: b.expenseCount,
			Available:    b.income.Sub(b.expenses),
			CarryOver:    carry,
		}
		mb.Closing = decimal.Max(decimal.Zero, carry.Add(mb.Available))
		carry = mb.Closing
		if !from.Before(first) {
			out = append(out, mb)
		}
	}
	return out, nil
}

type monthBucket struct {
	income       decimal.Decimal
	incomes      int
	expenses     decimal.Decimal
	expenseCount int
}

func (e Engine) monthBuckets(ctx context.Context, ownerID int64, from, to time.Time) (map[time.Time]monthBucket, error) {
	f := repo.LedgerFilter{OwnerID: ownerID, From: &from, To: &to}
	incomes, err := e.Repo.ListIncomes(ctx, f)
	if err != nil {
		return nil, err
	}
	expenses, err := e.Repo.ListExpenses(ctx, f)
	if err != nil {
		return nil, err
	}
	buckets := map[time.Time]monthBucket{}
	get := func(d time.Time) (time.Time, monthBucket) {
		key := schedule.Date(d.Year(), d.Month(), 1)
		b, ok := buckets[key]
		if !ok {
			b = monthBucket{income: decimal.Zero, expenses: decimal.Zero}
		}
		return key, b
	}
	for _, in := range incomes {
		key, b := get(in.Date)
		b.income = b.income.Add(in.Amount)
		b.incomes++
		buckets[key] = b
	}
	for _, ex := range expenses {
		key, b := get(ex.Date)
		b.expenses = b.expenses.Add(ex.Amount)
		b.expenseCount++
		buckets[key] = b
	}
	return buckets, nil
}
