package engine_test

import (
	"errors"
	"testing"
	"time"

	"fintrack/internal/domain"
	"fintrack/internal/engine"
	"fintrack/internal/schedule"
)

func (env *testEnv) expense(t *testing.T, amt, category string, d *time.Time) domain.Expense {
	t.Helper()
	e, err := env.Engine.AddExpense(env.Ctx, engine.EntryInput{OwnerID: owner, Amount: amount(amt), Category: category, Date: d})
	if err != nil {
		t.Fatalf("add expense: %v", err)
	}
	return e
}

func (env *testEnv) income(t *testing.T, amt string, d *time.Time) domain.Income {
	t.Helper()
	in, err := env.Engine.AddIncome(env.Ctx, engine.EntryInput{OwnerID: owner, Amount: amount(amt), Date: d})
	if err != nil {
		t.Fatalf("add income: %v", err)
	}
	return in
}

func TestMonthlyBalanceFoldsCarryOver(t *testing.T) {
	env := newTestEnv(t)
	env.income(t, "1000", datePtr(2025, 12, 5))
	env.expense(t, "300", "Food", datePtr(2025, 12, 10))
	env.income(t, "500", datePtr(2026, 1, 5))
	env.expense(t, "200", "Food", datePtr(2026, 1, 15))
	env.expense(t, "100", "Taxi", datePtr(2026, 2, 1))

	feb, err := env.Engine.MonthlyBalance(env.Ctx, owner, 2026, time.February)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !feb.CarryOver.Equal(amount("1000")) {
		t.Fatalf("expected carry-over 1000, got %s", feb.CarryOver)
	}
	if !feb.Available.Equal(amount("-100")) || !feb.Closing.Equal(amount("900")) {
		t.Fatalf("unexpected february: available=%s closing=%s", feb.Available, feb.Closing)
	}
	if feb.ExpenseCount != 1 || feb.IncomeCount != 0 {
		t.Fatalf("unexpected counts: %+v", feb)
	}
}

func TestMonthlyBalanceClosingNeverNegative(t *testing.T) {
	env := newTestEnv(t)
	env.expense(t, "400", "Rent", datePtr(2025, 12, 1))
	env.income(t, "100", datePtr(2026, 1, 3))
	jan, err := env.Engine.MonthlyBalance(env.Ctx, owner, 2026, time.January)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !jan.CarryOver.IsZero() || !jan.Closing.Equal(amount("100")) {
		t.Fatalf("unexpected january: carry=%s closing=%s", jan.CarryOver, jan.Closing)
	}
}

func TestYearlyBalanceTotals(t *testing.T) {
	env := newTestEnv(t)
	env.income(t, "1000", datePtr(2026, 1, 5))
	env.income(t, "1000", datePtr(2026, 3, 5))
	env.expense(t, "250", "Food", datePtr(2026, 3, 9))
	env.expense(t, "999", "Food", datePtr(2025, 3, 9))
	yb, err := env.Engine.YearlyBalance(env.Ctx, owner, 2026)
	if err != nil {
		t.Fatalf("yearly: %v", err)
	}
	if len(yb.Months) != 12 || yb.Months[0].Month != time.January || yb.Months[11].Month != time.December {
		t.Fatalf("unexpected months: %d", len(yb.Months))
	}
	if !yb.Income.Equal(amount("2000")) || !yb.Expenses.Equal(amount("250")) || !yb.Balance.Equal(amount("1750")) {
		t.Fatalf("unexpected totals: %+v", yb)
	}
	if !yb.Months[2].CarryOver.Equal(amount("1000")) {
		t.Fatalf("march should carry january's closing, got %s", yb.Months[2].CarryOver)
	}
}

func TestReportGroupsByCategory(t *testing.T) {
	env := newTestEnv(t)
	env.expense(t, "300", "Food", datePtr(2026, 1, 10))
	env.expense(t, "100", "Food", datePtr(2026, 1, 20))
	env.expense(t, "100", "Taxi", datePtr(2026, 2, 1))
	env.expense(t, "70", "Taxi", datePtr(2025, 12, 31))

	r, err := env.Engine.Report(env.Ctx, owner, schedule.Date(2026, 1, 1), schedule.Date(2026, 2, 28))
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if r.Count != 3 || !r.Total.Equal(amount("500")) {
		t.Fatalf("unexpected totals: count=%d total=%s", r.Count, r.Total)
	}
	if len(r.Categories) != 2 || r.Categories[0].Category != "Food" || r.Categories[0].Percent != 80 {
		t.Fatalf("unexpected categories: %+v", r.Categories)
	}
	if len(r.Months) != 2 || !r.Months[1].Total.Equal(amount("100")) {
		t.Fatalf("unexpected month totals: %+v", r.Months)
	}

	daily, err := env.Engine.ReportFor(env.Ctx, owner, engine.PeriodDaily)
	if err != nil {
		t.Fatalf("daily: %v", err)
	}
	if daily.Count != 1 || daily.Months != nil {
		t.Fatalf("unexpected daily report: %+v", daily)
	}
	if _, err := env.Engine.ReportFor(env.Ctx, owner, "hourly"); err == nil {
		t.Fatalf("expected unknown period error")
	}
}

func TestDeleteLedgerEntries(t *testing.T) {
	env := newTestEnv(t)
	e := env.expense(t, "10", "Food", nil)
	in := env.income(t, "10", nil)
	if in.Category != "Income" {
		t.Fatalf("income category should default, got %q", in.Category)
	}
	ok, err := env.Engine.DeleteExpense(env.Ctx, e.ID, owner+1, "tester")
	if err != nil || ok {
		t.Fatalf("foreign owner deleted expense: ok=%v err=%v", ok, err)
	}
	if ok, err := env.Engine.DeleteExpense(env.Ctx, e.ID, owner, "tester"); err != nil || !ok {
		t.Fatalf("delete expense: ok=%v err=%v", ok, err)
	}
	if ok, err := env.Engine.DeleteIncome(env.Ctx, in.ID, owner, "tester"); err != nil || !ok {
		t.Fatalf("delete income: ok=%v err=%v", ok, err)
	}
	last, err := env.Engine.LastExpenses(env.Ctx, owner, 5)
	if err != nil || len(last) != 0 {
		t.Fatalf("expected empty ledger: %d %v", len(last), err)
	}
}

func TestAddExpenseValidates(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.AddExpense(env.Ctx, engine.EntryInput{OwnerID: owner, Amount: amount("-5"), Category: "Food"})
	var invalid *engine.InvalidInputError
	if !errors.As(err, &invalid) || invalid.Field != "amount" {
		t.Fatalf("expected amount error, got %v", err)
	}
}

func TestParseDateFormats(t *testing.T) {
	today := schedule.Date(2026, 2, 1)
	cases := map[string]string{
		"31.01.2026": "2026-01-31",
		"3/2/2026":   "2026-02-03",
		"2026-02-10": "2026-02-10",
		"2026/2/9":   "2026-02-09",
		"05-03-26":   "2026-03-05",
		"today":      "2026-02-01",
		"Tomorrow":   "2026-02-02",
		"yesterday":  "2026-01-31",
		"+10":        "2026-02-11",
	}
	for in, want := range cases {
		got, err := engine.ParseDate(in, today)
		if err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if got.Format(schedule.DateLayout) != want {
			t.Fatalf("%s: want %s got %s", in, want, got.Format(schedule.DateLayout))
		}
	}
	for _, bad := range []string{"", "31.13.2026", "next week", "+x"} {
		if _, err := engine.ParseDate(bad, today); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestParseAmount(t *testing.T) {
	got, err := engine.ParseAmount("500 000")
	if err != nil || !got.Equal(amount("500000")) {
		t.Fatalf("unexpected: %s %v", got, err)
	}
	got, err = engine.ParseAmount("1,250.50")
	if err != nil || !got.Equal(amount("1250.5")) {
		t.Fatalf("unexpected: %s %v", got, err)
	}
	for _, bad := range []string{"", "0", "-3", "abc"} {
		if _, err := engine.ParseAmount(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestDraftCompleteWeeklyNeverSameDay(t *testing.T) {
	var d engine.ObligationDraft
	if err := d.SetFrequency("WEEKLY"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetWeekday(2); err != nil {
		t.Fatal(err)
	}
	if err := d.SetAmount("100"); err != nil {
		t.Fatal(err)
	}
	if err := d.SetCategory("Cleaning"); err != nil {
		t.Fatal(err)
	}
	wednesday := schedule.Date(2026, 2, 4)
	if err := d.Complete(wednesday); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if d.DueDate.Format(schedule.DateLayout) != "2026-02-11" {
		t.Fatalf("expected a week ahead, got %s", d.DueDate.Format(schedule.DateLayout))
	}
	if err := d.SetWeekday(7); err == nil {
		t.Fatalf("expected weekday range error")
	}
	if err := d.SetDayOfMonth(32); err == nil {
		t.Fatalf("expected day-of-month range error")
	}
	if err := d.SetOccurrences(0); err == nil {
		t.Fatalf("expected occurrences error")
	}
	if err := d.SetFrequency("daily"); err == nil {
		t.Fatalf("expected frequency error")
	}
}
