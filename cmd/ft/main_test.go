package main

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"fintrack/internal/domain"
	"fintrack/internal/engine"
	"fintrack/internal/repo"
)

func fixedEngine(day string) engine.Engine {
	now, _ := time.Parse("2006-01-02", day)
	return engine.Engine{Now: func() time.Time { return now.Add(6 * time.Hour) }}
}

func TestParseClasses(t *testing.T) {
	all, err := parseClasses("all")
	if err != nil || len(all) != len(domain.ReminderClasses) {
		t.Fatalf("all: %v %v", all, err)
	}
	one, err := parseClasses("overdue")
	if err != nil || len(one) != 1 || one[0] != domain.ReminderOverdue {
		t.Fatalf("overdue: %v %v", one, err)
	}
	if _, err := parseClasses("weekly"); err == nil {
		t.Fatalf("expected unknown class error")
	}
}

func TestRangeFlagsResolve(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	from, to, err := rangeFlags{from: "01.03.2026", to: "today"}.resolve(today)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if formatDate(from) != "2026-03-01" || formatDate(to) != "2026-03-15" {
		t.Fatalf("range %s..%s", formatDate(from), formatDate(to))
	}
	if _, _, err := (rangeFlags{from: "2026-03-10", to: "2026-03-01"}).resolve(today); err == nil {
		t.Fatalf("expected inverted range error")
	}
	if _, _, err := (rangeFlags{from: "someday"}).resolve(today); err == nil {
		t.Fatalf("expected parse error")
	}
	if (rangeFlags{}).set() {
		t.Fatalf("empty flags should not count as a range")
	}
}

func TestEntryFlagsInput(t *testing.T) {
	e := fixedEngine("2026-02-01")
	in, err := entryFlags{amount: "1 250.50", category: "food", date: "yesterday", kind: "weekly"}.input(e, 7)
	if err != nil {
		t.Fatalf("input: %v", err)
	}
	if in.OwnerID != 7 || in.Amount.String() != "1250.5" || in.Kind != domain.ExpenseWeekly {
		t.Fatalf("unexpected input %+v", in)
	}
	if in.Date == nil || formatDate(*in.Date) != "2026-01-31" {
		t.Fatalf("date %v", in.Date)
	}

	if _, err := (entryFlags{amount: "0", category: "food"}).input(e, 7); err == nil {
		t.Fatalf("expected zero amount to be rejected")
	}
	if _, err := (entryFlags{amount: "10", category: "food", kind: "hourly"}).input(e, 7); err == nil {
		t.Fatalf("expected unknown kind to be rejected")
	}
}

func TestExplain(t *testing.T) {
	err := explain(fmt.Errorf("get obligation: %w", repo.ErrNotFound), "obligation", "abc")
	if err == nil || err.Error() != "obligation abc not found" {
		t.Fatalf("not found: %v", err)
	}
	_, perr := engine.ParseAmount("-5")
	err = explain(perr, "expense", "")
	if err == nil || !strings.HasPrefix(err.Error(), "invalid amount:") {
		t.Fatalf("invalid input: %v", err)
	}
	other := errors.New("disk full")
	if explain(other, "expense", "") != other {
		t.Fatalf("other errors pass through")
	}
}

func TestObligationStatus(t *testing.T) {
	cases := []struct {
		o    domain.Obligation
		want string
	}{
		{domain.Obligation{}, "active"},
		{domain.Obligation{IsPaid: true}, "paid"},
		{domain.Obligation{IsSkipped: true}, "skipped"},
		{domain.Obligation{IsPaid: true, IsSkipped: true}, "paid,skipped"},
	}
	for _, tc := range cases {
		if got := obligationStatus(tc.o); got != tc.want {
			t.Fatalf("status %+v = %q want %q", tc.o, got, tc.want)
		}
	}
}

func TestCommandTree(t *testing.T) {
	registerCommands()
	for _, path := range [][]string{
		{"obligation", "pay"},
		{"obligation", "summary"},
		{"report", "custom"},
		{"report", "weekly"},
		{"remind", "daemon"},
		{"remind", "summary"},
		{"apikey", "revoke"},
		{"config", "init"},
	} {
		cmd, _, err := rootCmd.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Fatalf("command %v not registered: %v", path, err)
		}
	}
}
