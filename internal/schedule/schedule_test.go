package schedule_test

import (
	"testing"
	"time"

	"fintrack/internal/domain"
	"fintrack/internal/schedule"
)

func intPtr(v int) *int { return &v }

func d(y int, m time.Month, day int) time.Time { return schedule.Date(y, m, day) }

func TestNextDueDate(t *testing.T) {
	cases := []struct {
		name string
		ob   domain.Obligation
		ref  time.Time
		want time.Time
	}{
		{
			name: "weekly bootstrap on same weekday rolls a week",
			ob:   domain.Obligation{Frequency: domain.FrequencyWeekly, Weekday: intPtr(2)},
			ref:  d(2026, time.January, 7),
			want: d(2026, time.January, 14),
		},
		{
			name: "weekly bootstrap picks next matching weekday",
			ob:   domain.Obligation{Frequency: domain.FrequencyWeekly, Weekday: intPtr(4)},
			ref:  d(2026, time.January, 7),
			want: d(2026, time.January, 9),
		},
		{
			name: "weekly advance from stored due date",
			ob:   domain.Obligation{Frequency: domain.FrequencyWeekly, Weekday: intPtr(2), DueDate: d(2026, time.January, 7)},
			ref:  d(2026, time.January, 7),
			want: d(2026, time.January, 14),
		},
		{
			name: "weekly catches up several periods",
			ob:   domain.Obligation{Frequency: domain.FrequencyWeekly, DueDate: d(2026, time.January, 7)},
			ref:  d(2026, time.February, 1),
			want: d(2026, time.February, 4),
		},
		{
			name: "biweekly steps fourteen days",
			ob:   domain.Obligation{Frequency: domain.FrequencyBiweekly, DueDate: d(2026, time.January, 7)},
			ref:  d(2026, time.January, 7),
			want: d(2026, time.January, 21),
		},
		{
			name: "biweekly bootstrap",
			ob:   domain.Obligation{Frequency: domain.FrequencyBiweekly, Weekday: intPtr(0)},
			ref:  d(2026, time.January, 7),
			want: d(2026, time.January, 12),
		},
		{
			name: "monthly day 31 clamps in february",
			ob:   domain.Obligation{Frequency: domain.FrequencyMonthly, DayOfMonth: intPtr(31), DueDate: d(2026, time.January, 31)},
			ref:  d(2026, time.January, 31),
			want: d(2026, time.February, 28),
		},
		{
			name: "monthly day 31 returns to 31 after clamped month",
			ob:   domain.Obligation{Frequency: domain.FrequencyMonthly, DayOfMonth: intPtr(31), DueDate: d(2026, time.February, 28)},
			ref:  d(2026, time.February, 28),
			want: d(2026, time.March, 31),
		},
		{
			name: "monthly day 31 in a 30 day month",
			ob:   domain.Obligation{Frequency: domain.FrequencyMonthly, DayOfMonth: intPtr(31), DueDate: d(2026, time.March, 31)},
			ref:  d(2026, time.April, 2),
			want: d(2026, time.April, 30),
		},
		{
			name: "monthly without anchor uses due date day",
			ob:   domain.Obligation{Frequency: domain.FrequencyMonthly, DueDate: d(2026, time.January, 15)},
			ref:  d(2026, time.January, 15),
			want: d(2026, time.February, 15),
		},
		{
			name: "monthly candidate later this month",
			ob:   domain.Obligation{Frequency: domain.FrequencyMonthly, DayOfMonth: intPtr(20), DueDate: d(2025, time.December, 20)},
			ref:  d(2026, time.January, 10),
			want: d(2026, time.January, 20),
		},
		{
			name: "quarterly clamps then keeps original day",
			ob:   domain.Obligation{Frequency: domain.FrequencyQuarterly, DueDate: d(2025, time.November, 30)},
			ref:  d(2026, time.March, 1),
			want: d(2026, time.May, 30),
		},
		{
			name: "quarterly single step",
			ob:   domain.Obligation{Frequency: domain.FrequencyQuarterly, DueDate: d(2025, time.November, 30)},
			ref:  d(2025, time.November, 30),
			want: d(2026, time.February, 28),
		},
		{
			name: "yearly leap day clamps",
			ob:   domain.Obligation{Frequency: domain.FrequencyYearly, DueDate: d(2024, time.February, 29)},
			ref:  d(2024, time.February, 29),
			want: d(2025, time.February, 28),
		},
		{
			name: "yearly leap day restored in next leap year",
			ob:   domain.Obligation{Frequency: domain.FrequencyYearly, DueDate: d(2024, time.February, 29)},
			ref:  d(2027, time.March, 1),
			want: d(2028, time.February, 29),
		},
		{
			name: "once keeps due date",
			ob:   domain.Obligation{Frequency: domain.FrequencyOnce, DueDate: d(2026, time.January, 5)},
			ref:  d(2026, time.February, 1),
			want: d(2026, time.January, 5),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := schedule.NextDueDate(tc.ob, tc.ref)
			if !got.Equal(tc.want) {
				t.Fatalf("got %s want %s", got.Format(schedule.DateLayout), tc.want.Format(schedule.DateLayout))
			}
		})
	}
}

func TestNextDueDateStrictlyAfterReference(t *testing.T) {
	start := d(2024, time.January, 1)
	for _, freq := range []domain.Frequency{
		domain.FrequencyWeekly, domain.FrequencyBiweekly, domain.FrequencyMonthly,
		domain.FrequencyQuarterly, domain.FrequencyYearly,
	} {
		ob := domain.Obligation{Frequency: freq, DueDate: d(2024, time.January, 31), Weekday: intPtr(3), DayOfMonth: intPtr(31)}
		for i := 0; i < 800; i += 3 {
			ref := start.AddDate(0, 0, i)
			if got := schedule.NextDueDate(ob, ref); !got.After(ref) {
				t.Fatalf("%s: next %s not after %s", freq, got.Format(schedule.DateLayout), ref.Format(schedule.DateLayout))
			}
		}
	}
}

func TestNextDueDateWithoutAnchor(t *testing.T) {
	ref := d(2026, time.March, 5)
	for _, freq := range []domain.Frequency{
		domain.FrequencyWeekly, domain.FrequencyBiweekly, domain.FrequencyMonthly,
		domain.FrequencyQuarterly, domain.FrequencyYearly,
	} {
		got := schedule.NextDueDate(domain.Obligation{Frequency: freq}, ref)
		if !got.Equal(d(2026, time.March, 6)) {
			t.Fatalf("%s without anchor: got %s", freq, got.Format(schedule.DateLayout))
		}
	}
}

func TestFirstDueDate(t *testing.T) {
	today := d(2026, time.January, 31)
	got, ok := schedule.FirstDueDate(domain.FrequencyMonthly, nil, intPtr(31), today)
	if !ok || !got.Equal(d(2026, time.February, 28)) {
		t.Fatalf("monthly first due: %v %v", got, ok)
	}
	got, ok = schedule.FirstDueDate(domain.FrequencyWeekly, intPtr(schedule.Weekday(today)), nil, today)
	if !ok || !got.Equal(today.AddDate(0, 0, 7)) {
		t.Fatalf("weekly first due: %v %v", got, ok)
	}
	if _, ok := schedule.FirstDueDate(domain.FrequencyYearly, nil, nil, today); ok {
		t.Fatalf("yearly has no anchor")
	}
}

func TestWeekdayConvention(t *testing.T) {
	if got := schedule.Weekday(d(2026, time.January, 5)); got != 0 {
		t.Fatalf("monday should be 0, got %d", got)
	}
	if got := schedule.Weekday(d(2026, time.January, 11)); got != 6 {
		t.Fatalf("sunday should be 6, got %d", got)
	}
}

func TestTodayUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	now := time.Date(2026, time.January, 31, 20, 30, 0, 0, time.UTC)
	if got := schedule.Today(now, loc); !got.Equal(d(2026, time.February, 1)) {
		t.Fatalf("expected local date rollover, got %s", got)
	}
}
