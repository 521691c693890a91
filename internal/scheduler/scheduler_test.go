package scheduler_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/domain"
	"fintrack/internal/engine"
	"fintrack/internal/scheduler"
)

type recordingDispatcher struct {
	mu      sync.Mutex
	classes []domain.ReminderClass
	fail    domain.ReminderClass
	panicOn domain.ReminderClass
}

func (d *recordingDispatcher) Dispatch(_ context.Context, class domain.ReminderClass, _ engine.Notifier) (engine.DispatchReport, error) {
	d.mu.Lock()
	d.classes = append(d.classes, class)
	d.mu.Unlock()
	if class == d.panicOn {
		panic("sink exploded")
	}
	if class == d.fail {
		return engine.DispatchReport{Class: class}, errors.New("db locked")
	}
	return engine.DispatchReport{Class: class, Selected: 1, Delivered: 1}, nil
}

func (d *recordingDispatcher) take() []domain.ReminderClass {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := d.classes
	d.classes = nil
	return out
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Reminder) error { return nil }

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 10, hour, minute, 0, 0, time.UTC)
}

func newScheduler(d scheduler.Dispatcher) *scheduler.Scheduler {
	cfg := config.Default()
	cfg.Timezone = "UTC"
	return scheduler.New(d, nopNotifier{}, cfg, nil)
}

func TestDefaultJobsFollowConfig(t *testing.T) {
	cfg := config.Default()
	jobs := scheduler.DefaultJobs(cfg)
	if len(jobs) != 4 {
		t.Fatalf("expected 4 jobs, got %d", len(jobs))
	}
	if !reflect.DeepEqual(jobs[1].At, []string{"09:00", "18:00"}) {
		t.Fatalf("unexpected overdue times: %v", jobs[1].At)
	}
	if jobs[2].Every != time.Hour || len(jobs[2].Classes) != 3 {
		t.Fatalf("unexpected sweep job: %+v", jobs[2])
	}

	if !jobs[3].Summary || !reflect.DeepEqual(jobs[3].At, []string{"23:00"}) {
		t.Fatalf("unexpected summary job: %+v", jobs[3])
	}

	cfg.Reminders.SweepInterval = 0
	cfg.Reminders.DailySummaryAt = nil
	if got := scheduler.DefaultJobs(cfg); len(got) != 2 {
		t.Fatalf("sweep and summary should be disabled, got %d jobs", len(got))
	}
}

type summarizingDispatcher struct {
	recordingDispatcher
	runs int
}

func (d *summarizingDispatcher) SendDailySummaries(ctx context.Context, n engine.SummaryNotifier) (engine.SummaryReport, error) {
	d.runs++
	err := n.NotifySummary(ctx, domain.DailySummary{OwnerID: 1})
	return engine.SummaryReport{Owners: 1, Delivered: 1}, err
}

type summaryNotifier struct {
	nopNotifier
	owners []int64
}

func (n *summaryNotifier) NotifySummary(_ context.Context, s domain.DailySummary) error {
	n.owners = append(n.owners, s.OwnerID)
	return nil
}

func TestDailySummaryJobFiresAtClockTime(t *testing.T) {
	d := &summarizingDispatcher{}
	n := &summaryNotifier{}
	cfg := config.Default()
	cfg.Timezone = "UTC"
	cfg.Reminders.SweepInterval = 0
	s := scheduler.New(d, n, cfg, nil)
	if s.Summarizer == nil {
		t.Fatalf("engine-like dispatcher should be picked up as summarizer")
	}
	ctx := context.Background()

	s.Tick(ctx, at(22, 0))
	d.take()
	ran := s.Tick(ctx, at(23, 1))
	if !reflect.DeepEqual(ran, []string{"daily_summary"}) {
		t.Fatalf("23:01 tick ran %v", ran)
	}
	if d.runs != 1 || len(n.owners) != 1 || len(d.take()) != 0 {
		t.Fatalf("summary job should only send summaries: runs=%d owners=%v", d.runs, n.owners)
	}
}

func TestDailySummaryWithoutSummarizerIsSkipped(t *testing.T) {
	d := &recordingDispatcher{}
	s := newScheduler(d)
	s.Jobs = []scheduler.Job{{Name: "daily_summary", At: []string{"23:00"}, Summary: true}}
	s.Tick(context.Background(), at(22, 0))
	if ran := s.Tick(context.Background(), at(23, 0)); len(ran) != 1 {
		t.Fatalf("job should still be scheduled, ran %v", ran)
	}
	if got := d.take(); len(got) != 0 {
		t.Fatalf("summary job must not dispatch reminders: %v", got)
	}
}

func TestTickFiresClockAndIntervalJobs(t *testing.T) {
	d := &recordingDispatcher{}
	s := newScheduler(d)
	ctx := context.Background()

	if ran := s.Tick(ctx, at(8, 0)); !reflect.DeepEqual(ran, []string{"sweep"}) {
		t.Fatalf("first tick should only sweep, ran %v", ran)
	}
	if got := d.take(); len(got) != 3 {
		t.Fatalf("sweep should dispatch 3 classes, got %v", got)
	}

	if ran := s.Tick(ctx, at(9, 0)); !reflect.DeepEqual(ran, []string{"due_tomorrow", "overdue", "sweep"}) {
		t.Fatalf("09:00 tick ran %v", ran)
	}
	d.take()

	if ran := s.Tick(ctx, at(9, 30)); len(ran) != 0 {
		t.Fatalf("nothing should fire at 09:30, ran %v", ran)
	}

	if ran := s.Tick(ctx, at(18, 2)); !reflect.DeepEqual(ran, []string{"overdue", "sweep"}) {
		t.Fatalf("18:02 tick ran %v", ran)
	}
	want := []domain.ReminderClass{
		domain.ReminderOverdue,
		domain.ReminderDueTomorrow,
		domain.ReminderMonthly3Day,
		domain.ReminderYearly7Day,
	}
	if got := d.take(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected dispatch order: %v", got)
	}
}

func TestTickDoesNotReplayPastClockTimes(t *testing.T) {
	d := &recordingDispatcher{}
	s := newScheduler(d)
	s.Jobs = []scheduler.Job{{Name: "overdue", Classes: []domain.ReminderClass{domain.ReminderOverdue}, At: []string{"09:00"}}}

	if ran := s.Tick(context.Background(), at(12, 0)); len(ran) != 0 {
		t.Fatalf("09:00 already passed when the scheduler started, ran %v", ran)
	}
	next := time.Date(2026, 3, 11, 9, 0, 5, 0, time.UTC)
	if ran := s.Tick(context.Background(), next); len(ran) != 1 {
		t.Fatalf("expected next day's run, ran %v", ran)
	}
}

func TestTickAcrossMidnight(t *testing.T) {
	d := &recordingDispatcher{}
	s := newScheduler(d)
	s.Jobs = []scheduler.Job{{Name: "late", Classes: []domain.ReminderClass{domain.ReminderOverdue}, At: []string{"23:59"}}}

	s.Tick(context.Background(), at(23, 0))
	if ran := s.Tick(context.Background(), time.Date(2026, 3, 11, 0, 0, 20, 0, time.UTC)); len(ran) != 1 {
		t.Fatalf("23:59 slot should fire on the tick after midnight, ran %v", ran)
	}
}

func TestTickUsesLocation(t *testing.T) {
	d := &recordingDispatcher{}
	s := newScheduler(d)
	s.Location = time.FixedZone("UTC+5", 5*3600)
	s.Jobs = []scheduler.Job{{Name: "due_tomorrow", Classes: []domain.ReminderClass{domain.ReminderDueTomorrow}, At: []string{"09:00"}}}

	s.Tick(context.Background(), at(3, 0))
	if ran := s.Tick(context.Background(), at(4, 0)); len(ran) != 1 {
		t.Fatalf("09:00 at UTC+5 is 04:00 UTC, ran %v", ran)
	}
}

func TestJobSurvivesFailureAndPanic(t *testing.T) {
	d := &recordingDispatcher{fail: domain.ReminderDueTomorrow, panicOn: domain.ReminderYearly7Day}
	s := newScheduler(d)
	s.Tick(context.Background(), at(7, 0))
	got := d.take()
	want := []domain.ReminderClass{domain.ReminderDueTomorrow, domain.ReminderMonthly3Day, domain.ReminderYearly7Day}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("a failing class must not stop the job: %v", got)
	}
	// Another tick after a panic still works.
	if ran := s.Tick(context.Background(), at(8, 1)); len(ran) != 1 {
		t.Fatalf("scheduler stopped after a panic, ran %v", ran)
	}
}

func TestValidateRejectsBadJobs(t *testing.T) {
	s := newScheduler(&recordingDispatcher{})
	s.Jobs = append(s.Jobs, scheduler.Job{Name: "broken", At: []string{"25:99"}})
	if err := s.Validate(); err == nil {
		t.Fatalf("expected bad clock error")
	}
	s.Jobs = []scheduler.Job{{Name: "idle"}}
	if err := s.Validate(); err == nil {
		t.Fatalf("expected missing schedule error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	d := &recordingDispatcher{}
	s := newScheduler(d)
	s.Interval = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("run did not stop")
	}
	if len(d.take()) == 0 {
		t.Fatalf("first tick should dispatch the sweep")
	}
}
