// Package scheduler fires reminder dispatch jobs and the daily expense
// summary at fixed wall-clock times and on a sweep interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/domain"
	"fintrack/internal/engine"
)

const defaultTick = 30 * time.Second

// Dispatcher is satisfied by engine.Engine.
type Dispatcher interface {
	Dispatch(ctx context.Context, class domain.ReminderClass, n engine.Notifier) (engine.DispatchReport, error)
}

// Summarizer sends the end-of-day expense summaries. engine.Engine
// satisfies it.
type Summarizer interface {
	SendDailySummaries(ctx context.Context, n engine.SummaryNotifier) (engine.SummaryReport, error)
}

// Job dispatches Classes either at the listed "HH:MM" times (in the
// scheduler location) or every Every. A job with both set fires on both.
// A Summary job sends the daily expense summaries instead.
type Job struct {
	Name    string
	Classes []domain.ReminderClass
	At      []string
	Every   time.Duration
	Summary bool
}

// DefaultJobs mirrors the reminders section of the config: due-tomorrow at
// its fixed times, overdue at its fixed times, a sweep of the advance
// reminder classes and the daily summary.
func DefaultJobs(cfg *config.Config) []Job {
	if cfg == nil {
		cfg = config.Default()
	}
	r := cfg.Reminders
	jobs := []Job{
		{Name: "due_tomorrow", Classes: []domain.ReminderClass{domain.ReminderDueTomorrow}, At: r.DueTomorrowAt},
		{Name: "overdue", Classes: []domain.ReminderClass{domain.ReminderOverdue}, At: r.OverdueAt},
	}
	if r.SweepInterval > 0 {
		jobs = append(jobs, Job{
			Name: "sweep",
			Classes: []domain.ReminderClass{
				domain.ReminderDueTomorrow,
				domain.ReminderMonthly3Day,
				domain.ReminderYearly7Day,
			},
			Every: r.SweepInterval,
		})
	}
	if len(r.DailySummaryAt) > 0 {
		jobs = append(jobs, Job{Name: "daily_summary", At: r.DailySummaryAt, Summary: true})
	}
	return jobs
}

// Scheduler is not safe to copy after first use.
type Scheduler struct {
	Dispatcher Dispatcher
	Summarizer Summarizer
	Notifier   engine.Notifier
	Jobs       []Job
	Location   *time.Location
	Logger     *slog.Logger
	Now        func() time.Time
	// Interval is how often Run wakes up to check for due jobs.
	Interval time.Duration

	mu      sync.Mutex
	started time.Time
	last    map[string]time.Time
}

// New builds a scheduler for the configured jobs and timezone. A dispatcher
// that also sends summaries is used as the Summarizer.
func New(d Dispatcher, n engine.Notifier, cfg *config.Config, logger *slog.Logger) *Scheduler {
	s := &Scheduler{
		Dispatcher: d,
		Notifier:   n,
		Jobs:       DefaultJobs(cfg),
		Location:   cfg.Location(),
		Logger:     logger,
	}
	if sum, ok := d.(Summarizer); ok {
		s.Summarizer = sum
	}
	return s
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Validate checks every job's clock times.
func (s *Scheduler) Validate() error {
	if s.Dispatcher == nil || s.Notifier == nil {
		return fmt.Errorf("scheduler needs a dispatcher and a notifier")
	}
	for _, job := range s.Jobs {
		if len(job.At) == 0 && job.Every <= 0 {
			return fmt.Errorf("job %s has neither clock times nor an interval", job.Name)
		}
		for _, at := range job.At {
			if _, _, err := config.ParseClock(at); err != nil {
				return fmt.Errorf("job %s: %w", job.Name, err)
			}
		}
	}
	return nil
}

// Run ticks until ctx is canceled. The first check happens immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}
	interval := s.Interval
	if interval <= 0 {
		interval = defaultTick
	}
	s.logger().Info("reminder scheduler started", "jobs", len(s.Jobs), "tick", interval.String(), "timezone", s.location().String())
	s.Tick(ctx, s.now())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger().Info("reminder scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

func (s *Scheduler) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Tick runs every job that became due since its previous run and returns
// the names of the jobs it ran. Clock times that passed before the first
// tick are not replayed; interval jobs run on the first tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []string {
	s.mu.Lock()
	if s.last == nil {
		s.last = map[string]time.Time{}
		s.started = now
	}
	var due []Job
	for _, job := range s.Jobs {
		if s.dueLocked(job, now) {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	ran := make([]string, 0, len(due))
	for _, job := range due {
		s.run(ctx, job)
		ran = append(ran, job.Name)
	}
	return ran
}

func (s *Scheduler) dueLocked(job Job, now time.Time) bool {
	fire := false
	if len(job.At) > 0 {
		key := job.Name + "@clock"
		last, ok := s.last[key]
		if !ok {
			last = s.started
		}
		if slot, found := latestSlot(job.At, now, s.location()); found && slot.After(last) {
			s.last[key] = slot
			fire = true
		}
	}
	if job.Every > 0 {
		key := job.Name + "@every"
		last, ok := s.last[key]
		if !ok || now.Sub(last) >= job.Every {
			s.last[key] = now
			fire = true
		}
	}
	return fire
}

// latestSlot returns the most recent clock time at or before now, looking
// back across midnight so a tick that straddles it still fires.
func latestSlot(clocks []string, now time.Time, loc *time.Location) (time.Time, bool) {
	local := now.In(loc)
	var best time.Time
	found := false
	for _, dayOffset := range []int{-1, 0} {
		day := local.AddDate(0, 0, dayOffset)
		for _, at := range clocks {
			h, m, err := config.ParseClock(at)
			if err != nil {
				continue
			}
			slot := time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, loc)
			if slot.After(now) {
				continue
			}
			if !found || slot.After(best) {
				best, found = slot, true
			}
		}
	}
	return best, found
}

func (s *Scheduler) run(ctx context.Context, job Job) {
	log := s.logger().With("job", job.Name)
	defer func() {
		if p := recover(); p != nil {
			log.Error("reminder job panicked", "panic", fmt.Sprint(p))
		}
	}()
	if job.Summary {
		s.runSummary(ctx, log)
		return
	}
	for _, class := range job.Classes {
		if ctx.Err() != nil {
			return
		}
		report, err := s.Dispatcher.Dispatch(ctx, class, s.Notifier)
		if err != nil {
			log.Error("reminder dispatch failed", "class", class, "error", err)
			continue
		}
		log.Debug("reminder dispatch finished",
			"class", class,
			"selected", report.Selected,
			"delivered", report.Delivered,
			"failed", report.Failed,
		)
	}
}

func (s *Scheduler) runSummary(ctx context.Context, log *slog.Logger) {
	sn, ok := s.Notifier.(engine.SummaryNotifier)
	if s.Summarizer == nil || !ok {
		log.Warn("daily summary skipped: no summarizer or notifier does not take summaries")
		return
	}
	report, err := s.Summarizer.SendDailySummaries(ctx, sn)
	if err != nil {
		log.Error("daily summary failed", "error", err)
		return
	}
	log.Debug("daily summary finished", "owners", report.Owners, "delivered", report.Delivered, "failed", report.Failed)
}
