package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/events"
	"fintrack/internal/metrics"
	"fintrack/internal/repo"
	"fintrack/internal/schedule"
)

// ErrNotFound is returned when an obligation is missing, owned by someone
// else, or already settled for operations that need an active one.
var ErrNotFound = repo.ErrNotFound

// InvalidInputError rejects creation input before anything is persisted.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Now     func() time.Time
	Metrics *metrics.Collectors
	Logger  *slog.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// today is the civil date in the configured timezone, the same one the
// scheduler uses to decide when reminders fire.
func (e Engine) today() time.Time {
	return schedule.Today(e.now(), e.Config.Location())
}

// Today exposes the engine's notion of the current civil date.
func (e Engine) Today() time.Time {
	return e.today()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) cfg() *config.Config {
	if e.Config != nil {
		return e.Config
	}
	return config.Default()
}

// writer keeps audit timestamps on the engine clock.
func (e Engine) writer() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w
}

// inTx runs fn inside a transaction and commits when it returns nil.
func (e Engine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
