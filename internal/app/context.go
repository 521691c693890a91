// Package app opens a fintrack workspace: the SQLite database with its
// migrations applied, fintrack.yml, and an engine wired to both.
package app

import (
	"database/sql"
	"fmt"
	"log/slog"

	"fintrack/internal/config"
	"fintrack/internal/db"
	"fintrack/internal/engine"
	"fintrack/internal/engine/auth"
	"fintrack/internal/metrics"
	"fintrack/internal/migrate"
	"fintrack/internal/notify"
)

type Options struct {
	Workspace string
	// ConfigRequired fails when fintrack.yml is missing instead of using
	// the defaults.
	ConfigRequired bool
	Logger         *slog.Logger
}

type Workspace struct {
	Path   string
	DB     *sql.DB
	Config *config.Config
	Engine engine.Engine
	Logger *slog.Logger
}

// Open loads the config first so a broken file fails before the database
// is touched.
func Open(opts Options) (*Workspace, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	load := config.LoadOptional
	if opts.ConfigRequired {
		load = config.Load
	}
	cfg, err := load(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	e := engine.New(conn, cfg)
	e.Logger = logger
	return &Workspace{
		Path:   opts.Workspace,
		DB:     conn,
		Config: cfg,
		Engine: e,
		Logger: logger,
	}, nil
}

func (w *Workspace) Close() error {
	if w == nil || w.DB == nil {
		return nil
	}
	return w.DB.Close()
}

// EnableMetrics attaches a fresh collector set to the engine and returns it.
func (w *Workspace) EnableMetrics() *metrics.Collectors {
	m := metrics.New()
	w.Engine.Metrics = m
	return m
}

// Notifier builds the configured reminder sinks.
func (w *Workspace) Notifier() (notify.Multi, error) {
	return notify.FromConfig(w.Config.Notify, w.Logger)
}

// Auth returns the credential service over this workspace's key store.
func (w *Workspace) Auth(secret string) auth.Service {
	return auth.Service{Repo: w.Engine.Repo, Secret: secret}
}
