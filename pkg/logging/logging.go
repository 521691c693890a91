// Package logging configures structured logging for the ft binary.
//
// Environment variables:
//
//	LOG_LEVEL: debug, info, warn, error (default: info)
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Options selects the handler. The zero value is colored text on stderr at
// the LOG_LEVEL level.
type Options struct {
	JSON    bool
	Level   *slog.Level
	Writer  io.Writer
	NoColor bool
}

// Setup installs the default logger from LOG_LEVEL and returns it.
func Setup() *slog.Logger {
	return SetupWith(Options{})
}

// SetupWith installs and returns a logger built from opts.
func SetupWith(opts Options) *slog.Logger {
	logger := New(opts)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger without touching the process default.
func New(opts Options) *slog.Logger {
	level := LevelFromEnv()
	if opts.Level != nil {
		level = *opts.Level
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
	}))
}

// ParseLevel maps a level name to slog; unknown names are info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func LevelFromEnv() slog.Level {
	return ParseLevel(os.Getenv("LOG_LEVEL"))
}
