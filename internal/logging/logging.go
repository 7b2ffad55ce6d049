// Package logging builds the structured logger every other package takes
// as a *slog.Logger. It wraps the standard library's log/slog with a
// lumberjack.Logger as the file sink and a plain text handler to stderr in
// interactive mode — rotate-on-disk, human-readable to the terminal, the
// same split the teacher's own daemon/CLI logging follows, just rebuilt on
// slog instead of the teacher's ad hoc fmt.Fprintf-to-file helpers.
package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures New.
type Options struct {
	// Path is the rotating log file's location. Empty disables file output.
	Path string
	// Level is one of "debug", "info", "warn", "error"; defaults to "info".
	Level string
	// Interactive, when true, also writes human-readable text to stderr —
	// on for CLI invocations, off for any future headless daemon mode.
	Interactive bool
	// MaxSizeMB, MaxBackups, MaxAgeDays configure log rotation; zero values
	// fall back to lumberjack's own defaults-free behavior via explicit
	// sane constants below.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultMaxSizeMB  = 10
	defaultMaxBackups = 5
	defaultMaxAgeDays = 30
)

// New builds a *slog.Logger per opts. Component, habit_id, and action are
// the structured fields spec §10.2 calls out; callers attach them with
// logger.With(...) at the call site rather than this constructor.
func New(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var writers []io.Writer
	if opts.Path != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    orDefault(opts.MaxSizeMB, defaultMaxSizeMB),
			MaxBackups: orDefault(opts.MaxBackups, defaultMaxBackups),
			MaxAge:     orDefault(opts.MaxAgeDays, defaultMaxAgeDays),
			Compress:   true,
		})
	}
	if opts.Interactive || len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	var out io.Writer
	if len(writers) == 1 {
		out = writers[0]
	} else {
		out = io.MultiWriter(writers...)
	}

	return slog.New(slog.NewTextHandler(out, handlerOpts))
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "", "info":
		return slog.LevelInfo
	default:
		return slog.LevelInfo
	}
}
