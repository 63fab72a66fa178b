// Package common provides shared utilities for navrank
package common

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger to provide a consistent interface
type Logger struct {
	zerolog.Logger
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLoggerWithOutput creates a logger writing to a specific output
func NewLoggerWithOutput(level string, w io.Writer) *Logger {
	logger := zerolog.New(w).
		Level(parseLevel(level)).
		With().
		Timestamp().
		Logger()

	return &Logger{Logger: logger}
}

// NewLoggerFromConfig builds a logger from the logging section of the config.
// A file output is added alongside stderr when FilePath is set.
func NewLoggerFromConfig(cfg LoggingConfig) *Logger {
	var console io.Writer = os.Stderr
	if cfg.Format != "json" {
		console = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	if cfg.FilePath == "" {
		return NewLoggerWithOutput(cfg.Level, console)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		l := NewLoggerWithOutput(cfg.Level, console)
		l.Warn().Err(err).Str("path", cfg.FilePath).Msg("Log directory unavailable, file output disabled")
		return l
	}
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l := NewLoggerWithOutput(cfg.Level, console)
		l.Warn().Err(err).Str("path", cfg.FilePath).Msg("Log file unavailable, file output disabled")
		return l
	}
	return NewLoggerWithOutput(cfg.Level, zerolog.MultiLevelWriter(console, f))
}

// NewSilentLogger creates a logger that discards all output
func NewSilentLogger() *Logger {
	logger := zerolog.New(io.Discard)
	return &Logger{Logger: logger}
}
