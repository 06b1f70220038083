// Package logging defines the minimal structured-logging surface the engine
// depends on. Components log through the Logger interface so applications can
// plug slog, an adapter over their own logger, or nothing at all.
package logging

import (
	"log/slog"
	"os"
)

// Logger is the minimal logging interface used throughout travelmesh.
// Arguments follow the slog key/value convention.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SlogAdapter wraps *slog.Logger to implement the Logger interface.
type SlogAdapter struct {
	*slog.Logger
}

// NewSlogAdapter creates a Logger from an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) Logger {
	return &SlogAdapter{Logger: logger}
}

// NewDefaultLogger returns a JSON slog logger writing to stdout at info level.
func NewDefaultLogger() Logger {
	return NewSlogAdapter(slog.New(slog.NewJSONHandler(os.Stdout, nil)))
}

// NoOpLogger discards all log messages. It is the default for every component
// so logging stays opt-in.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}
