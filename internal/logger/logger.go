// Package logger provides the zap-backed structured logger used across the module
package logger

import (
	"strings"

	"github.com/google/uuid"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// New returns a logger writing to stderr at the given level
func New(level string) *Logger {
	return newStderrLogger(strings.ToLower(strings.TrimSpace(level)))
}

// NewRunID returns a short id correlating every log line of one run
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// WithRunID returns a child logger tagging every entry with run_id
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{SugaredLogger: l.With("run_id", runID)}
}

// Named returns a child logger for a component
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}
