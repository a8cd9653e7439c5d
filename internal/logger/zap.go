package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the sugared zap logger shared by every command. Entries go to
// stderr; stdout is reserved for the JSON the commands print.
type Logger struct {
	*zap.SugaredLogger
}

// parseLevel maps VIESSMANN_LOG_LEVEL to a zap level. Unknown values log at info.
func parseLevel(level string) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case WarnLevel, "warning":
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// newCore writes console-encoded entries with RFC3339 timestamps to out
func newCore(level zapcore.Level, out zapcore.WriteSyncer) zapcore.Core {
	enc := zap.NewProductionEncoderConfig()
	enc.EncodeTime = zapcore.RFC3339TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.Lock(out), level)
}

func newStderrLogger(level string) *Logger {
	return FromCore(newCore(parseLevel(level), os.Stderr))
}

// Nop returns a logger that drops every entry. Packages default to it when
// the caller passes no logger, and tests use it where output is irrelevant.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// FromCore wraps an existing core. Tests pass a zaptest/observer core to
// assert on logged fields.
func FromCore(core zapcore.Core) *Logger {
	return &Logger{SugaredLogger: zap.New(core).Sugar()}
}
