package log

import (
	"fmt"
	"strings"
)

// Logger is a leveled, structured logger.
type Logger interface {
	// Debug logs step-by-step detail (frames, ids, intermediate results).
	Debug(msg string, keysAndValues ...any)
	// Info logs routine progress.
	Info(msg string, keysAndValues ...any)
	// Warn logs unexpected but recoverable situations.
	Warn(msg string, keysAndValues ...any)
	// Error logs failures that abort the current operation.
	Error(msg string, keysAndValues ...any)
	// Fatal logs an unrecoverable failure. Implementations may exit the process.
	Fatal(msg string, keysAndValues ...any)
	// WithKV returns a logger that attaches key=value to every entry.
	WithKV(key string, value any) Logger
	// GetAllKV returns the pairs attached with WithKV.
	GetAllKV() []any
	// WithName returns a logger whose name gets name appended (dot separated).
	WithName(name string) Logger
	// Name returns the full dotted logger name.
	Name() string
	// AddCallerSkip returns a logger that skips skip more frames when reporting
	// the caller. Used by wrappers and helpers.
	AddCallerSkip(skip int) Logger
}

// Level is a log severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
	LevelFatal Level = "fatal"
)

// ParseLevel converts a case-insensitive level name into a Level.
func ParseLevel(s string) (Level, error) {
	switch lvl := Level(strings.ToLower(strings.TrimSpace(s))); lvl {
	case LevelDebug, LevelInfo, LevelWarn, LevelError, LevelFatal:
		return lvl, nil
	case "warning":
		return LevelWarn, nil
	default:
		return "", fmt.Errorf("unknown log level %q", s)
	}
}

// SpanEventRecorder records log entries onto a tracing span.
type SpanEventRecorder interface {
	TraceID() string
	SpanID() string
	// RecordEvent adds an event named name with keysAndValues as attributes.
	RecordEvent(name string, keysAndValues ...any)
	// RecordError adds an event and marks the span as failed.
	RecordError(name string, keysAndValues ...any)
}
