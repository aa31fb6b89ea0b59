// Package logger provides structured logging built on log/slog.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"
)

// LogLevel controls the minimum level emitted by a logger.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarn
	LogLevelError
)

// Field is a typed key/value pair attached to a log record.
type Field struct {
	attr slog.Attr
}

// String creates a string field.
func String(key, value string) Field {
	return Field{attr: slog.String(key, value)}
}

// Int creates an int field.
func Int(key string, value int) Field {
	return Field{attr: slog.Int(key, value)}
}

// Int64 creates an int64 field.
func Int64(key string, value int64) Field {
	return Field{attr: slog.Int64(key, value)}
}

// Uint64 creates a uint64 field.
func Uint64(key string, value uint64) Field {
	return Field{attr: slog.Uint64(key, value)}
}

// Float64 creates a float64 field.
func Float64(key string, value float64) Field {
	return Field{attr: slog.Float64(key, value)}
}

// Bool creates a bool field.
func Bool(key string, value bool) Field {
	return Field{attr: slog.Bool(key, value)}
}

// Duration creates a duration field rendered as a string like "1.5s".
func Duration(key string, value time.Duration) Field {
	return Field{attr: slog.String(key, value.String())}
}

// Time creates a time field in RFC3339 format.
func Time(key string, value time.Time) Field {
	return Field{attr: slog.String(key, value.Format(time.RFC3339))}
}

// Any creates a field with an arbitrary value.
func Any(key string, value any) Field {
	return Field{attr: slog.Any(key, value)}
}

// Error creates an "error" field. A nil error renders as "<nil>".
func Error(err error) Field {
	if err == nil {
		return Field{attr: slog.String("error", "<nil>")}
	}
	return Field{attr: slog.String("error", err.Error())}
}

// Logger is the logging interface used throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a logger that includes the given fields on every record.
	With(fields ...Field) Logger
}

type slogLogger struct {
	l *slog.Logger
}

// NewSlogLogger creates a Logger writing JSON records to w at the given level.
// Extra fields, if any, are attached to every record.
func NewSlogLogger(w io.Writer, level LogLevel, fields []Field) Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slogLevel(level)})
	l := slog.New(handler)
	if len(fields) > 0 {
		l = l.With(attrArgs(fields)...)
	}
	return &slogLogger{l: l}
}

// Default returns a Logger writing to stdout at info level.
func Default() Logger {
	return NewSlogLogger(os.Stdout, LogLevelInfo, nil)
}

// ParseLevel converts a level name ("debug", "info", "warn", "error") to a
// LogLevel. Unknown names default to info.
func ParseLevel(name string) LogLevel {
	switch name {
	case "debug":
		return LogLevelDebug
	case "warn", "warning":
		return LogLevelWarn
	case "error":
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (s *slogLogger) Debug(msg string, fields ...Field) {
	s.l.Debug(msg, attrArgs(fields)...)
}

func (s *slogLogger) Info(msg string, fields ...Field) {
	s.l.Info(msg, attrArgs(fields)...)
}

func (s *slogLogger) Warn(msg string, fields ...Field) {
	s.l.Warn(msg, attrArgs(fields)...)
}

func (s *slogLogger) Error(msg string, fields ...Field) {
	s.l.Error(msg, attrArgs(fields)...)
}

func (s *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{l: s.l.With(attrArgs(fields)...)}
}

func slogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func attrArgs(fields []Field) []any {
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		args = append(args, f.attr)
	}
	return args
}
