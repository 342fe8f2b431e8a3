// Package logging provides a small subsystem-tagged logging facade over
// log/slog used throughout the integration hub.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Level defines the severity of a log entry.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String makes Level satisfy fmt.Stringer.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// Init configures the package-level logger. Should be called once at
// process startup, before any other goroutine logs.
func Init(level Level, output io.Writer) {
	if output == nil {
		output = os.Stderr
	}
	handler := slog.NewTextHandler(output, &slog.HandlerOptions{Level: level.slogLevel()})
	defaultLogger = slog.New(handler)
	slog.SetDefault(defaultLogger)
}

func logInternal(level slog.Level, subsystem string, err error, messageFmt string, args ...interface{}) {
	msg := messageFmt
	if len(args) > 0 {
		msg = fmt.Sprintf(messageFmt, args...)
	}
	attrs := []any{slog.String("subsystem", subsystem)}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	defaultLogger.Log(context.Background(), level, msg, attrs...)
}

// Debug logs a debug-level message tagged with the given subsystem.
func Debug(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(slog.LevelDebug, subsystem, nil, messageFmt, args...)
}

// Info logs an info-level message tagged with the given subsystem.
func Info(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(slog.LevelInfo, subsystem, nil, messageFmt, args...)
}

// Warn logs a warn-level message tagged with the given subsystem.
func Warn(subsystem string, messageFmt string, args ...interface{}) {
	logInternal(slog.LevelWarn, subsystem, nil, messageFmt, args...)
}

// Error logs an error-level message tagged with the given subsystem,
// attaching the triggering error.
func Error(subsystem string, err error, messageFmt string, args ...interface{}) {
	logInternal(slog.LevelError, subsystem, err, messageFmt, args...)
}
