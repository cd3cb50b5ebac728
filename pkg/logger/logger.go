// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-envelope.
//
// go-envelope is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package logger is the structured logging adapter used throughout
// go-envelope. Applications supply their own implementation or use the
// slog backed SlogAdapter.
package logger

import (
	"context"
	"time"
)

// Level represents the log level
type Level int

const (
	// LevelDebug is for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo is for general informational messages
	LevelInfo
	// LevelWarn is for warning messages
	LevelWarn
	// LevelError is for error messages
	LevelError
)

// String returns the string representation of the log level
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

// ParseLevel converts a configuration string to a Level. Unknown values
// map to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "warning", "WARN":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the interface for logging adapters
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// The context variants attach the correlation id found in ctx.
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)

	// With creates a child logger with the given fields
	With(fields ...Field) Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an int field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a bool field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a duration field
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Error creates an error field
func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Redacted creates a field holding a shortened form of a token or
// envelope. Only the length and the first characters survive.
func Redacted(key, value string) Field {
	return Field{Key: key, Value: Redact(value)}
}

// Redact shortens sensitive strings for logs.
func Redact(value string) string {
	const visible = 8
	switch {
	case value == "":
		return ""
	case len(value) <= visible:
		return "[REDACTED]"
	default:
		return value[:visible] + "...[REDACTED]"
	}
}

// NopLogger discards everything. It is the default for library types.
type NopLogger struct{}

// NewNopLogger returns a Logger that discards all output.
func NewNopLogger() Logger { return NopLogger{} }

func (NopLogger) Debug(string, ...Field)                         {}
func (NopLogger) Info(string, ...Field)                          {}
func (NopLogger) Warn(string, ...Field)                          {}
func (NopLogger) Error(string, ...Field)                         {}
func (NopLogger) DebugContext(context.Context, string, ...Field) {}
func (NopLogger) InfoContext(context.Context, string, ...Field)  {}
func (NopLogger) WarnContext(context.Context, string, ...Field)  {}
func (NopLogger) ErrorContext(context.Context, string, ...Field) {}
func (n NopLogger) With(...Field) Logger                         { return n }
