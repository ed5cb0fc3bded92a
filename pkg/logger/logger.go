// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-mfkdf.
//
// go-mfkdf is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package logger defines the structured logging interface used across
// go-mfkdf. Applications plug in their own implementation or use the
// slog-backed adapter. Loggers must never receive secret material: factor
// data, shares, pads and keys are not logged anywhere in this module.
package logger

// Level represents the severity of a log message
type Level int

const (
	// LevelDebug is for verbose diagnostic output
	LevelDebug Level = iota
	// LevelInfo is for general operational messages
	LevelInfo
	// LevelWarn is for recoverable conditions such as integrity failures
	LevelWarn
	// LevelError is for failures
	LevelError
)

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

// ParseLevel converts a configuration string into a Level. Unknown values
// map to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug", "DEBUG":
		return LevelDebug
	case "warn", "WARN", "warning":
		return LevelWarn
	case "error", "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is a structured, leveled logger
type Logger interface {
	Debug(msg string, fields ...Field)

	Info(msg string, fields ...Field)

	Warn(msg string, fields ...Field)

	Error(msg string, fields ...Field)

	// With returns a child logger that always includes fields
	With(fields ...Field) Logger

	// WithError returns a child logger carrying err
	WithError(err error) Logger
}

// Field is a single key/value pair attached to a log entry
type Field struct {
	Key   string
	Value interface{}
}

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Error(err error) Field {
	return Field{Key: "error", Value: err}
}

func Strings(key string, values []string) Field {
	return Field{Key: key, Value: values}
}

func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// NoOp discards every entry
type NoOp struct{}

// NewNoOp returns a Logger that discards everything
func NewNoOp() Logger {
	return NoOp{}
}

func (NoOp) Debug(string, ...Field)   {}
func (NoOp) Info(string, ...Field)    {}
func (NoOp) Warn(string, ...Field)    {}
func (NoOp) Error(string, ...Field)   {}
func (n NoOp) With(...Field) Logger   { return n }
func (n NoOp) WithError(error) Logger { return n }
