// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the leveled field logger used across batchrun.
//
// Output goes through the standard library log package so that headless runs,
// the console and tests share one format:
//
//	2025/01/02 15:04:05 [INFO] task started {task: build.sh, worker: 1}
package logging

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// =============================================================================
// LEVELS
// =============================================================================

// Level is a log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the upper-case level name used in log lines.
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

// ParseLevel converts a config value ("debug", "info", "warn", "error") to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %q", s)
	}
}

// =============================================================================
// LOGGER INTERFACE
// =============================================================================

// Logger is a leveled logger with key/value fields.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is a key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F creates a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Format renders a message and its fields the way every Logger in this package does.
func Format(level Level, msg string, fields ...Field) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level.String())
	b.WriteString("] ")
	b.WriteString(msg)
	if len(fields) > 0 {
		b.WriteString(" {")
		for i, f := range fields {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s: %v", f.Key, f.Value)
		}
		b.WriteString("}")
	}
	return b.String()
}

// =============================================================================
// STANDARD LOGGER
// =============================================================================

// StdLogger writes through a *log.Logger and drops lines below its level.
type StdLogger struct {
	mu    sync.Mutex
	out   *log.Logger
	level Level
}

// New creates a StdLogger writing to w.
func New(w io.Writer, level Level) *StdLogger {
	return &StdLogger{
		out:   log.New(w, "", log.LstdFlags),
		level: level,
	}
}

// SetLevel changes the minimum level.
func (l *StdLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

func (l *StdLogger) Debug(msg string, fields ...Field) { l.log(LevelDebug, msg, fields...) }
func (l *StdLogger) Info(msg string, fields ...Field)  { l.log(LevelInfo, msg, fields...) }
func (l *StdLogger) Warn(msg string, fields ...Field)  { l.log(LevelWarn, msg, fields...) }
func (l *StdLogger) Error(msg string, fields ...Field) { l.log(LevelError, msg, fields...) }

func (l *StdLogger) log(level Level, msg string, fields ...Field) {
	l.mu.Lock()
	min := l.level
	l.mu.Unlock()
	if level < min {
		return
	}
	l.out.Println(Format(level, msg, fields...))
}

// =============================================================================
// FUNC AND NOP LOGGERS
// =============================================================================

// FuncLogger hands every formatted line to a callback. The TUI uses it to feed
// its log pane.
type FuncLogger struct {
	Min  Level
	Sink func(level Level, line string)
}

func (l FuncLogger) Debug(msg string, fields ...Field) { l.emit(LevelDebug, msg, fields...) }
func (l FuncLogger) Info(msg string, fields ...Field)  { l.emit(LevelInfo, msg, fields...) }
func (l FuncLogger) Warn(msg string, fields ...Field)  { l.emit(LevelWarn, msg, fields...) }
func (l FuncLogger) Error(msg string, fields ...Field) { l.emit(LevelError, msg, fields...) }

func (l FuncLogger) emit(level Level, msg string, fields ...Field) {
	if l.Sink == nil || level < l.Min {
		return
	}
	l.Sink(level, Format(level, msg, fields...))
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...Field) {}
func (nopLogger) Info(string, ...Field)  {}
func (nopLogger) Warn(string, ...Field)  {}
func (nopLogger) Error(string, ...Field) {}

// Nop returns a Logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}
