// SPDX-License-Identifier: MIT

// Package log is the levelled logger shared by every audioviz component.
// Messages are written through a single standard library logger with
// microsecond timestamps; the level is global and atomic so the audio and
// bridge goroutines can check it without locking.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

// Constants for log levels.
const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var currentLevel atomic.Uint32

var logger = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// SetOutput redirects all log output. Tests use it to capture messages.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// Configure applies the configured level name. Debug mode always wins and
// forces LevelDebug; it only adds diagnostics and never changes behaviour.
func Configure(levelName string, debug bool) error {
	if debug {
		SetLevel(LevelDebug)
		return nil
	}
	if levelName == "" {
		SetLevel(LevelInfo)
		return nil
	}
	level, ok := ParseLevel(levelName)
	if !ok {
		SetLevel(LevelInfo)
		return fmt.Errorf("unknown log level %q", levelName)
	}
	SetLevel(level)
	return nil
}

// Enabled reports whether a message at level would be written.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

func output(level LogLevel, prefix, format string, v ...any) {
	if !Enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, v...)
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	// INFO and WARN carry an extra space so messages line up with DEBUG/ERROR.
	pad := " "
	if len(level.String()) == 4 {
		pad = "  "
	}
	logger.Printf("[%s]%s%s", level, pad, msg)
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...any) { output(LevelDebug, "", format, v...) }

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...any) { output(LevelInfo, "", format, v...) }

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...any) { output(LevelWarn, "", format, v...) }

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...any) { output(LevelError, "", format, v...) }

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...any) {
	logger.Fatalf("[%s] %s", LevelFatal, fmt.Sprintf(format, v...))
}

// Logger prefixes every message with a component name, e.g. "Bridge: ...".
// The zero value logs without a prefix.
type Logger struct {
	component string
}

// For returns a Logger for the named component.
func For(component string) Logger {
	return Logger{component: component}
}

func (l Logger) Debugf(format string, v ...any) { output(LevelDebug, l.component, format, v...) }
func (l Logger) Infof(format string, v ...any)  { output(LevelInfo, l.component, format, v...) }
func (l Logger) Warnf(format string, v ...any)  { output(LevelWarn, l.component, format, v...) }
func (l Logger) Errorf(format string, v ...any) { output(LevelError, l.component, format, v...) }
