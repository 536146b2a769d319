// Package logging provides structured logging for commtrayd.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	clog "github.com/charmbracelet/log"
)

// Logger is the structured logging interface used throughout the daemon.
type Logger interface {
	// Debug logs a debug message.
	Debug(msg string, args ...any)
	// Info logs an informational message.
	Info(msg string, args ...any)
	// Warn logs a warning message.
	Warn(msg string, args ...any)
	// Error logs an error message.
	Error(msg string, args ...any)
	// With returns a new logger with additional key-value pairs.
	With(args ...any) Logger
	// Shutdown flushes any buffered logs and releases resources.
	Shutdown() error
}

// Config controls logger initialization.
type Config struct {
	// Level is one of debug, info, warn, error.
	Level string
	// File is the log file path; empty logs to stderr.
	File string
}

// loggerImpl is the charmbracelet/log based implementation.
type loggerImpl struct {
	clogger *clog.Logger
	file    *os.File
}

// Init initializes a Logger with the given configuration. File output uses
// the JSON formatter; stderr output stays in the default text format.
func Init(cfg Config) (Logger, error) {
	var out io.Writer = os.Stderr
	var file *os.File
	jsonFormat := false

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		file = f
		jsonFormat = true
	}

	clogger := clog.NewWithOptions(out, clog.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339Nano,
		Level:           parseLevel(cfg.Level),
	})
	if jsonFormat {
		clogger.SetFormatter(clog.JSONFormatter)
	}
	clogger = clogger.With("pid", os.Getpid())

	return &loggerImpl{clogger: clogger, file: file}, nil
}

// parseLevel converts a string level to clog.Level.
func parseLevel(level string) clog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return clog.DebugLevel
	case "info":
		return clog.InfoLevel
	case "warn", "warning":
		return clog.WarnLevel
	case "error":
		return clog.ErrorLevel
	default:
		return clog.InfoLevel
	}
}

func (l *loggerImpl) Debug(msg string, args ...any) { l.clogger.Debug(msg, args...) }
func (l *loggerImpl) Info(msg string, args ...any)  { l.clogger.Info(msg, args...) }
func (l *loggerImpl) Warn(msg string, args ...any)  { l.clogger.Warn(msg, args...) }
func (l *loggerImpl) Error(msg string, args ...any) { l.clogger.Error(msg, args...) }

func (l *loggerImpl) With(args ...any) Logger {
	return &loggerImpl{clogger: l.clogger.With(args...), file: l.file}
}

func (l *loggerImpl) Shutdown() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// noopLogger discards everything. Used in tests and when logging is off.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (n noopLogger) With(...any) Logger { return n }
func (noopLogger) Shutdown() error      { return nil }

// Noop returns a logger that discards all output.
func Noop() Logger { return noopLogger{} }
