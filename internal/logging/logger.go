// Package logging provides structured logging for epicflow.
// It wraps log/slog with JSON output and persistent attributes so
// orchestration decisions can be traced across the registry, analyzer,
// and worktree subsystems.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log level names accepted in configuration.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// levelValues maps level names to their slog thresholds. parseLevel and
// ParseLevel both resolve through this table.
var levelValues = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// parseLevel resolves a level name, defaulting to INFO when unrecognized.
func parseLevel(level string) slog.Level {
	if v, ok := levelValues[strings.ToUpper(level)]; ok {
		return v
	}
	return slog.LevelInfo
}

// ParseLevel normalizes a level name to its canonical uppercase form,
// defaulting to INFO when unrecognized.
func ParseLevel(level string) string {
	name := strings.ToUpper(level)
	if _, ok := levelValues[name]; ok {
		return name
	}
	return LevelInfo
}

// ValidLevels returns the accepted level names in severity order.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// Logger emits JSON log records carrying a set of persistent attributes.
// Child loggers share the underlying sink; Logger is safe for concurrent
// use.
type Logger struct {
	logger *slog.Logger
	file   *os.File
	mu     sync.Mutex
	attrs  []slog.Attr
}

// NewLogger opens {logDir}/epicflow.log for appending and returns a
// Logger writing JSON records at or above the given level. An empty
// logDir sends records to stderr instead.
func NewLogger(logDir string, level string) (*Logger, error) {
	sink, file, err := openSink(logDir)
	if err != nil {
		return nil, err
	}

	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: parseLevel(level),
	})

	return &Logger{
		logger: slog.New(handler),
		file:   file,
	}, nil
}

// openSink picks the log destination: a file under logDir, or stderr
// when no directory is configured.
func openSink(logDir string) (io.Writer, *os.File, error) {
	if logDir == "" {
		return os.Stderr, nil, nil
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(logDir, "epicflow.log")
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return file, file, nil
}

// NopLogger returns a Logger that discards everything. Useful in tests
// and as the fallback when callers pass nil.
func NopLogger() *Logger {
	return &Logger{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// WithEpic returns a child logger stamping every record with the epic ID.
func (l *Logger) WithEpic(epicID string) *Logger {
	return l.child(slog.String("epic_id", epicID))
}

// WithWorktree returns a child logger stamping every record with the
// worktree name.
func (l *Logger) WithWorktree(name string) *Logger {
	return l.child(slog.String("worktree", name))
}

// WithComponent returns a child logger stamping every record with a
// subsystem name ("registry", "selector", "analyzer", "worktree", ...).
func (l *Logger) WithComponent(component string) *Logger {
	return l.child(slog.String("component", component))
}

// With returns a child logger carrying additional key-value pairs.
// Arguments alternate key, value; non-string keys are dropped.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	return l.child(attrs...)
}

func (l *Logger) child(attrs ...slog.Attr) *Logger {
	merged := make([]slog.Attr, 0, len(l.attrs)+len(attrs))
	merged = append(merged, l.attrs...)
	merged = append(merged, attrs...)
	return &Logger{logger: l.logger, file: l.file, attrs: merged}
}

// Debug logs at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) {
	l.log(slog.LevelDebug, msg, args...)
}

// Info logs at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) {
	l.log(slog.LevelInfo, msg, args...)
}

// Warn logs at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) {
	l.log(slog.LevelWarn, msg, args...)
}

// Error logs at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) {
	l.log(slog.LevelError, msg, args...)
}

// log prepends the persistent attributes to the per-call arguments.
func (l *Logger) log(level slog.Level, msg string, args ...any) {
	all := make([]any, 0, len(l.attrs)*2+len(args))
	for _, attr := range l.attrs {
		all = append(all, attr.Key, attr.Value.Any())
	}
	all = append(all, args...)
	l.logger.Log(context.Background(), level, msg, all...)
}

// Close flushes and closes the log file. A stderr-backed logger has
// nothing to close; repeated calls are no-ops.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	l.file = nil
	return nil
}
