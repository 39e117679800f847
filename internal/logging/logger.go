// Package logging provides the structured logger used across the indexer.
package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

var levelRank = map[LogLevel]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// LogFormat represents the output format for logs
type LogFormat string

const (
	FormatJSON LogFormat = "json"
	FormatText LogFormat = "text"
)

// Logger writes leveled entries carrying a set of contextual fields.
// Loggers derived with WithField share the parent's output.
type Logger struct {
	level  LogLevel
	format LogFormat
	out    *output
	fields map[string]interface{}
}

type output struct {
	mu sync.Mutex
	w  io.Writer
}

// LogEntry represents a single log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// NewLogger creates a new logger writing to stdout
func NewLogger(level LogLevel, format LogFormat) *Logger {
	return &Logger{
		level:  level,
		format: format,
		out:    &output{w: os.Stdout},
		fields: map[string]interface{}{},
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	l := NewLogger(LevelError, FormatJSON)
	l.out = &output{w: io.Discard}
	return l
}

func (l *Logger) with(extra map[string]interface{}) *Logger {
	fields := make(map[string]interface{}, len(l.fields)+len(extra))
	for k, v := range l.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return &Logger{level: l.level, format: l.format, out: l.out, fields: fields}
}

// WithField adds a field to the logger context
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(map[string]interface{}{key: value})
}

// WithFields adds multiple fields to the logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return l.with(fields)
}

// WithComponent tags entries with the emitting component, e.g. "storage" or "indexer"
func (l *Logger) WithComponent(name string) *Logger {
	return l.WithField("component", name)
}

// WithError adds an error to the logger context
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.WithField("error", err.Error())
}

func (l *Logger) Debug(message string) { l.log(LevelDebug, message) }
func (l *Logger) Info(message string)  { l.log(LevelInfo, message) }
func (l *Logger) Warn(message string)  { l.log(LevelWarn, message) }
func (l *Logger) Error(message string) { l.log(LevelError, message) }

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(LevelError, fmt.Sprintf(format, args...))
}

// Enabled reports whether entries at level would be written
func (l *Logger) Enabled(level LogLevel) bool {
	return levelRank[level] >= levelRank[l.level]
}

func (l *Logger) log(level LogLevel, message string) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     string(level),
		Message:   message,
		Fields:    l.fields,
	}

	if level == LevelError {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	var line string
	if l.format == FormatJSON {
		b, _ := json.Marshal(entry)
		line = string(b)
	} else {
		line = formatText(entry)
	}

	l.out.mu.Lock()
	fmt.Fprintln(l.out.w, line)
	l.out.mu.Unlock()
}

func formatText(entry LogEntry) string {
	line := fmt.Sprintf("[%s] %s: %s", entry.Timestamp, entry.Level, entry.Message)
	if len(entry.Fields) > 0 {
		b, _ := json.Marshal(entry.Fields)
		line += " fields=" + string(b)
	}
	if entry.Caller != "" {
		line += " caller=" + entry.Caller
	}
	return line
}

// SetOutput sets the output writer for the logger and everything derived from it
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	l.out.w = w
	l.out.mu.Unlock()
}

// SetLevel sets the log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

var (
	globalMu     sync.RWMutex
	globalLogger *Logger
)

// InitGlobalLogger initializes the global logger
func InitGlobalLogger(level LogLevel, format LogFormat) *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = NewLogger(level, format)
	return globalLogger
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	l := globalLogger
	globalMu.RUnlock()
	if l != nil {
		return l
	}
	return InitGlobalLogger(LevelInfo, FormatJSON)
}

type loggerKey struct{}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext retrieves a logger from the context, falling back to the global logger
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return logger
	}
	return GetGlobalLogger()
}

// OrGlobal returns l, or the global logger when l is nil
func OrGlobal(l *Logger) *Logger {
	if l != nil {
		return l
	}
	return GetGlobalLogger()
}

// ParseLogLevel parses a string into a LogLevel, defaulting to info
func ParseLogLevel(level string) LogLevel {
	switch level {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ParseLogFormat parses a string into a LogFormat, defaulting to json
func ParseLogFormat(format string) LogFormat {
	if format == "text" {
		return FormatText
	}
	return FormatJSON
}
