// jsonlog.go - Leveled logging, plain text for development or JSON lines.
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

func (l LogLevel) rank() int {
	switch l {
	case LogLevelDebug:
		return 0
	case LogLevelWarn:
		return 2
	case LogLevelError:
		return 3
	default:
		return 1
	}
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to info.
func ParseLogLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn:
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// Logger writes leveled entries with structured fields. It is safe for use
// by the accept loop and the upload-root watcher at the same time.
type Logger struct {
	mu         sync.Mutex
	output     io.Writer
	minLevel   LogLevel
	enableJSON bool
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Level     LogLevel       `json:"level"`
	Time      string         `json:"time"`
	Message   string         `json:"msg"`
	Fields    map[string]any `json:"fields,omitempty"`
	Error     string         `json:"error,omitempty"`
	Caller    string         `json:"caller,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// DefaultLogger is used when a Config does not carry its own Logger.
var DefaultLogger = NewLogger(os.Stdout,
	ParseLogLevel(os.Getenv("SFD_LOG_LEVEL")),
	os.Getenv("SFD_LOG_FORMAT") == "json" || os.Getenv("SFD_ENV") == "production")

// NewLogger returns a logger writing to w.
func NewLogger(w io.Writer, level LogLevel, enableJSON bool) *Logger {
	return &Logger{output: w, minLevel: level, enableJSON: enableJSON}
}

// SetLevel changes the minimum level written.
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// WithLevel returns a logger writing to the same output in the same format
// at a different minimum level. l is left unchanged.
func (l *Logger) WithLevel(level LogLevel) *Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return NewLogger(l.output, level, l.enableJSON)
}

// Level returns the minimum level written.
func (l *Logger) Level() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.minLevel
}

// getCaller returns the file and line number of the caller
func getCaller(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	if i := strings.LastIndexByte(file, '/'); i >= 0 {
		file = file[i+1:]
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]any, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if level.rank() < l.minLevel.rank() {
		return
	}

	entry := LogEntry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
		Caller:  getCaller(3),
	}
	if rid, ok := fields["rid"].(string); ok {
		entry.RequestID = rid
	}
	if err != nil {
		entry.Error = err.Error()
	}

	if l.enableJSON {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	// Plain text, fields in key order so lines diff cleanly.
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	if entry.Error != "" {
		fmt.Fprintf(&b, " error=%q", entry.Error)
	}
	fmt.Fprintln(l.output, b.String())
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields map[string]any) {
	l.log(LogLevelDebug, msg, fields, nil)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields map[string]any) {
	l.log(LogLevelInfo, msg, fields, nil)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields map[string]any) {
	l.log(LogLevelWarn, msg, fields, nil)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields map[string]any, err error) {
	l.log(LogLevelError, msg, fields, err)
}
