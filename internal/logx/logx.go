// Package logx provides a small structured logger used across ams-compose.
package logx

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the human-readable level name.
func (l Level) String() string {
	switch l {
	case TraceLevel:
		return "TRACE"
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name (case-insensitive) into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Config configures a Logger.
type Config struct {
	Level     Level
	UseColor  bool
	JSON      bool
	Component string
	NoOp      bool
}

// Logger is an injectable, level-gated structured logger.
type Logger struct {
	config Config
	out    *log.Logger
}

// New creates a Logger writing to os.Stderr with the given config.
func New(config Config) *Logger {
	return &Logger{config: config, out: log.New(os.Stderr, "", 0)}
}

// SetOutput redirects where log lines are written.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.SetOutput(w)
}

// Field is a structured key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field.
func String(key, value string) Field { return Field{Key: key, Value: value} }

// Int creates an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Bool creates a bool field.
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }

// Err creates an error field.
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: ""}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Entry is the structured representation of a single log line.
type Entry struct {
	Time      time.Time              `json:"time"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Component string                 `json:"component,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Log writes a message at the given level if it passes the configured threshold.
func (l *Logger) Log(level Level, message string, fields ...Field) {
	if level < l.config.Level {
		return
	}

	entry := Entry{
		Time:      time.Now(),
		Level:     level.String(),
		Message:   message,
		Component: l.config.Component,
		Fields:    make(map[string]interface{}, len(fields)),
	}
	for _, f := range fields {
		entry.Fields[f.Key] = f.Value
	}

	if l.config.JSON {
		b, _ := json.Marshal(entry)
		l.out.Print(string(b))
		return
	}
	l.out.Print(l.formatPretty(entry))
}

// levelColors maps a level name to its ANSI escape when UseColor is set.
var levelColors = map[string]string{
	"TRACE": "\033[37m",
	"DEBUG": "\033[36m",
	"INFO":  "\033[32m",
	"WARN":  "\033[33m",
	"ERROR": "\033[31m",
}

const noOpColor = "\033[35m"
const colorReset = "\033[0m"

func colorize(code, text string) string { return code + text + colorReset }

// formatPretty renders entry as a single human-readable line, assembled
// from independent segments so each piece (level, component, no-op
// marker, fields) can be added or dropped without reflowing the rest.
func (l *Logger) formatPretty(entry Entry) string {
	segments := []string{entry.Time.Format("2006-01-02 15:04:05")}

	level := entry.Level
	if l.config.UseColor {
		if code, ok := levelColors[entry.Level]; ok {
			level = colorize(code, entry.Level)
		}
	}
	segments = append(segments, fmt.Sprintf("[%s]", level))

	if entry.Component != "" {
		segments = append(segments, entry.Component+":")
	}
	if l.config.NoOp {
		marker := "[NO-OP]"
		if l.config.UseColor {
			marker = colorize(noOpColor, marker)
		}
		segments = append(segments, marker)
	}
	segments = append(segments, entry.Message)

	if len(entry.Fields) > 0 {
		segments = append(segments, formatFields(entry.Fields))
	}

	return strings.Join(segments, " ")
}

// formatFields renders a field map in sorted key order — map iteration
// is unordered, and the original render would otherwise vary the same
// entry's rendered text from one run to the next.
func formatFields(fields map[string]interface{}) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, len(keys))
	for i, k := range keys {
		pairs[i] = fmt.Sprintf("%s=%v", k, fields[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

func (l *Logger) Trace(message string, fields ...Field) { l.Log(TraceLevel, message, fields...) }
func (l *Logger) Debug(message string, fields ...Field) { l.Log(DebugLevel, message, fields...) }
func (l *Logger) Info(message string, fields ...Field)  { l.Log(InfoLevel, message, fields...) }
func (l *Logger) Warn(message string, fields ...Field)  { l.Log(WarnLevel, message, fields...) }
func (l *Logger) Error(message string, fields ...Field) { l.Log(ErrorLevel, message, fields...) }

// default logger used by the package-level convenience functions.
var defaultLogger = New(Config{Level: InfoLevel})

// Initialize replaces the package-level default logger.
func Initialize(config Config) {
	defaultLogger = New(config)
}

// Default returns the package-level default logger.
func Default() *Logger { return defaultLogger }

func Trace(message string, fields ...Field) { defaultLogger.Trace(message, fields...) }
func Debug(message string, fields ...Field) { defaultLogger.Debug(message, fields...) }
func Info(message string, fields ...Field)  { defaultLogger.Info(message, fields...) }
func Warn(message string, fields ...Field)  { defaultLogger.Warn(message, fields...) }
func Error(message string, fields ...Field) { defaultLogger.Error(message, fields...) }
