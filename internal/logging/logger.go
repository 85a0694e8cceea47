package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Format represents the output format for logs
type Format int

const (
	// FormatConsole is human-readable console output
	FormatConsole Format = iota
	// FormatJSON is structured JSON output
	FormatJSON
)

// String returns the name of the format as accepted by ParseFormat
func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "console"
}

// ParseFormat converts a string to a Format, defaulting to console
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatConsole
}

// Level represents a logging level
type Level int

const (
	// DebugLevel is for debug messages
	DebugLevel Level = iota
	// InfoLevel is for informational messages
	InfoLevel
	// WarnLevel is for warning messages
	WarnLevel
	// ErrorLevel is for error messages
	ErrorLevel
)

// String returns the string representation of a Level
func (l Level) String() string {
	switch l {
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

// ParseLevel converts a string to a Level
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return DebugLevel
	case "info":
		return InfoLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Logger provides structured logging capabilities.
// A Logger and every child created with With share one output and one write
// lock, so lines from concurrent relay sessions never interleave.
type Logger struct {
	level  Level
	format Format
	output io.Writer
	mu     *sync.Mutex
	fields []Field
}

// New creates a new Logger with the specified level and console format
func New(level Level) *Logger {
	return NewWithFormat(level, FormatConsole)
}

// NewWithFormat creates a new Logger with the specified level and format
func NewWithFormat(level Level, format Format) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: os.Stdout,
		mu:     &sync.Mutex{},
	}
}

// NewWithOutput creates a new Logger with the specified level and output writer
func NewWithOutput(level Level, output io.Writer) *Logger {
	return &Logger{
		level:  level,
		format: FormatConsole,
		output: output,
		mu:     &sync.Mutex{},
	}
}

// SetLevel changes the logging level
func (l *Logger) SetLevel(level Level) {
	l.level = level
}

// SetFormat changes the output format
func (l *Logger) SetFormat(format Format) {
	l.format = format
}

// Level returns the current logging level
func (l *Logger) Level() Level {
	return l.level
}

// With returns a child logger that prepends fields to every entry.
// The child shares the parent's output and write lock.
func (l *Logger) With(fields ...Field) *Logger {
	if l == nil {
		return nil
	}

	merged := make([]Field, 0, len(l.fields)+len(fields))
	merged = append(merged, l.fields...)
	merged = append(merged, fields...)

	return &Logger{
		level:  l.level,
		format: l.format,
		output: l.output,
		mu:     l.mu,
		fields: merged,
	}
}

// Debug logs a debug message with optional fields
func (l *Logger) Debug(msg string, fields ...Field) {
	l.log(DebugLevel, msg, fields...)
}

// Info logs an informational message with optional fields
func (l *Logger) Info(msg string, fields ...Field) {
	l.log(InfoLevel, msg, fields...)
}

// Warn logs a warning message with optional fields
func (l *Logger) Warn(msg string, fields ...Field) {
	l.log(WarnLevel, msg, fields...)
}

// Error logs an error message with optional fields
func (l *Logger) Error(msg string, fields ...Field) {
	l.log(ErrorLevel, msg, fields...)
}

func (l *Logger) log(level Level, msg string, fields ...Field) {
	if l == nil || level < l.level {
		return
	}

	all := fields
	if len(l.fields) > 0 {
		all = make([]Field, 0, len(l.fields)+len(fields))
		all = append(all, l.fields...)
		all = append(all, fields...)
	}

	var line []byte
	if l.format == FormatJSON {
		line = l.formatJSON(level, msg, all)
	} else {
		line = l.formatConsole(level, msg, all)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.output.Write(line)
}

// formatConsole renders a human-readable line: timestamp, level, message, key=value fields
func (l *Logger) formatConsole(level Level, msg string, fields []Field) []byte {
	var output strings.Builder
	output.WriteString(time.Now().UTC().Format(time.RFC3339))
	output.WriteString(" ")
	output.WriteString(level.String())
	output.WriteString(" ")
	output.WriteString(msg)

	for _, field := range fields {
		output.WriteString(" ")
		output.WriteString(field.Key)
		output.WriteString("=")
		output.WriteString(fmt.Sprintf("%v", field.Value))
	}

	output.WriteString("\n")
	return []byte(output.String())
}

// formatJSON renders one JSON object per line
func (l *Logger) formatJSON(level Level, msg string, fields []Field) []byte {
	logEntry := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     level.String(),
		"message":   msg,
	}

	for _, field := range fields {
		value := field.Value
		// Durations marshal as nanoseconds otherwise
		if d, ok := value.(time.Duration); ok {
			value = d.String()
		}
		logEntry[field.Key] = value
	}

	jsonBytes, err := json.Marshal(logEntry)
	if err != nil {
		// Fallback to console output if JSON marshaling fails
		return l.formatConsole(level, msg, fields)
	}

	return append(jsonBytes, '\n')
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value any
}

// String creates a Field with a string value
func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates a Field with an integer value
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates a Field with a 64-bit integer value
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a Field with a boolean value
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Duration creates a Field with a duration value
func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Port creates a Field rendering a TCP port as ":<port>"
func Port(key string, port uint16) Field {
	return Field{Key: key, Value: fmt.Sprintf(":%d", port)}
}

// Error creates a Field with an error value
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "<nil>"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a Field with any value
func Any(key string, value any) Field {
	return Field{Key: key, Value: value}
}
