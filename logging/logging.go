// Package logging provides the structured logger used across keel. Library
// code accepts a Logger and stays silent by default; callers plug in the JSON
// logger or their own implementation.
package logging

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string to a Level. Unknown strings map to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN":
		return WARN
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

// Field is a structured log field.
type Field struct {
	Key   string
	Value any
}

// Helper constructors for common field types.
func String(key, val string) Field        { return Field{Key: key, Value: val} }
func Int(key string, val int) Field       { return Field{Key: key, Value: val} }
func Int64(key string, val int64) Field   { return Field{Key: key, Value: val} }
func Uint64(key string, val uint64) Field { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field     { return Field{Key: key, Value: val} }
func Duration(key string, val time.Duration) Field {
	return Field{Key: key, Value: val.String()}
}
func Error(key string, err error) Field {
	if err == nil {
		return Field{Key: key, Value: nil}
	}
	return Field{Key: key, Value: err.Error()}
}

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
}

// jsonLogger writes one JSON object per line.
type jsonLogger struct {
	out        *log.Logger
	minLevel   Level
	baseFields []Field
}

// New creates a JSON logger at the given level. A nil output writes to
// stdout.
func New(level Level, output io.Writer) Logger {
	if output == nil {
		output = os.Stdout
	}
	return &jsonLogger{
		out:      log.New(output, "", 0),
		minLevel: level,
	}
}

func (l *jsonLogger) Debug(msg string, fields ...Field) { l.log(DEBUG, msg, fields) }
func (l *jsonLogger) Info(msg string, fields ...Field)  { l.log(INFO, msg, fields) }
func (l *jsonLogger) Warn(msg string, fields ...Field)  { l.log(WARN, msg, fields) }
func (l *jsonLogger) Error(msg string, fields ...Field) { l.log(ERROR, msg, fields) }

func (l *jsonLogger) WithFields(fields ...Field) Logger {
	merged := make([]Field, 0, len(l.baseFields)+len(fields))
	merged = append(merged, l.baseFields...)
	merged = append(merged, fields...)
	return &jsonLogger{out: l.out, minLevel: l.minLevel, baseFields: merged}
}

func (l *jsonLogger) log(level Level, msg string, fields []Field) {
	if level < l.minLevel {
		return
	}
	entry := make(map[string]any, len(l.baseFields)+len(fields)+3)
	entry["timestamp"] = time.Now().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["message"] = msg
	for _, f := range l.baseFields {
		entry[f.Key] = f.Value
	}
	for _, f := range fields {
		entry[f.Key] = f.Value
	}
	b, err := json.Marshal(entry)
	if err != nil {
		l.out.Printf(`{"level":"ERROR","message":"failed to marshal log","error":%q}`, err.Error())
		return
	}
	l.out.Println(string(b))
}

// noopLogger implements Logger but does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}

func (n noopLogger) WithFields(...Field) Logger { return n }

// NewNoop creates a logger that discards all output.
func NewNoop() Logger {
	return noopLogger{}
}
