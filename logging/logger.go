// Package logging provides the small structured-logging interface every
// component in this module accepts, adapted from the teacher's
// agent/logger.go onto a multi-package architecture: each package depends
// only on this interface, never on a concrete logger, and defaults to
// NoopLogger so the library costs nothing when a caller doesn't configure
// logging.
package logging

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/tidwall/pretty"
)

// Level orders log severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
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

// Field is one key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// jsonField marks a Field's value as raw JSON so StdLogger compacts and
// pretty-prints it (tool call arguments/results) rather than logging it as
// an opaque Go value via %v.
type jsonField string

// FJSON builds a Field whose value is a raw JSON string, pretty-printed by
// StdLogger rather than dumped via %v.
func FJSON(key, rawJSON string) Field {
	return Field{Key: key, Value: jsonField(rawJSON)}
}

// Logger is the structured logging interface every component accepts.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...Field)
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
}

// NoopLogger discards everything. It is the default for every component
// constructor in this module.
type NoopLogger struct{}

func (NoopLogger) Debug(context.Context, string, ...Field) {}
func (NoopLogger) Info(context.Context, string, ...Field)  {}
func (NoopLogger) Warn(context.Context, string, ...Field)  {}
func (NoopLogger) Error(context.Context, string, ...Field) {}

// StdLogger writes level-gated, formatted lines to the standard library's
// log package. It is the example implementation callers reach for first.
type StdLogger struct {
	Level  Level
	stdlog *log.Logger
}

// NewStdLogger builds a StdLogger writing to stderr at the given level.
func NewStdLogger(level Level) *StdLogger {
	return &StdLogger{Level: level, stdlog: log.New(os.Stderr, "", 0)}
}

func (l *StdLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields...)
}
func (l *StdLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}
func (l *StdLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}
func (l *StdLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

func (l *StdLogger) log(level Level, msg string, fields ...Field) {
	if level < l.Level {
		return
	}
	var b strings.Builder
	b.WriteString(time.Now().Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(level.String())
	b.WriteString(": ")
	b.WriteString(msg)
	for _, f := range fields {
		if raw, ok := f.Value.(jsonField); ok {
			b.WriteString(fmt.Sprintf(" | %s=%s", f.Key, prettyJSON(string(raw))))
			continue
		}
		b.WriteString(fmt.Sprintf(" | %s=%v", f.Key, f.Value))
	}
	l.stdlog.Println(b.String())
}

// prettyJSON compacts then indents a raw JSON string with tidwall/pretty for
// human-readable debug logging; malformed JSON passes through unchanged
// since pretty.Pretty degrades gracefully on non-JSON input.
func prettyJSON(raw string) string {
	compacted := pretty.Ugly([]byte(raw))
	return strings.TrimRight(string(pretty.Pretty(compacted)), "\n")
}
