package tenantstore

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger provides structured logging for tenantstore operations
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// NoOpLogger is a logger that does nothing
type NoOpLogger struct{}

func (l *NoOpLogger) Debug(msg string, fields ...interface{}) {}
func (l *NoOpLogger) Info(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Warn(msg string, fields ...interface{})  {}
func (l *NoOpLogger) Error(msg string, fields ...interface{}) {}

// StdLogger writes key=value formatted lines through the standard library
// logger. Meant for development and tests; use ZapLogger in production.
type StdLogger struct {
	out *log.Logger
}

func NewStdLogger(prefix string) *StdLogger {
	return NewStdLoggerTo(os.Stderr, prefix)
}

// NewStdLoggerTo writes to the given writer instead of stderr.
func NewStdLoggerTo(w io.Writer, prefix string) *StdLogger {
	if prefix != "" {
		prefix += " "
	}
	return &StdLogger{out: log.New(w, prefix, log.LstdFlags)}
}

func (l *StdLogger) Debug(msg string, fields ...interface{}) {
	l.out.Println(formatLine("DEBUG", msg, fields))
}

func (l *StdLogger) Info(msg string, fields ...interface{}) {
	l.out.Println(formatLine("INFO", msg, fields))
}

func (l *StdLogger) Warn(msg string, fields ...interface{}) {
	l.out.Println(formatLine("WARN", msg, fields))
}

func (l *StdLogger) Error(msg string, fields ...interface{}) {
	l.out.Println(formatLine("ERROR", msg, fields))
}

func formatLine(level, msg string, fields []interface{}) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(level)
	b.WriteString("] ")
	b.WriteString(msg)
	for i := 0; i+1 < len(fields); i += 2 {
		fmt.Fprintf(&b, " %v=%v", fields[i], fields[i+1])
	}
	// A dangling key with no value still gets logged rather than dropped.
	if len(fields)%2 != 0 {
		fmt.Fprintf(&b, " %v=", fields[len(fields)-1])
	}
	return b.String()
}
