// Package logging provides a structured, module-scoped logger on top of
// log/slog. It mirrors the teacher's dependency-free logging design: no
// third-party logging library appears anywhere in the logging layer of the
// retrieved pack, so this ambient concern stays on the standard library,
// same as the original.
package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Field is a structured log attribute.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field        { return Field{Key: key, Value: value} }
func Int(key string, value int) Field       { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field     { return Field{Key: key, Value: value} }
func Any(key string, value any) Field       { return Field{Key: key, Value: value} }
func Err(err error) Field                   { return Field{Key: "error", Value: err} }
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: d}
}

// Logger is the interface injected into every component. Production code
// never reaches for log/slog directly so tests can substitute a recording
// logger.
type Logger interface {
	Module(name string) Logger
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

type slogLogger struct {
	handler slog.Handler
	module  string
}

func fieldsToAttrs(fields []Field) []slog.Attr {
	attrs := make([]slog.Attr, len(fields))
	for i, f := range fields {
		attrs[i] = slog.Any(f.Key, f.Value)
	}
	return attrs
}

func (l *slogLogger) log(level slog.Level, msg string, fields []Field) {
	rec := slog.NewRecord(time.Now(), level, msg, 0)
	if l.module != "" {
		rec.AddAttrs(slog.String("module", l.module))
	}
	rec.AddAttrs(fieldsToAttrs(fields)...)
	_ = l.handler.Handle(context.Background(), rec)
}

func (l *slogLogger) Module(name string) Logger {
	module := name
	if l.module != "" {
		module = l.module + "." + name
	}
	return &slogLogger{handler: l.handler, module: module}
}

func (l *slogLogger) With(fields ...Field) Logger {
	return &slogLogger{handler: l.handler.WithAttrs(fieldsToAttrs(fields)), module: l.module}
}

func (l *slogLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *slogLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *slogLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *slogLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

// New builds a Logger that sends its records to handler; output format and
// level filtering are the handler's.
func New(handler slog.Handler) Logger {
	return &slogLogger{handler: handler}
}

var (
	global     Logger
	globalOnce sync.Once
)

// Global returns the process-wide default logger, lazily initialized to a
// stdout text handler at Info level.
func Global() Logger {
	globalOnce.Do(func() {
		global = New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	})
	return global
}

// SetGlobal overrides the process-wide default logger; used at startup once
// configuration has been resolved.
func SetGlobal(l Logger) {
	globalOnce.Do(func() {}) // keep a later first Global() call from replacing l
	global = l
}
