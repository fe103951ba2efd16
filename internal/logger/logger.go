// Package logger provides structured, leveled logging backed by zerolog.
package logger

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Level represents the minimum level a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// LoggerInterface is the logging contract used across the application.
// Key/value pairs follow the message as alternating keys and values.
type LoggerInterface interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)
}

// Logger implements LoggerInterface on top of zerolog.
type Logger struct {
	zl zerolog.Logger
}

var _ LoggerInterface = (*Logger)(nil)

// New creates a Logger writing JSON lines to w. service is attached to
// every event; extra fields (may be nil) are attached as well.
func New(w io.Writer, level Level, service string, fields map[string]any) *Logger {
	zlvl := zerolog.InfoLevel
	switch level {
	case LevelDebug:
		zlvl = zerolog.DebugLevel
	case LevelWarn:
		zlvl = zerolog.WarnLevel
	case LevelError:
		zlvl = zerolog.ErrorLevel
	}

	builder := zerolog.New(w).Level(zlvl).With().Timestamp().Str("service", service)
	for k, v := range fields {
		builder = builder.Interface(k, v)
	}

	return &Logger{zl: builder.Logger()}
}

func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Debug(), msg, args)
}

func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Info(), msg, args)
}

func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Warn(), msg, args)
}

func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.emit(ctx, l.zl.Error(), msg, args)
}

func (l *Logger) emit(ctx context.Context, ev *zerolog.Event, msg string, args []any) {
	if span := trace.SpanContextFromContext(ctx); span.HasTraceID() {
		ev = ev.Str("trace_id", span.TraceID().String())
	}

	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			key = fmt.Sprint(args[i])
		}
		switch v := args[i+1].(type) {
		case error:
			ev = ev.AnErr(key, v)
		case string:
			ev = ev.Str(key, v)
		default:
			ev = ev.Interface(key, v)
		}
	}
	if len(args)%2 != 0 {
		ev = ev.Interface("arg", args[len(args)-1])
	}

	ev.Msg(msg)
}
