package log

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// zerologAdapter implements Logger on a zerolog.Logger. All levels funnel
// through a single emit path so trace correlation and field handling cannot
// drift between levels.
type zerologAdapter struct {
	zl zerolog.Logger
}

// NewZerologAdapter creates a Logger writing to stderr, either as JSON or as
// a console-friendly stream.
func NewZerologAdapter(level zerolog.Level, pretty bool) Logger {
	out := io.Writer(os.Stderr)
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return NewWithOutput(level, out)
}

// NewWithOutput creates a Logger writing JSON to out. Used directly in tests
// and by deployments that redirect logs.
func NewWithOutput(level zerolog.Level, out io.Writer) Logger {
	return &zerologAdapter{zl: zerolog.New(out).Level(level).With().Timestamp().Logger()}
}

// emit attaches the error, the span identity from ctx, and the caller's
// fields to a single event at the given level.
func (z *zerologAdapter) emit(ctx context.Context, level zerolog.Level, msg string, err error, fields []map[string]interface{}) {
	event := z.zl.WithLevel(level)
	if err != nil {
		event = event.Err(err)
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event = event.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	for _, f := range fields {
		event = event.Fields(f)
	}
	event.Msg(msg)
}

func (z *zerologAdapter) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	z.emit(ctx, zerolog.DebugLevel, msg, nil, fields)
}

func (z *zerologAdapter) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	z.emit(ctx, zerolog.InfoLevel, msg, nil, fields)
}

func (z *zerologAdapter) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	z.emit(ctx, zerolog.WarnLevel, msg, nil, fields)
}

func (z *zerologAdapter) Error(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	z.emit(ctx, zerolog.ErrorLevel, msg, err, fields)
}

// Fatal logs and exits. zerolog's WithLevel does not terminate on fatal, so
// this goes through the dedicated constructor.
func (z *zerologAdapter) Fatal(ctx context.Context, msg string, err error, fields ...map[string]interface{}) {
	event := z.zl.Fatal().Err(err)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		event = event.
			Str("trace_id", sc.TraceID().String()).
			Str("span_id", sc.SpanID().String())
	}
	for _, f := range fields {
		event = event.Fields(f)
	}
	event.Msg(msg)
}

// With returns a child Logger whose events always carry fields.
func (z *zerologAdapter) With(fields map[string]interface{}) Logger {
	return &zerologAdapter{zl: z.zl.With().Fields(fields).Logger()}
}
