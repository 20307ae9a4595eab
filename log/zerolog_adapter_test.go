package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	line, err := buf.ReadString('\n')
	require.NoError(t, err)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	return entry
}

func TestZerologAdapter_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(zerolog.DebugLevel, &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug message")
	logger.Info(ctx, "info message", map[string]interface{}{"attempt": 1})
	logger.Warn(ctx, "warn message")
	logger.Error(ctx, "error message", errors.New("boom"))

	entry := decodeLine(t, &buf)
	assert.Equal(t, "debug", entry["level"])
	assert.Equal(t, "debug message", entry["message"])

	entry = decodeLine(t, &buf)
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 1, entry["attempt"])

	entry = decodeLine(t, &buf)
	assert.Equal(t, "warn", entry["level"])

	entry = decodeLine(t, &buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "boom", entry["error"])
}

func TestZerologAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(zerolog.InfoLevel, &buf)

	logger.Debug(context.Background(), "suppressed")
	assert.Zero(t, buf.Len(), "debug below the configured level must not emit")
}

func TestZerologAdapter_With(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(zerolog.InfoLevel, &buf).
		With(map[string]interface{}{"component": "sessions"})

	logger.Info(context.Background(), "first")
	logger.Info(context.Background(), "second")

	for _, want := range []string{"first", "second"} {
		entry := decodeLine(t, &buf)
		assert.Equal(t, "sessions", entry["component"], "child logger fields persist across events")
		assert.Equal(t, want, entry["message"])
	}
}

func TestZerologAdapter_TraceCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithOutput(zerolog.InfoLevel, &buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	logger.Info(ctx, "traced")
	entry := decodeLine(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])

	logger.Info(context.Background(), "untraced")
	entry = decodeLine(t, &buf)
	assert.NotContains(t, entry, "trace_id", "no span in context means no trace fields")
}
