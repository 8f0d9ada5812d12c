package sentry

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNewEmptyDSN(t *testing.T) {
	r, err := New("", "test", "svc", "1.0.0")
	assert.NoError(t, err)
	assert.Nil(t, r)
}

func TestNewInvalidDSN(t *testing.T) {
	_, err := New("not a dsn", "test", "svc", "1.0.0")
	assert.Error(t, err)
}

func TestReport(t *testing.T) {
	var mu sync.Mutex
	var events []*sentry.Event

	r, err := newReporter(sentry.ClientOptions{
		Dsn: "https://public@sentry.example.com/1",
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, event)
			return nil // drop; nothing leaves the process
		},
	})
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	r.Report(ctx, "disk failure", slog.LevelError, map[string]string{"component": "storage"})
	r.Flush(time.Second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "disk failure", events[0].Message)
	assert.Equal(t, sentry.LevelError, events[0].Level)
	assert.Equal(t, "storage", events[0].Tags["component"])
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", events[0].Tags["trace_id"])
}

func TestSentryLevel(t *testing.T) {
	tests := []struct {
		in   slog.Level
		want sentry.Level
	}{
		{slog.LevelDebug, sentry.LevelDebug},
		{slog.LevelInfo, sentry.LevelInfo},
		{slog.LevelWarn, sentry.LevelWarning},
		{slog.LevelError, sentry.LevelError},
		{slog.LevelError + 4, sentry.LevelFatal},
	}
	for _, tt := range tests {
		t.Run(tt.in.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, sentryLevel(tt.in))
		})
	}
}
