package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

type fakeReporter struct {
	mu      sync.Mutex
	reports []string
	tags    []map[string]string
	flushes int
}

func (r *fakeReporter) Report(_ context.Context, message string, _ slog.Level, tags map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, message)
	r.tags = append(r.tags, tags)
}

func (r *fakeReporter) Flush(time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flushes++
	return true
}

func startedAppender(t *testing.T, exp *memoryExporter, opts ...AppenderOption) *LogAppender {
	t.Helper()
	opts = append([]AppenderOption{WithAppenderProcessorFactory(memoryFactory(exp, nil))}, opts...)
	a := NewLogAppender(opts...)
	a.AddDestination("http://logs.example.com/ingest")
	require.NoError(t, a.Start(context.Background()))
	t.Cleanup(func() { _ = a.Stop(context.Background()) })
	return a
}

func TestLogAppenderUnstartedShipsNothing(t *testing.T) {
	exp := &memoryExporter{}
	a := NewLogAppender(WithAppenderProcessorFactory(memoryFactory(exp, nil)))
	a.AddDestination("http://logs.example.com/ingest")

	assert.False(t, a.IsStarted())
	assert.False(t, a.Enabled(context.Background(), slog.LevelError))

	slog.New(a).Error("should not ship")
	assert.Empty(t, exp.all())
	assert.Equal(t, []string{"http://logs.example.com/ingest"}, a.Destinations())
}

func TestLogAppenderShipsAtOrAboveMinLevel(t *testing.T) {
	exp := &memoryExporter{}
	a := startedAppender(t, exp)
	log := slog.New(a)

	log.Info("below threshold")
	log.Warn("disk low", "free_mb", 5)

	records := exp.all()
	require.Len(t, records, 1)
	assert.Equal(t, "disk low", records[0].Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, records[0].Severity())
	assert.Equal(t, "WARN", records[0].SeverityText())
	assert.Equal(t, "5", attrsOf(records[0])["free_mb"])
}

func TestLogAppenderCustomMinLevel(t *testing.T) {
	exp := &memoryExporter{}
	a := startedAppender(t, exp, WithMinLevel(slog.LevelError))

	assert.False(t, a.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, a.Enabled(context.Background(), slog.LevelError))
}

func TestLogAppenderAttrsAndGroups(t *testing.T) {
	exp := &memoryExporter{}
	a := startedAppender(t, exp)

	slog.New(a).With("component", "engine").WithGroup("req").Error("failed", "id", "abc")

	records := exp.all()
	require.Len(t, records, 1)
	attrs := attrsOf(records[0])
	assert.Equal(t, "engine", attrs["component"])
	assert.Equal(t, "abc", attrs["req.id"])
}

func TestLogAppenderStartRequiresDestination(t *testing.T) {
	a := NewLogAppender()
	assert.Error(t, a.Start(context.Background()))
	assert.False(t, a.IsStarted())
}

func TestLogAppenderStartRejectsBadDestination(t *testing.T) {
	exp := &memoryExporter{}
	a := NewLogAppender(WithAppenderProcessorFactory(memoryFactory(exp, nil)))
	a.AddDestination("http://logs.example.com/ingest")
	a.AddDestination("not a url")

	require.Error(t, a.Start(context.Background()))
	assert.False(t, a.IsStarted())
	assert.Equal(t, 1, exp.shutdownCount(), "already built pipelines should be released")
}

func TestLogAppenderStartPropagatesFactoryError(t *testing.T) {
	a := NewLogAppender(WithAppenderProcessorFactory(failingFactory))
	a.AddDestination("http://logs.example.com/ingest")

	assert.Error(t, a.Start(context.Background()))
	assert.False(t, a.IsStarted())
}

func TestLogAppenderStop(t *testing.T) {
	exp := &memoryExporter{}
	rep := &fakeReporter{}
	a := NewLogAppender(WithAppenderProcessorFactory(memoryFactory(exp, nil)), WithErrorReporter(rep))
	a.AddDestination("http://logs.example.com/ingest")
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Start(context.Background()), "second Start is a no-op")

	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))

	assert.False(t, a.IsStarted())
	assert.Equal(t, 1, exp.shutdownCount())
	assert.Equal(t, 1, rep.flushes)

	slog.New(a).Error("after stop")
	assert.Empty(t, exp.all())
}

func TestLogAppenderReportsErrors(t *testing.T) {
	exp := &memoryExporter{}
	rep := &fakeReporter{}
	a := startedAppender(t, exp, WithErrorReporter(rep))

	log := slog.New(a).With("subsystem", "telemetry")
	log.Warn("only shipped")
	log.Error("reported", "destination", "x")

	assert.Len(t, exp.all(), 2)
	require.Equal(t, []string{"reported"}, rep.reports)
	assert.Equal(t, "telemetry", rep.tags[0]["subsystem"])
	assert.Equal(t, "x", rep.tags[0]["destination"])
}

func TestToOTelValue(t *testing.T) {
	tests := []struct {
		name string
		in   slog.Value
		want otellog.Kind
	}{
		{"string", slog.StringValue("a"), otellog.KindString},
		{"int", slog.IntValue(1), otellog.KindInt64},
		{"uint", slog.Uint64Value(1), otellog.KindInt64},
		{"bool", slog.BoolValue(true), otellog.KindBool},
		{"float", slog.Float64Value(1.5), otellog.KindFloat64},
		{"duration", slog.DurationValue(time.Second), otellog.KindInt64},
		{"time", slog.TimeValue(time.Now()), otellog.KindString},
		{"group", slog.GroupValue(slog.String("k", "v")), otellog.KindMap},
		{"any", slog.AnyValue(struct{ X int }{1}), otellog.KindString},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, toOTelValue(tt.in).Kind())
		})
	}
}
