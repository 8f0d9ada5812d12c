package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
)

const (
	appenderScope = "github.com/socialchef/beacon/telemetry/appender"

	reporterFlushTimeout = 2 * time.Second
)

// ErrorReporter receives error-level records in addition to the OTLP export.
type ErrorReporter interface {
	Report(ctx context.Context, message string, level slog.Level, tags map[string]string)
	Flush(timeout time.Duration) bool
}

// LogAppender ships log records to remote error-reporting destinations. It can
// be attached to the root logger at any time but forwards nothing until Start.
type LogAppender struct {
	minLevel     slog.Level
	res          *resource.Resource
	headers      map[string]string
	newProcessor ProcessorFactory
	reporter     ErrorReporter

	mu           sync.RWMutex
	destinations []string
	started      bool
	provider     *sdklog.LoggerProvider
	logger       otellog.Logger
}

type AppenderOption func(*LogAppender)

// WithMinLevel sets the lowest level shipped. Defaults to warn.
func WithMinLevel(l slog.Level) AppenderOption {
	return func(a *LogAppender) { a.minLevel = l }
}

func WithAppenderResource(res *resource.Resource) AppenderOption {
	return func(a *LogAppender) { a.res = res }
}

func WithAppenderHeaders(headers map[string]string) AppenderOption {
	return func(a *LogAppender) { a.headers = headers }
}

func WithAppenderProcessorFactory(f ProcessorFactory) AppenderOption {
	return func(a *LogAppender) {
		if f != nil {
			a.newProcessor = f
		}
	}
}

func WithErrorReporter(r ErrorReporter) AppenderOption {
	return func(a *LogAppender) { a.reporter = r }
}

func NewLogAppender(opts ...AppenderOption) *LogAppender {
	a := &LogAppender{
		minLevel:     slog.LevelWarn,
		newProcessor: OTLPProcessorFactory,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *LogAppender) Name() string {
	return "telemetry-error-reporting"
}

// AddDestination records a destination to ship to once started. The string is
// not validated here; Start rejects destinations it cannot ship to.
func (a *LogAppender) AddDestination(dest string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destinations = append(a.destinations, dest)
}

func (a *LogAppender) Destinations() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.destinations...)
}

func (a *LogAppender) IsStarted() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.started
}

// Start builds one export pipeline per destination and begins shipping. If any
// destination is rejected the appender stays stopped.
func (a *LogAppender) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.started {
		return nil
	}
	if len(a.destinations) == 0 {
		return errors.New("telemetry: appender has no destinations")
	}

	opts := make([]sdklog.LoggerProviderOption, 0, len(a.destinations)+1)
	var built []sdklog.Processor
	for _, raw := range a.destinations {
		dest, err := ParseDestination(raw)
		if err == nil {
			var p sdklog.Processor
			p, err = a.newProcessor(ctx, dest, a.headers)
			if err == nil {
				built = append(built, p)
				opts = append(opts, sdklog.WithProcessor(p))
				continue
			}
		}
		for _, p := range built {
			_ = p.Shutdown(ctx)
		}
		return fmt.Errorf("start appender for %q: %w", raw, err)
	}
	if a.res != nil {
		opts = append(opts, sdklog.WithResource(a.res))
	}

	a.provider = sdklog.NewLoggerProvider(opts...)
	a.logger = a.provider.Logger(appenderScope)
	a.started = true
	return nil
}

// Stop flushes and releases the export pipelines. The appender can be started again.
func (a *LogAppender) Stop(ctx context.Context) error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = false
	provider := a.provider
	a.provider = nil
	a.logger = nil
	a.mu.Unlock()

	if a.reporter != nil {
		a.reporter.Flush(reporterFlushTimeout)
	}
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("stop appender: %w", err)
	}
	return nil
}

func (a *LogAppender) Enabled(_ context.Context, l slog.Level) bool {
	if l < a.minLevel {
		return false
	}
	return a.IsStarted()
}

func (a *LogAppender) Handle(ctx context.Context, r slog.Record) error {
	return (&appenderHandler{app: a}).Handle(ctx, r)
}

func (a *LogAppender) WithAttrs(attrs []slog.Attr) slog.Handler {
	return (&appenderHandler{app: a}).WithAttrs(attrs)
}

func (a *LogAppender) WithGroup(name string) slog.Handler {
	return (&appenderHandler{app: a}).WithGroup(name)
}

// appenderHandler carries attributes and groups from derived loggers.
type appenderHandler struct {
	app    *LogAppender
	attrs  []otellog.KeyValue
	prefix string
}

func (h *appenderHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.app.Enabled(ctx, l)
}

func (h *appenderHandler) Handle(ctx context.Context, r slog.Record) error {
	h.app.mu.RLock()
	started, logger := h.app.started, h.app.logger
	h.app.mu.RUnlock()
	if !started || r.Level < h.app.minLevel {
		return nil
	}

	var rec otellog.Record
	rec.SetTimestamp(r.Time)
	rec.SetBody(otellog.StringValue(r.Message))
	rec.SetSeverity(severity(r.Level))
	rec.SetSeverityText(r.Level.String())
	rec.AddAttributes(h.attrs...)

	var tags map[string]string
	if h.app.reporter != nil && r.Level >= slog.LevelError {
		tags = make(map[string]string, len(h.attrs)+r.NumAttrs())
		for _, kv := range h.attrs {
			tags[kv.Key] = kv.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		kv := otellog.KeyValue{Key: h.prefix + a.Key, Value: toOTelValue(a.Value)}
		rec.AddAttributes(kv)
		if tags != nil {
			tags[kv.Key] = a.Value.String()
		}
		return true
	})

	logger.Emit(ctx, rec)
	if tags != nil {
		h.app.reporter.Report(ctx, r.Message, r.Level, tags)
	}
	return nil
}

func (h *appenderHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &appenderHandler{
		app:    h.app,
		attrs:  make([]otellog.KeyValue, 0, len(h.attrs)+len(attrs)),
		prefix: h.prefix,
	}
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, otellog.KeyValue{Key: h.prefix + a.Key, Value: toOTelValue(a.Value)})
	}
	return next
}

func (h *appenderHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &appenderHandler{app: h.app, attrs: h.attrs, prefix: h.prefix + name + "."}
}

func severity(l slog.Level) otellog.Severity {
	switch {
	case l >= slog.LevelError:
		return otellog.SeverityError
	case l >= slog.LevelWarn:
		return otellog.SeverityWarn
	case l >= slog.LevelInfo:
		return otellog.SeverityInfo
	default:
		return otellog.SeverityDebug
	}
}

func toOTelValue(v slog.Value) otellog.Value {
	switch v.Kind() {
	case slog.KindString:
		return otellog.StringValue(v.String())
	case slog.KindInt64:
		return otellog.Int64Value(v.Int64())
	case slog.KindUint64:
		return otellog.Int64Value(int64(v.Uint64()))
	case slog.KindBool:
		return otellog.BoolValue(v.Bool())
	case slog.KindFloat64:
		return otellog.Float64Value(v.Float64())
	case slog.KindDuration:
		return otellog.Int64Value(v.Duration().Nanoseconds())
	case slog.KindTime:
		return otellog.StringValue(v.Time().Format(time.RFC3339Nano))
	case slog.KindGroup:
		attrs := v.Group()
		kvs := make([]otellog.KeyValue, 0, len(attrs))
		for _, a := range attrs {
			kvs = append(kvs, otellog.KeyValue{Key: a.Key, Value: toOTelValue(a.Value)})
		}
		return otellog.MapValue(kvs...)
	case slog.KindLogValuer:
		return toOTelValue(v.Resolve())
	default:
		if err, ok := v.Any().(error); ok {
			return otellog.StringValue(err.Error())
		}
		return otellog.StringValue(strings.TrimSpace(v.String()))
	}
}
