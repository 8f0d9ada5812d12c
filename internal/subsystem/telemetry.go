package subsystem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/socialchef/beacon/internal/config"
	apperrors "github.com/socialchef/beacon/internal/errors"
	"github.com/socialchef/beacon/internal/httpclient"
	"github.com/socialchef/beacon/internal/logger"
	"github.com/socialchef/beacon/internal/metrics"
	"github.com/socialchef/beacon/internal/registry"
	"github.com/socialchef/beacon/internal/sentry"
	"github.com/socialchef/beacon/internal/telemetry"
)

const exportTimeout = 30 * time.Second

// EmitterFactory builds the subsystem's event emitter. mp is the metrics
// collector's meter provider.
type EmitterFactory func(reg *registry.Context, mp metric.MeterProvider) (telemetry.Emitter, error)

// ReporterFactory builds the optional Sentry reporter for error reporting.
// It returns a nil reporter when none is configured.
type ReporterFactory func(cfg *config.Config) (telemetry.ErrorReporter, error)

// Telemetry sets up the usage-event emitter, the metrics collector and the
// error-reporting appender, honouring the user's opt-in settings.
//
// The emitter and collector are published into the registry during
// PreInitialise. The host must have put a *config.Config into the registry
// before PostInitialise runs.
type Telemetry struct {
	root *logger.Root
	log  *slog.Logger

	newEmitter       EmitterFactory
	newReporter      ReporterFactory
	processorFactory telemetry.ProcessorFactory

	// Per start/stop cycle.
	newProcessor telemetry.ProcessorFactory
	reg          *registry.Context
	metrics      *metrics.Collector
	emitter      telemetry.Emitter
	appender     *telemetry.LogAppender
	redirected   bool
	stopped      bool
}

type TelemetryOption func(*Telemetry)

func WithEmitterFactory(f EmitterFactory) TelemetryOption {
	return func(t *Telemetry) { t.newEmitter = f }
}

func WithReporterFactory(f ReporterFactory) TelemetryOption {
	return func(t *Telemetry) { t.newReporter = f }
}

// WithProcessorFactory replaces the OTLP export pipeline of both the default
// emitter and the appender.
func WithProcessorFactory(f telemetry.ProcessorFactory) TelemetryOption {
	return func(t *Telemetry) { t.processorFactory = f }
}

func NewTelemetry(root *logger.Root, opts ...TelemetryOption) *Telemetry {
	t := &Telemetry{
		root:        root,
		log:         root.With("subsystem", "telemetry"),
		newReporter: sentryReporter,
	}
	t.newEmitter = t.defaultEmitter
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Telemetry) Name() string {
	return "Telemetry"
}

// PreInitialise creates the metrics collector and an inert emitter and
// publishes both. An emitter build failure is fatal. Each call starts a fresh
// cycle, so the subsystem can be started again after Shutdown.
func (t *Telemetry) PreInitialise(reg *registry.Context) error {
	t.reg = reg
	t.emitter = nil
	t.appender = nil
	t.redirected = false
	t.stopped = false

	t.metrics = metrics.New()
	registry.Put(reg, t.metrics)

	t.newProcessor = t.processorFactory
	if t.newProcessor == nil {
		client := httpclient.New(exportTimeout, t.metrics.MeterProvider(), userAgent(reg))
		t.newProcessor = telemetry.NewOTLPProcessorFactory(client)
	}

	emitter, err := t.newEmitter(reg, t.metrics.MeterProvider())
	if err != nil {
		registry.Remove[*metrics.Collector](reg)
		_ = t.metrics.Shutdown(context.Background())
		return apperrors.NewInternalError("failed to build telemetry emitter", err)
	}
	t.emitter = emitter
	registry.Put(reg, t.emitter)
	return nil
}

// PostInitialise initialises the collector, attaches the error-reporting
// appender and applies the configured telemetry destination, in that order.
func (t *Telemetry) PostInitialise(ctx context.Context, reg *registry.Context) error {
	if err := t.metrics.Initialise(reg); err != nil {
		return fmt.Errorf("failed to initialise metrics: %w", err)
	}
	t.attachAppender(ctx, reg)
	t.resolveDestination(reg)
	return nil
}

// Shutdown detaches the appender, reports a last metrics snapshot if events
// were being sent, and closes the emitter. Only the first call after a start
// has an effect.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.stopped || t.emitter == nil {
		return nil
	}
	t.stopped = true

	var errs []error
	if t.appender != nil {
		t.root.RemoveAppender(t.appender)
		if err := t.appender.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if t.redirected {
		if err := t.metrics.Report(ctx, t.emitter); err != nil {
			t.log.Warn("Failed to report final metrics", "error", err)
		}
	}

	if err := t.emitter.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := t.metrics.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown metrics: %w", err))
	}

	registry.Remove[telemetry.Emitter](t.reg)
	registry.Remove[*metrics.Collector](t.reg)
	return errors.Join(errs...)
}

func (t *Telemetry) defaultEmitter(reg *registry.Context, mp metric.MeterProvider) (telemetry.Emitter, error) {
	b := telemetry.NewEmitterBuilder().
		WithMeterProvider(mp).
		WithProcessorFactory(t.newProcessor)
	if cfg, ok := registry.Get[*config.Config](reg); ok {
		res, err := serviceResource(cfg)
		if err != nil {
			return nil, err
		}
		b = b.WithResource(res).WithHeaders(cfg.Headers())
	}
	return b.Build()
}

func userAgent(reg *registry.Context) string {
	cfg, ok := registry.Get[*config.Config](reg)
	if !ok {
		return ""
	}
	return cfg.ServiceName + "/" + cfg.ServiceVersion
}

func sentryReporter(cfg *config.Config) (telemetry.ErrorReporter, error) {
	r, err := sentry.New(cfg.Telemetry.SentryDSN, cfg.Env, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil || r == nil {
		return nil, err
	}
	return r, nil
}

func serviceResource(cfg *config.Config) (*resource.Resource, error) {
	return telemetry.NewResource(context.Background(), cfg.ServiceName, cfg.ServiceVersion, cfg.Env)
}
