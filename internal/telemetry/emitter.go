package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"

	apperrors "github.com/socialchef/beacon/internal/errors"
)

const (
	emitterScope = "github.com/socialchef/beacon/telemetry/emitter"

	// swapTimeout bounds the flush of the previous pipeline after a destination change.
	swapTimeout = 5 * time.Second
)

// Emitter transmits structured telemetry events. Implementations are safe for
// concurrent use. SetDestination reconfigures the emitter in place, so every
// holder of the value sees the new destination.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
	SetDestination(dest *url.URL) error
	Destination() *url.URL
	Close(ctx context.Context) error
}

// OTLPEmitter exports events as OTel log records. Without a destination it is
// inert: events are counted as dropped and discarded.
type OTLPEmitter struct {
	sessionID    string
	res          *resource.Resource
	headers      map[string]string
	newProcessor ProcessorFactory

	emitted metric.Int64Counter
	dropped metric.Int64Counter

	mu       sync.RWMutex
	dest     *url.URL
	provider *sdklog.LoggerProvider
	logger   otellog.Logger
	closed   bool
}

// EmitterBuilder configures an OTLPEmitter. Every setting is optional.
type EmitterBuilder struct {
	res           *resource.Resource
	headers       map[string]string
	newProcessor  ProcessorFactory
	meterProvider metric.MeterProvider
}

func NewEmitterBuilder() *EmitterBuilder {
	return &EmitterBuilder{}
}

func (b *EmitterBuilder) WithResource(res *resource.Resource) *EmitterBuilder {
	b.res = res
	return b
}

func (b *EmitterBuilder) WithHeaders(headers map[string]string) *EmitterBuilder {
	b.headers = headers
	return b
}

func (b *EmitterBuilder) WithProcessorFactory(f ProcessorFactory) *EmitterBuilder {
	b.newProcessor = f
	return b
}

// WithMeterProvider sets where the emitted/dropped counters are recorded.
func (b *EmitterBuilder) WithMeterProvider(mp metric.MeterProvider) *EmitterBuilder {
	b.meterProvider = mp
	return b
}

func (b *EmitterBuilder) Build() (*OTLPEmitter, error) {
	mp := b.meterProvider
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(emitterScope)

	emitted, err := meter.Int64Counter(
		"telemetry.events.emitted",
		metric.WithDescription("Telemetry events handed to the export pipeline"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}
	dropped, err := meter.Int64Counter(
		"telemetry.events.dropped",
		metric.WithDescription("Telemetry events discarded because no destination is configured"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	newProcessor := b.newProcessor
	if newProcessor == nil {
		newProcessor = OTLPProcessorFactory
	}

	e := &OTLPEmitter{
		sessionID:    uuid.NewString(),
		res:          b.res,
		headers:      b.headers,
		newProcessor: newProcessor,
		emitted:      emitted,
		dropped:      dropped,
	}
	return e, nil
}

// SessionID identifies this emitter's events.
func (e *OTLPEmitter) SessionID() string {
	return e.sessionID
}

// Emit hands event to the export pipeline. It does not wait for delivery.
func (e *OTLPEmitter) Emit(ctx context.Context, event Event) error {
	if err := event.validate(); err != nil {
		return err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return apperrors.ErrEmitterClosed
	}
	category := metric.WithAttributes(attribute.String("category", event.Category))
	if e.logger == nil {
		e.dropped.Add(ctx, 1, category)
		return nil
	}
	e.logger.Emit(ctx, event.record(e.sessionID))
	e.emitted.Add(ctx, 1, category)
	return nil
}

// SetDestination points the emitter at dest. The new pipeline is built before
// the old one is released, so on error the emitter is left unchanged. Once the
// swap is done a failure to flush the previous pipeline is only logged.
func (e *OTLPEmitter) SetDestination(dest *url.URL) error {
	if dest == nil {
		return apperrors.NewMalformedDestinationError("", fmt.Errorf("nil destination"))
	}

	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return apperrors.ErrEmitterClosed
	}

	provider, err := e.newProvider(dest)
	if err != nil {
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = shutdownProvider(provider)
		return apperrors.ErrEmitterClosed
	}
	old := e.provider
	e.provider = provider
	e.logger = provider.Logger(emitterScope)
	e.dest = cloneURL(dest)
	e.mu.Unlock()

	if old != nil {
		if err := shutdownProvider(old); err != nil {
			slog.Warn("Failed to flush previous telemetry destination", "destination", dest.String(), "error", err)
		}
	}
	return nil
}

// Destination returns a copy of the current destination, or nil when inert.
func (e *OTLPEmitter) Destination() *url.URL {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneURL(e.dest)
}

// Close flushes outstanding events and releases the exporter. Calling Close
// again is a no-op.
func (e *OTLPEmitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	provider := e.provider
	e.provider = nil
	e.logger = nil
	e.mu.Unlock()

	if provider == nil {
		return nil
	}
	if err := provider.Shutdown(ctx); err != nil {
		return fmt.Errorf("close emitter: %w", err)
	}
	return nil
}

func (e *OTLPEmitter) newProvider(dest *url.URL) (*sdklog.LoggerProvider, error) {
	processor, err := e.newProcessor(context.Background(), dest, e.headers)
	if err != nil {
		return nil, err
	}
	opts := []sdklog.LoggerProviderOption{sdklog.WithProcessor(processor)}
	if e.res != nil {
		opts = append(opts, sdklog.WithResource(e.res))
	}
	return sdklog.NewLoggerProvider(opts...), nil
}

func shutdownProvider(p *sdklog.LoggerProvider) error {
	ctx, cancel := context.WithTimeout(context.Background(), swapTimeout)
	defer cancel()
	return p.Shutdown(ctx)
}
