// Package metrics aggregates local usage counters for the host. Values are
// kept in-process behind a manual reader so they can be shown to the user and,
// when telemetry is enabled, reported through the event emitter.
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/socialchef/beacon/internal/config"
	"github.com/socialchef/beacon/internal/registry"
	"github.com/socialchef/beacon/internal/telemetry"
)

const meterName = "github.com/socialchef/beacon/usage"

type Collector struct {
	reader    *sdkmetric.ManualReader
	provider  *sdkmetric.MeterProvider
	meter     metric.Meter
	startedAt time.Time

	mu          sync.Mutex
	initialised bool
	attrs       []attribute.KeyValue
}

func New() *Collector {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return &Collector{
		reader:    reader,
		provider:  provider,
		meter:     provider.Meter(meterName),
		startedAt: time.Now(),
	}
}

// MeterProvider is where other components record usage instruments.
func (c *Collector) MeterProvider() metric.MeterProvider {
	return c.provider
}

// Initialise registers the usage instruments. It reads the host configuration
// from reg (required) and derives the destination gauge from the registered
// emitter, if any. Calling it again is a no-op.
func (c *Collector) Initialise(reg *registry.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialised {
		return nil
	}

	cfg := registry.MustGet[*config.Config](reg)
	c.attrs = []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Env),
	}
	attrs := metric.WithAttributes(c.attrs...)

	_, err := c.meter.Float64ObservableGauge(
		"session.uptime",
		metric.WithDescription("Time since the telemetry subsystem started"),
		metric.WithUnit("s"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(time.Since(c.startedAt).Seconds(), attrs)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	_, err = c.meter.Int64ObservableGauge(
		"telemetry.destination.configured",
		metric.WithDescription("1 when usage events have a destination"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			var v int64
			if e, ok := registry.Get[telemetry.Emitter](reg); ok && e.Destination() != nil {
				v = 1
			}
			o.Observe(v, attrs)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	errorReporting := int64(0)
	if cfg.Telemetry.ErrorReportingEnabled {
		errorReporting = 1
	}
	_, err = c.meter.Int64ObservableGauge(
		"error_reporting.enabled",
		metric.WithDescription("1 when the user opted in to error reporting"),
		metric.WithUnit("1"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(errorReporting, attrs)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	if err := runtime.Start(runtime.WithMeterProvider(c.provider)); err != nil {
		return fmt.Errorf("failed to start runtime metrics: %w", err)
	}

	c.initialised = true
	return nil
}

// Snapshot collects current values keyed by instrument name. Sums and gauges
// are totalled across attribute sets; histograms contribute name.count and name.sum.
func (c *Collector) Snapshot(ctx context.Context) (map[string]float64, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += float64(dp.Value)
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += float64(dp.Value)
				}
			case metricdata.Gauge[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Histogram[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name+".count"] += float64(dp.Count)
					out[m.Name+".sum"] += float64(dp.Sum)
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					out[m.Name+".count"] += float64(dp.Count)
					out[m.Name+".sum"] += dp.Sum
				}
			}
		}
	}
	return out, nil
}

// Report emits the current snapshot as a single "metrics.snapshot" event.
func (c *Collector) Report(ctx context.Context, emitter telemetry.Emitter) error {
	snapshot, err := c.Snapshot(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	attrs := make(map[string]string, len(snapshot)+len(c.attrs))
	for _, kv := range c.attrs {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	c.mu.Unlock()
	for name, v := range snapshot {
		attrs["metric."+name] = telemetry.FormatValue(v)
	}

	return emitter.Emit(ctx, telemetry.Event{
		Category:   "metrics",
		Action:     "snapshot",
		Value:      float64(len(snapshot)),
		Attributes: attrs,
	})
}

func (c *Collector) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}
