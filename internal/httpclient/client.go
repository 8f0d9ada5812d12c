// Package httpclient builds the HTTP client telemetry exporters ship through.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// DefaultTransport is the base transport used by exporter clients.
var DefaultTransport = http.DefaultTransport

// userAgentTransport stamps every request with a fixed User-Agent.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.userAgent == "" {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}

func newOtelTransport(base http.RoundTripper, mp metric.MeterProvider, userAgent string) http.RoundTripper {
	// Exports must not produce spans of their own, only client metrics.
	return otelhttp.NewTransport(&userAgentTransport{base: base, userAgent: userAgent},
		otelhttp.WithMeterProvider(mp),
		otelhttp.WithTracerProvider(tracenoop.NewTracerProvider()),
	)
}

// New returns a client whose request metrics are recorded on mp.
func New(timeout time.Duration, mp metric.MeterProvider, userAgent string) *http.Client {
	return &http.Client{
		Transport: newOtelTransport(DefaultTransport, mp, userAgent),
		Timeout:   timeout,
	}
}
