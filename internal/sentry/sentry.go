package sentry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"go.opentelemetry.io/otel/trace"
)

// Reporter captures error-level log records as Sentry events. It owns its own
// hub so it can be created and torn down with the telemetry subsystem instead
// of living in the process-global hub.
type Reporter struct {
	hub *sentry.Hub
}

// New creates a Reporter with the provided configuration.
// If DSN is empty, nil is returned and error reporting to Sentry is skipped.
func New(dsn, env, serviceName, serviceVersion string) (*Reporter, error) {
	if dsn == "" {
		return nil, nil
	}

	return newReporter(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      env,
		ServerName:       serviceName,
		Release:          serviceVersion,
		AttachStacktrace: true,
		TracesSampleRate: 0.0, // Spans go through OpenTelemetry
	})
}

func newReporter(options sentry.ClientOptions) (*Reporter, error) {
	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	return &Reporter{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Report sends a message to Sentry with the record's attributes as tags.
// Trace and span ids from ctx are added when present.
func (r *Reporter) Report(ctx context.Context, message string, level slog.Level, tags map[string]string) {
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(level))
		scope.SetTags(tags)
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			scope.SetTag("trace_id", sc.TraceID().String())
			scope.SetTag("span_id", sc.SpanID().String())
		}
		r.hub.CaptureMessage(message)
	})
}

// Flush waits for all pending Sentry events to be sent.
func (r *Reporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}

func sentryLevel(l slog.Level) sentry.Level {
	switch {
	case l > slog.LevelError:
		return sentry.LevelFatal
	case l >= slog.LevelError:
		return sentry.LevelError
	case l >= slog.LevelWarn:
		return sentry.LevelWarning
	case l >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
