package subsystem

import (
	"context"

	"github.com/socialchef/beacon/internal/config"
	"github.com/socialchef/beacon/internal/registry"
	"github.com/socialchef/beacon/internal/telemetry"
)

// attachAppender always registers the error-reporting appender on the root
// logger, and starts it only when the user enabled error reporting and gave a
// destination.
func (t *Telemetry) attachAppender(ctx context.Context, reg *registry.Context) {
	cfg := registry.MustGet[*config.Config](reg)
	tc := cfg.Telemetry
	optedIn := tc.ErrorReportingEnabled && tc.ErrorReportingDestination != ""

	opts := []telemetry.AppenderOption{
		telemetry.WithMinLevel(cfg.ErrorReportingMinLevel()),
		telemetry.WithAppenderHeaders(cfg.Headers()),
		telemetry.WithAppenderProcessorFactory(t.newProcessor),
	}
	if res, err := serviceResource(cfg); err == nil {
		opts = append(opts, telemetry.WithAppenderResource(res))
	}
	if optedIn && tc.SentryDSN != "" {
		reporter, err := t.newReporter(cfg)
		if err != nil {
			t.log.Error("Failed to init Sentry", "error", err)
		} else if reporter != nil {
			opts = append(opts, telemetry.WithErrorReporter(reporter))
		}
	}

	t.appender = telemetry.NewLogAppender(opts...)
	t.root.AddAppender(t.appender)

	if !optedIn {
		t.log.Debug("Error reporting disabled",
			"enabled", tc.ErrorReportingEnabled,
			"destination_set", tc.ErrorReportingDestination != "",
		)
		return
	}

	t.appender.AddDestination(tc.ErrorReportingDestination)
	if err := t.appender.Start(ctx); err != nil {
		t.log.Error("Failed to start error reporting", append([]any{"destination", tc.ErrorReportingDestination}, errorAttrs(err)...)...)
		return
	}
	t.log.Info("Error reporting started", "destination", tc.ErrorReportingDestination)
}
