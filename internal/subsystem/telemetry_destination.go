package subsystem

import (
	"errors"

	"github.com/socialchef/beacon/internal/config"
	apperrors "github.com/socialchef/beacon/internal/errors"
	"github.com/socialchef/beacon/internal/registry"
	"github.com/socialchef/beacon/internal/telemetry"
)

// resolveDestination points the emitter at the configured telemetry
// destination when the user enabled telemetry. A destination that does not
// parse, or that the emitter rejects, is logged and the emitter keeps its
// previous destination.
func (t *Telemetry) resolveDestination(reg *registry.Context) {
	cfg := registry.MustGet[*config.Config](reg)
	tc := cfg.Telemetry
	if !tc.TelemetryEnabled || tc.TelemetryDestination == "" {
		return
	}

	dest, err := telemetry.ParseDestination(tc.TelemetryDestination)
	if err != nil {
		t.log.Error("URL malformed", append([]any{"destination", tc.TelemetryDestination}, errorAttrs(err)...)...)
		return
	}
	if err := t.emitter.SetDestination(dest); err != nil {
		t.log.Error("Failed to change telemetry destination", append([]any{"destination", dest.String()}, errorAttrs(err)...)...)
		return
	}
	t.redirected = true
	t.log.Info("Telemetry destination changed", "destination", dest.String())
}

// errorAttrs describes err for the log, including the AppError details when
// err carries one.
func errorAttrs(err error) []any {
	attrs := []any{"error", err}
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return attrs
	}
	attrs = append(attrs,
		"error_type", string(appErr.Type),
		"error_code", appErr.Code(),
		"recoverable", appErr.IsRecoverable(),
	)
	if hint := appErr.RecoverySuggestion(); hint != "" {
		attrs = append(attrs, "hint", hint)
	}
	return attrs
}
