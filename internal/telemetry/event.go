package telemetry

import (
	"errors"
	"sort"
	"strconv"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

// Event is a structured usage event.
type Event struct {
	Category   string
	Action     string
	Label      string
	Property   string
	Value      float64
	Attributes map[string]string
	// Timestamp defaults to the emit time.
	Timestamp time.Time
}

var errIncompleteEvent = errors.New("telemetry: event category and action are required")

func (e Event) validate() error {
	if e.Category == "" || e.Action == "" {
		return errIncompleteEvent
	}
	return nil
}

// Name is the event's "category.action" identifier.
func (e Event) Name() string {
	return e.Category + "." + e.Action
}

func (e Event) record(sessionID string) otellog.Record {
	rec := otellog.Record{}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetObservedTimestamp(time.Now().UTC())
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue(e.Name()))

	rec.AddAttributes(
		otellog.String("event.category", e.Category),
		otellog.String("event.action", e.Action),
		otellog.String("session.id", sessionID),
	)
	if e.Label != "" {
		rec.AddAttributes(otellog.String("event.label", e.Label))
	}
	if e.Property != "" {
		rec.AddAttributes(otellog.String("event.property", e.Property))
	}
	if e.Value != 0 {
		rec.AddAttributes(otellog.Float64("event.value", e.Value))
	}

	keys := make([]string, 0, len(e.Attributes))
	for k := range e.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.AddAttributes(otellog.String(k, e.Attributes[k]))
	}
	return rec
}

// FormatValue renders v the way numeric event attributes are written.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
