// Package telemetry provides the consent-gated telemetry channels of the host:
// an event emitter that ships structured usage events, and a log appender that
// ships log records to an error-reporting endpoint.
//
// Both channels export OpenTelemetry log records over OTLP/HTTP. They start
// inert and only ship once a destination has been configured.
package telemetry
