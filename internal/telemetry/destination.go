package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	apperrors "github.com/socialchef/beacon/internal/errors"
)

const defaultLogPath = "/v1/logs"

// ProcessorFactory builds the log processor that ships records to dest.
type ProcessorFactory func(ctx context.Context, dest *url.URL, headers map[string]string) (sdklog.Processor, error)

// ParseDestination parses raw as an absolute URL. Strings without a scheme or
// host (e.g. "not a url") are rejected.
func ParseDestination(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return nil, apperrors.NewMalformedDestinationError(raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, apperrors.NewMalformedDestinationError(raw, errors.New("missing scheme or host"))
	}
	return u, nil
}

// OTLPProcessorFactory is the default ProcessorFactory: an OTLP/HTTP log
// exporter behind a batch processor.
func OTLPProcessorFactory(ctx context.Context, dest *url.URL, headers map[string]string) (sdklog.Processor, error) {
	return NewOTLPProcessorFactory(nil)(ctx, dest, headers)
}

// NewOTLPProcessorFactory is OTLPProcessorFactory with exports sent through
// client. A nil client uses the exporter's own.
func NewOTLPProcessorFactory(client *http.Client) ProcessorFactory {
	return func(ctx context.Context, dest *url.URL, headers map[string]string) (sdklog.Processor, error) {
		return newOTLPProcessor(ctx, client, dest, headers)
	}
}

func newOTLPProcessor(ctx context.Context, client *http.Client, dest *url.URL, headers map[string]string) (sdklog.Processor, error) {
	endpoint, urlPath, insecure, err := exporterTarget(dest)
	if err != nil {
		return nil, err
	}

	opts := []otlploghttp.Option{
		otlploghttp.WithEndpoint(endpoint),
		otlploghttp.WithURLPath(urlPath),
	}
	if client != nil {
		opts = append(opts, otlploghttp.WithHTTPClient(client))
	}
	if len(headers) > 0 {
		opts = append(opts, otlploghttp.WithHeaders(headers))
	}
	if insecure {
		opts = append(opts, otlploghttp.WithInsecure())
	}

	exporter, err := otlploghttp.New(ctx, opts...)
	if err != nil {
		return nil, apperrors.NewExporterError("failed to create OTLP log exporter", err)
	}
	return sdklog.NewBatchProcessor(exporter), nil
}

// exporterTarget splits dest into the host:port and URL path the OTLP exporter
// expects. http destinations are sent without TLS.
func exporterTarget(dest *url.URL) (endpoint, urlPath string, insecure bool, err error) {
	if dest == nil {
		return "", "", false, apperrors.NewMalformedDestinationError("", errors.New("nil destination"))
	}
	switch strings.ToLower(dest.Scheme) {
	case "https":
	case "http":
		insecure = true
	default:
		return "", "", false, apperrors.NewUnsupportedSchemeError(dest.Scheme)
	}
	if dest.Host == "" {
		return "", "", false, apperrors.NewMalformedDestinationError(dest.String(), errors.New("missing host"))
	}

	urlPath = strings.TrimSuffix(dest.Path, "/")
	if urlPath == "" {
		urlPath = defaultLogPath
	}
	return dest.Host, urlPath, insecure, nil
}

func cloneURL(u *url.URL) *url.URL {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
