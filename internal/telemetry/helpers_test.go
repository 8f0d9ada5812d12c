package telemetry

import (
	"context"
	"errors"
	"net/url"
	"sync"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// memoryExporter keeps exported records in memory.
type memoryExporter struct {
	mu          sync.Mutex
	records     []sdklog.Record
	shutdowns   int
	shutdownErr error
}

func (e *memoryExporter) Export(_ context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *memoryExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shutdowns++
	return e.shutdownErr
}

func (e *memoryExporter) ForceFlush(context.Context) error { return nil }

func (e *memoryExporter) all() []sdklog.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]sdklog.Record(nil), e.records...)
}

func (e *memoryExporter) shutdownCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdowns
}

// memoryFactory routes every destination to exp and records which ones were requested.
func memoryFactory(exp *memoryExporter, seen *[]string) ProcessorFactory {
	var mu sync.Mutex
	return func(_ context.Context, dest *url.URL, _ map[string]string) (sdklog.Processor, error) {
		mu.Lock()
		defer mu.Unlock()
		if seen != nil {
			*seen = append(*seen, dest.String())
		}
		return sdklog.NewSimpleProcessor(exp), nil
	}
}

func failingFactory(context.Context, *url.URL, map[string]string) (sdklog.Processor, error) {
	return nil, errors.New("exporter unavailable")
}

func attrsOf(r sdklog.Record) map[string]string {
	m := make(map[string]string, r.AttributesLen())
	r.WalkAttributes(func(kv otellog.KeyValue) bool {
		m[kv.Key] = kv.Value.String()
		return true
	})
	return m
}

func mustURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}
