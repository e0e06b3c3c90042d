// Package observe provides application-wide observability primitives for
// voxtask: OpenTelemetry metrics and the SDK provider setup.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all voxtask metrics.
const meterName = "github.com/voxtask/voxtask"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// DispatchDuration tracks end-to-end command dispatch latency.
	DispatchDuration metric.Float64Histogram

	// TranscriptionDuration tracks speech-to-text transcription latency.
	TranscriptionDuration metric.Float64Histogram

	// IntentClassifications counts classifications. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("source", "pattern"|"llm")
	IntentClassifications metric.Int64Counter

	// DispatchOutcomes counts dispatch results. Use with attributes:
	//   attribute.String("intent", ...), attribute.String("outcome", ...)
	DispatchOutcomes metric.Int64Counter

	// StoreErrors counts persistence failures by operation.
	StoreErrors metric.Int64Counter

	// ActiveConnections tracks the number of live WebSocket sessions.
	ActiveConnections metric.Int64UpDownCounter

	// HTTPRequestDuration tracks HTTP request processing time. Use with
	// attributes: attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// voice-command latencies, which are dominated by the external AI calls.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.DispatchDuration, err = m.Float64Histogram("voxtask.dispatch.duration",
		metric.WithDescription("End-to-end command dispatch latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("voxtask.stt.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	if met.IntentClassifications, err = m.Int64Counter("voxtask.intent.classifications",
		metric.WithDescription("Total intent classifications by intent and source."),
	); err != nil {
		return nil, err
	}
	if met.DispatchOutcomes, err = m.Int64Counter("voxtask.dispatch.outcomes",
		metric.WithDescription("Total dispatch results by intent and outcome."),
	); err != nil {
		return nil, err
	}
	if met.StoreErrors, err = m.Int64Counter("voxtask.store.errors",
		metric.WithDescription("Total persistence failures by operation."),
	); err != nil {
		return nil, err
	}

	if met.ActiveConnections, err = m.Int64UpDownCounter("voxtask.active_connections",
		metric.WithDescription("Number of live WebSocket sessions."),
	); err != nil {
		return nil, err
	}

	if met.HTTPRequestDuration, err = m.Float64Histogram("voxtask.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordClassification records one intent classification.
func (m *Metrics) RecordClassification(ctx context.Context, intent, source string) {
	m.IntentClassifications.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("source", source),
		),
	)
}

// RecordOutcome records one dispatch result.
func (m *Metrics) RecordOutcome(ctx context.Context, intent, outcome string) {
	m.DispatchOutcomes.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("intent", intent),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordStoreError records one persistence failure.
func (m *Metrics) RecordStoreError(ctx context.Context, op string) {
	m.StoreErrors.Add(ctx, 1,
		metric.WithAttributes(attribute.String("op", op)),
	)
}
