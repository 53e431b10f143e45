// Package observe provides application-wide observability primitives for
// voxlead: OpenTelemetry metrics, distributed tracing, and HTTP middleware
// that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still
// be scraped via the standard /metrics endpoint. A package-level default
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

// meterName is the instrumentation scope name used for all voxlead metrics.
const meterName = "github.com/voxlead/voxlead"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// RecordingDuration tracks how long a capture session records audio,
	// from acquisition to stop.
	RecordingDuration metric.Float64Histogram

	// TranscriptionDuration tracks how long transcript finalisation takes
	// after recording stops.
	TranscriptionDuration metric.Float64Histogram

	// ExtractionDuration tracks LLM entity extraction latency.
	ExtractionDuration metric.Float64Histogram

	// CommitDuration tracks lead store append latency.
	CommitDuration metric.Float64Histogram

	// --- Counters ---

	// Commits counts committed leads. Use with attribute:
	//   attribute.String("language", ...)
	Commits metric.Int64Counter

	// Cancellations counts sessions abandoned by the user, by phase.
	Cancellations metric.Int64Counter

	// PhaseFailures counts pipeline failures. Use with attributes:
	//   attribute.String("phase", ...), attribute.String("reason", ...)
	PhaseFailures metric.Int64Counter

	// --- Gauges ---

	// ActiveCaptures tracks the number of live capture sessions (0 or 1
	// under the single-session policy, but recorded as a gauge regardless).
	ActiveCaptures metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) spanning
// sub-second extraction calls up to multi-minute dictations.
var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 180,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.RecordingDuration, err = m.Float64Histogram("voxlead.recording.duration",
		metric.WithDescription("Duration of audio recording per capture session."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("voxlead.transcription.duration",
		metric.WithDescription("Latency of transcript finalisation after recording stops."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ExtractionDuration, err = m.Float64Histogram("voxlead.extraction.duration",
		metric.WithDescription("Latency of LLM entity extraction."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.CommitDuration, err = m.Float64Histogram("voxlead.commit.duration",
		metric.WithDescription("Latency of lead store append."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Commits, err = m.Int64Counter("voxlead.leads.committed",
		metric.WithDescription("Total leads committed, by dictation language."),
	); err != nil {
		return nil, err
	}
	if met.Cancellations, err = m.Int64Counter("voxlead.captures.cancelled",
		metric.WithDescription("Total capture sessions cancelled by the user, by phase."),
	); err != nil {
		return nil, err
	}
	if met.PhaseFailures, err = m.Int64Counter("voxlead.phase.failures",
		metric.WithDescription("Total pipeline failures by phase and reason."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActiveCaptures, err = m.Int64UpDownCounter("voxlead.active_captures",
		metric.WithDescription("Number of live capture sessions."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("voxlead.http.request.duration",
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordCommit records one committed lead.
func (m *Metrics) RecordCommit(ctx context.Context, language string) {
	m.Commits.Add(ctx, 1,
		metric.WithAttributes(attribute.String("language", language)),
	)
}

// RecordCancellation records a user-cancelled capture with the phase it was
// abandoned in.
func (m *Metrics) RecordCancellation(ctx context.Context, phase string) {
	m.Cancellations.Add(ctx, 1,
		metric.WithAttributes(attribute.String("phase", phase)),
	)
}

// RecordPhaseFailure records a pipeline failure with the standard attribute
// set.
func (m *Metrics) RecordPhaseFailure(ctx context.Context, phase, reason string) {
	m.PhaseFailures.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("phase", phase),
			attribute.String("reason", reason),
		),
	)
}
