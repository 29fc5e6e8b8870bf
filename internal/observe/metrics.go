// Package observe wires metrics export for the engine: an OTel meter
// provider bridged to Prometheus, the instrument set, and HTTP middleware.
package observe

import (
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// meterName namespaces the engine's instruments.
const meterName = "github.com/kalima-ai/kalima"

// latencyBuckets covers the expected resolve/request range: dictionary hits
// land well under a millisecond, fuzzy scans over a large pack can take tens
// of milliseconds.
var latencyBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1,
}

// Metrics is the engine's instrument set. Construct with [NewMetrics] or use
// [DefaultMetrics].
type Metrics struct {
	// ResolveDuration measures one full Process call, in seconds,
	// partitioned by gate action.
	ResolveDuration metric.Float64Histogram

	// StageHits counts which cascade stage settled each utterance,
	// partitioned by stage.
	StageHits metric.Int64Counter

	// GateDecisions counts execute/clarify/fallback outcomes.
	GateDecisions metric.Int64Counter

	// DictionaryReloads counts pack reload attempts, partitioned by outcome.
	DictionaryReloads metric.Int64Counter

	// ActiveSessions tracks the live session count.
	ActiveSessions metric.Int64Gauge

	// HTTPRequestDuration measures HTTP handler latency, in seconds.
	HTTPRequestDuration metric.Float64Histogram
}

// NewMetrics creates the instrument set on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.ResolveDuration, err = meter.Float64Histogram(
		"kalima.resolve.duration",
		metric.WithDescription("Full utterance processing duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, fmt.Errorf("observe: create resolve duration histogram: %w", err)
	}

	if m.StageHits, err = meter.Int64Counter(
		"kalima.resolve.stage_hits",
		metric.WithDescription("Utterances settled per cascade stage"),
	); err != nil {
		return nil, fmt.Errorf("observe: create stage hits counter: %w", err)
	}

	if m.GateDecisions, err = meter.Int64Counter(
		"kalima.gate.decisions",
		metric.WithDescription("Confidence gate outcomes"),
	); err != nil {
		return nil, fmt.Errorf("observe: create gate decisions counter: %w", err)
	}

	if m.DictionaryReloads, err = meter.Int64Counter(
		"kalima.dictionary.reloads",
		metric.WithDescription("Dictionary pack reload attempts"),
	); err != nil {
		return nil, fmt.Errorf("observe: create dictionary reloads counter: %w", err)
	}

	if m.ActiveSessions, err = meter.Int64Gauge(
		"kalima.sessions.active",
		metric.WithDescription("Live dialog sessions"),
	); err != nil {
		return nil, fmt.Errorf("observe: create active sessions gauge: %w", err)
	}

	if m.HTTPRequestDuration, err = meter.Float64Histogram(
		"kalima.http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, fmt.Errorf("observe: create http duration histogram: %w", err)
	}

	return m, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics lazily builds the instrument set on the global meter
// provider. Instrument creation on the SDK provider cannot fail; a failure
// here means the no-op provider misbehaved, which is a programming error.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		m, err := NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic(fmt.Sprintf("observe: default metrics: %v", err))
		}
		defaultMetrics = m
	})
	return defaultMetrics
}
