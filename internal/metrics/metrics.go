// Package metrics provides Prometheus metrics for the ping engine.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "icmp4a"

	labelFamily = "family"
)

// Metrics contains all Prometheus metrics for the engine.
type Metrics struct {
	// Per-attempt counters, labeled by address family
	RequestsSent    *prometheus.CounterVec
	RepliesReceived *prometheus.CounterVec
	Timeouts        *prometheus.CounterVec
	IOFailures      *prometheus.CounterVec
	ProtocolErrors  *prometheus.CounterVec

	// Round-trip time of successful attempts
	RTTSeconds *prometheus.HistogramVec

	// Live measurement streams
	StreamsActive prometheus.Gauge
	StreamsTotal  prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RequestsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "Total echo requests sent",
		}, []string{labelFamily}),
		RepliesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "replies_received_total",
			Help:      "Total echo replies correlated with a request",
		}, []string{labelFamily}),
		Timeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "timeouts_total",
			Help:      "Total attempts that expired without a reply",
		}, []string{labelFamily}),
		IOFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "io_failures_total",
			Help:      "Total attempts that failed on send, poll or receive",
		}, []string{labelFamily}),
		ProtocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total attempts answered by an ICMP error or undecodable datagram",
		}, []string{labelFamily}),
		RTTSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rtt_seconds",
			Help:      "Round-trip time of successful echo attempts",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{labelFamily}),
		StreamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "streams_active",
			Help:      "Number of ping streams currently running",
		}),
		StreamsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_total",
			Help:      "Total ping streams started",
		}),
	}
}

// StreamStarted records the start of a measurement stream.
func (m *Metrics) StreamStarted() {
	m.StreamsActive.Inc()
	m.StreamsTotal.Inc()
}

// StreamEnded records the end of a measurement stream.
func (m *Metrics) StreamEnded() {
	m.StreamsActive.Dec()
}

// RecordSent records one sent echo request.
func (m *Metrics) RecordSent(family string) {
	m.RequestsSent.WithLabelValues(family).Inc()
}

// RecordReply records one successful attempt and its round-trip time.
func (m *Metrics) RecordReply(family string, rtt time.Duration) {
	m.RepliesReceived.WithLabelValues(family).Inc()
	m.RTTSeconds.WithLabelValues(family).Observe(rtt.Seconds())
}

// RecordTimeout records one attempt that expired without a reply.
func (m *Metrics) RecordTimeout(family string) {
	m.Timeouts.WithLabelValues(family).Inc()
}

// RecordIOFailure records one attempt lost to a socket failure.
func (m *Metrics) RecordIOFailure(family string) {
	m.IOFailures.WithLabelValues(family).Inc()
}

// RecordProtocolError records one attempt answered by an ICMP error.
func (m *Metrics) RecordProtocolError(family string) {
	m.ProtocolErrors.WithLabelValues(family).Inc()
}
