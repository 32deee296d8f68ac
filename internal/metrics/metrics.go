// Package metrics wraps Prometheus collectors for the task and settlement
// engine: lock contention, submission outcomes, scoring latency and ledger
// writes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the set of observations the engine reports.
type Recorder interface {
	RecordLock(kind string, err error)
	RecordRelease(reason string)
	RecordSubmission(status string)
	RecordScoring(duration time.Duration, err error)
	RecordLedgerEntry(kind string)
	RecordSweep(released int, duration time.Duration)
}

// Collector provides engine metrics collection.
type Collector struct {
	registry *prometheus.Registry

	locksTotal       *prometheus.CounterVec
	releasesTotal    *prometheus.CounterVec
	submissionsTotal *prometheus.CounterVec
	scoringTotal     *prometheus.CounterVec
	scoringLatency   prometheus.Histogram
	ledgerEntries    *prometheus.CounterVec
	sweepReleased    prometheus.Counter
	sweepLatency     prometheus.Histogram
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a new collector with its own registry.
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "scribeworks"
	}

	c := &Collector{registry: prometheus.NewRegistry()}

	c.locksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "lock_attempts_total",
			Help:      "Task lock attempts by task kind and result",
		},
		[]string{"kind", "result"},
	)

	c.releasesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "task",
			Name:      "releases_total",
			Help:      "Locks returned to OPEN by reason (cancel, expiry, rejection)",
		},
		[]string{"reason"},
	)

	c.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "submission",
			Name:      "resolved_total",
			Help:      "Submissions resolved by final status",
		},
		[]string{"status"},
	)

	c.scoringTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "requests_total",
			Help:      "Scoring adapter calls by result",
		},
		[]string{"result"},
	)

	c.scoringLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scoring",
			Name:      "duration_seconds",
			Help:      "Time spent waiting on the scoring adapter",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
	)

	c.ledgerEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries written by kind",
		},
		[]string{"kind"},
	)

	c.sweepReleased = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "released_total",
			Help:      "Expired locks released by the background sweep",
		},
	)

	c.sweepLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sweep",
			Name:      "duration_seconds",
			Help:      "Duration of one expiry sweep",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		},
	)

	c.registry.MustRegister(
		c.locksTotal,
		c.releasesTotal,
		c.submissionsTotal,
		c.scoringTotal,
		c.scoringLatency,
		c.ledgerEntries,
		c.sweepReleased,
		c.sweepLatency,
	)

	return c
}

// Registry returns the Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (c *Collector) RecordLock(kind string, err error) {
	c.locksTotal.WithLabelValues(kind, result(err)).Inc()
}

func (c *Collector) RecordRelease(reason string) {
	c.releasesTotal.WithLabelValues(reason).Inc()
}

func (c *Collector) RecordSubmission(status string) {
	c.submissionsTotal.WithLabelValues(status).Inc()
}

func (c *Collector) RecordScoring(duration time.Duration, err error) {
	c.scoringTotal.WithLabelValues(result(err)).Inc()
	c.scoringLatency.Observe(duration.Seconds())
}

func (c *Collector) RecordLedgerEntry(kind string) {
	c.ledgerEntries.WithLabelValues(kind).Inc()
}

func (c *Collector) RecordSweep(released int, duration time.Duration) {
	c.sweepReleased.Add(float64(released))
	c.sweepLatency.Observe(duration.Seconds())
}

// NoOpCollector discards every observation.
type NoOpCollector struct{}

// NewNoOpCollector creates a no-op collector.
func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (*NoOpCollector) RecordLock(kind string, err error)                {}
func (*NoOpCollector) RecordRelease(reason string)                      {}
func (*NoOpCollector) RecordSubmission(status string)                   {}
func (*NoOpCollector) RecordScoring(d time.Duration, err error)         {}
func (*NoOpCollector) RecordLedgerEntry(kind string)                    {}
func (*NoOpCollector) RecordSweep(released int, duration time.Duration) {}
