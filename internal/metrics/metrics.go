// Package metrics exposes reconciliation measurements to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/protrecon/internal/reconcile"
)

// Namespace prefixes every metric name.
const Namespace = "protrecon"

// Collector holds the Prometheus metrics for one process. Each collector
// owns its registry so tests can create as many as they need.
//
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	Outcomes         *prometheus.CounterVec
	Batches          *prometheus.CounterVec
	BatchDuration    prometheus.Histogram
	RegistryAttempts *prometheus.CounterVec
	Conservation     prometheus.Histogram
}

// NewCollector creates and registers the metrics.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "outcomes_total",
			Help:      "Reconciliation outcomes published, by kind.",
		},
		[]string{"kind"},
	)

	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "batches_total",
			Help:      "Batches finished, by result.",
		},
		[]string{"result"},
	)

	batchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time spent processing one batch.",
			Buckets:   prometheus.DefBuckets,
		},
	)

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "registry_attempts_total",
			Help:      "Registry fetch attempts, by result.",
		},
		[]string{"result"},
	)

	conservation := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "sequence_conservation_score",
			Help:      "Conservation scores of observed sequence changes.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	registry.MustRegister(outcomes, batches, batchDuration, attempts, conservation)

	return &Collector{
		registry:         registry,
		Outcomes:         outcomes,
		Batches:          batches,
		BatchDuration:    batchDuration,
		RegistryAttempts: attempts,
		Conservation:     conservation,
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// OutcomeEmitted implements reconcile.Observer.
func (c *Collector) OutcomeEmitted(kind reconcile.OutcomeKind) {
	if c == nil {
		return
	}
	c.Outcomes.WithLabelValues(string(kind)).Inc()
}

// BatchFinished implements reconcile.Observer.
func (c *Collector) BatchFinished(committed bool, elapsed time.Duration) {
	if c == nil {
		return
	}
	result := "committed"
	if !committed {
		result = "rolled_back"
	}
	c.Batches.WithLabelValues(result).Inc()
	c.BatchDuration.Observe(elapsed.Seconds())
}

// SequenceScored implements reconcile.Observer.
func (c *Collector) SequenceScored(score float64) {
	if c == nil {
		return
	}
	c.Conservation.Observe(score)
}

// RegistryAttempt implements registry.Observer.
func (c *Collector) RegistryAttempt(result string) {
	if c == nil {
		return
	}
	c.RegistryAttempts.WithLabelValues(result).Inc()
}
