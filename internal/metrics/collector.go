// Package metrics exposes copier activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "container_copier"

// Copy phases.
const (
	PhaseInitial = "initial"
	PhaseEvent   = "event"
)

// Event outcomes.
const (
	EventCopied  = "copied"
	EventUnknown = "unknown"
	EventIgnored = "ignored"
)

// Collector holds the copier metrics on a private registry. A nil
// *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	targets      prometheus.Gauge
	watches      prometheus.Gauge
	events       *prometheus.CounterVec
	copies       *prometheus.CounterVec
	copyFailures *prometheus.CounterVec
}

// New creates a Collector with Go runtime and process collectors attached.
func New() *Collector {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		targets: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "targets",
			Help:      "Number of configured targets being mirrored",
		}),
		watches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "watches",
			Help:      "Number of distinct notifier watches",
		}),
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Notification events received, by outcome",
		}, []string{"outcome"}),
		copies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copies_total",
			Help:      "Completed copies, by copyset and phase",
		}, []string{"copyset", "phase"}),
		copyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "copy_failures_total",
			Help:      "Failed copies, by copyset and failing operation",
		}, []string{"copyset", "op"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registered records the outcome of setup. Targets sharing a source
// share one watch, so watches can be lower than targets.
func (c *Collector) Registered(targets, watches int) {
	if c == nil {
		return
	}
	c.targets.Set(float64(targets))
	c.watches.Set(float64(watches))
}

// Event counts a received notification event.
func (c *Collector) Event(outcome string) {
	if c == nil {
		return
	}
	c.events.WithLabelValues(outcome).Inc()
}

// Copied counts a completed copy.
func (c *Collector) Copied(copyset, phase string) {
	if c == nil {
		return
	}
	c.copies.WithLabelValues(copyset, phase).Inc()
}

// CopyFailed counts a failed copy.
func (c *Collector) CopyFailed(copyset, op string) {
	if c == nil {
		return
	}
	c.copyFailures.WithLabelValues(copyset, op).Inc()
}
