// Package metrics exposes simscript internals as Prometheus collectors.
//
// Metrics implements the observer hooks of the event hub, the override
// caches and the suspension bridge, and keeps its collectors on a private
// registry so that several instances can coexist in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/simscript/internal/automation"
	"github.com/dshills/simscript/internal/event"
	"github.com/dshills/simscript/internal/override"
)

const namespace = "simscript"

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	eventsEmitted    *prometheus.CounterVec
	listenerFailures *prometheus.CounterVec
	dispatchSeconds  *prometheus.HistogramVec
	listeners        *prometheus.GaugeVec
	overrides        *prometheus.CounterVec
	parkedWaits      *prometheus.GaugeVec
	streamClients    prometheus.Gauge
	streamDropped    *prometheus.CounterVec
}

var (
	_ event.Observer      = (*Metrics)(nil)
	_ override.Observer   = (*Metrics)(nil)
	_ automation.Observer = (*Metrics)(nil)
)

// New creates the collectors on a fresh registry. Go runtime and process
// collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		eventsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "hub",
				Name:      "events_emitted_total",
				Help:      "Total number of events emitted",
			},
			[]string{"kind"},
		),
		listenerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "hub",
				Name:      "listener_failures_total",
				Help:      "Total number of listener errors and panics",
			},
			[]string{"kind"},
		),
		dispatchSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "hub",
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent in one listener call",
				Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
			},
			[]string{"kind"},
		),
		listeners: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "hub",
				Name:      "listeners",
				Help:      "Registered listeners, durable and one-shot",
			},
			[]string{"kind"},
		),
		overrides: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "override",
				Name:      "resolved_total",
				Help:      "Total number of control resolutions",
			},
			[]string{"family", "overridden"},
		),
		parkedWaits: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "bridge",
				Name:      "parked_waits",
				Help:      "Scripts suspended waiting for an event",
			},
			[]string{"kind"},
		),
		streamClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "clients",
				Help:      "Connected event stream clients",
			},
		),
		streamDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "stream",
				Name:      "dropped_total",
				Help:      "Events dropped because a client buffer was full",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.eventsEmitted,
		m.listenerFailures,
		m.dispatchSeconds,
		m.listeners,
		m.overrides,
		m.parkedWaits,
		m.streamClients,
		m.streamDropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// EventEmitted implements event.Observer.
func (m *Metrics) EventEmitted(kind event.Kind) {
	m.eventsEmitted.WithLabelValues(kind.String()).Inc()
}

// ListenerFailed implements event.Observer.
func (m *Metrics) ListenerFailed(kind event.Kind) {
	m.listenerFailures.WithLabelValues(kind.String()).Inc()
}

// ListenerDispatched implements event.Observer.
func (m *Metrics) ListenerDispatched(kind event.Kind, took time.Duration) {
	m.dispatchSeconds.WithLabelValues(kind.String()).Observe(took.Seconds())
}

// ListenersChanged implements event.Observer.
func (m *Metrics) ListenersChanged(kind event.Kind, count int) {
	m.listeners.WithLabelValues(kind.String()).Set(float64(count))
}

// OverrideResolved implements override.Observer.
func (m *Metrics) OverrideResolved(family override.Family, overridden bool) {
	label := "false"
	if overridden {
		label = "true"
	}
	m.overrides.WithLabelValues(string(family), label).Inc()
}

// WaitsChanged implements automation.Observer.
func (m *Metrics) WaitsChanged(kind event.Kind, parked int) {
	m.parkedWaits.WithLabelValues(kind.String()).Set(float64(parked))
}

// StreamConnected records an event stream client joining.
func (m *Metrics) StreamConnected() {
	m.streamClients.Inc()
}

// StreamDisconnected records an event stream client leaving.
func (m *Metrics) StreamDisconnected() {
	m.streamClients.Dec()
}

// StreamDropped records an event not delivered to a slow client.
func (m *Metrics) StreamDropped(kind event.Kind) {
	m.streamDropped.WithLabelValues(kind.String()).Inc()
}

// RegisterGaugeFunc exposes fn as a gauge, sampled at scrape time. fn must
// be safe to call from any goroutine.
func (m *Metrics) RegisterGaugeFunc(subsystem, name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		},
		fn,
	))
}
