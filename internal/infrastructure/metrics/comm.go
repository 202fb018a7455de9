// Package metrics exposes node activity as Prometheus metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "omnisys"

// CommMetrics implements comm.Metrics on a private registry.
type CommMetrics struct {
	registry *prometheus.Registry

	published    *prometheus.CounterVec
	buffered     *prometheus.CounterVec
	retried      *prometheus.CounterVec
	dropped      *prometheus.CounterVec
	decodeErrors *prometheus.CounterVec
	liveNodes    prometheus.Gauge
}

func newCounter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "comm",
			Name:      name,
			Help:      help,
		},
		[]string{"identity"},
	)
}

// NewCommMetrics creates the collectors and registers them together with the
// Go runtime and process collectors.
func NewCommMetrics() *CommMetrics {
	m := &CommMetrics{
		registry:     prometheus.NewRegistry(),
		published:    newCounter("published_total", "Envelopes acknowledged by the broker on first attempt"),
		buffered:     newCounter("buffered_total", "Envelopes written to the outbound buffer after a failed publish"),
		retried:      newCounter("retried_total", "Buffered envelopes delivered by the retry loop"),
		dropped:      newCounter("dropped_total", "Envelopes lost because the outbound buffer was unavailable"),
		decodeErrors: newCounter("decode_errors_total", "Inbound messages dropped as malformed or undecodable"),
		liveNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "comm",
			Name:      "live_nodes",
			Help:      "Nodes currently managed by this process",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.published,
		m.buffered,
		m.retried,
		m.dropped,
		m.decodeErrors,
		m.liveNodes,
	)
	return m
}

func (m *CommMetrics) Published(identity string)    { m.published.WithLabelValues(identity).Inc() }
func (m *CommMetrics) Buffered(identity string)     { m.buffered.WithLabelValues(identity).Inc() }
func (m *CommMetrics) Retried(identity string)      { m.retried.WithLabelValues(identity).Inc() }
func (m *CommMetrics) Dropped(identity string)      { m.dropped.WithLabelValues(identity).Inc() }
func (m *CommMetrics) DecodeFailed(identity string) { m.decodeErrors.WithLabelValues(identity).Inc() }
func (m *CommMetrics) LiveNodes(n int)              { m.liveNodes.Set(float64(n)) }

// Registry returns the underlying registry.
func (m *CommMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *CommMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
