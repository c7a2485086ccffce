// Package metrics holds the hub's Prometheus instrumentation. Mounting
// the registry behind an HTTP handler is the external adapter's concern;
// this package only owns and records into the metrics themselves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every metric the hub core records. Pass to constructors
// that need to record into it.
type Metrics struct {
	ConnectedUpstreams prometheus.Gauge
	RegisteredTools    prometheus.Gauge
	DispatchTotal      *prometheus.CounterVec
	DispatchDuration   *prometheus.HistogramVec
	StreamChunksTotal  *prometheus.CounterVec
	ReconcileTicks     prometheus.Counter
	ReconnectAttempts  *prometheus.CounterVec
}

// New creates and registers every metric with reg under the given
// namespace.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	return &Metrics{
		ConnectedUpstreams: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_upstreams",
			Help:      "Number of upstreams currently in the Connected state",
		}),
		RegisteredTools: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_tools",
			Help:      "Number of qualified tool names currently registered",
		}),
		DispatchTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total unary dispatches by outcome",
			},
			[]string{"outcome"}, // success|pending|failure
		),
		DispatchDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Unary dispatch duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"upstream"},
		),
		StreamChunksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stream_chunks_total",
				Help:      "Total stream chunks emitted by kind",
			},
			[]string{"kind"}, // success|failure|raw
		),
		ReconcileTicks: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_ticks_total",
			Help:      "Total reconciler ticks that performed a diff",
		}),
		ReconnectAttempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconnect_attempts_total",
				Help:      "Total reconnect attempts by upstream",
			},
			[]string{"upstream"},
		),
	}
}
