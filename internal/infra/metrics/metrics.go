package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so tests and multiple apps in one process do not
// collide on the global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	SwipesTotal         *prometheus.CounterVec
	MatchesCreated      prometheus.Counter
	MessagesPosted      *prometheus.CounterVec
	DiscoveryResults    prometheus.Histogram
	RealtimeConnections prometheus.Gauge
	RealtimeGroups      prometheus.Gauge
	OutboundDropped     prometheus.Counter
	HTTPRequests        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SwipesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatr",
			Name:      "swipes_total",
			Help:      "Recorded swipe actions by action.",
		}, []string{"action"}),
		MatchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatr",
			Name:      "matches_created_total",
			Help:      "Mutual matches created.",
		}),
		MessagesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatr",
			Name:      "messages_posted_total",
			Help:      "Chat messages persisted by type.",
		}, []string{"type"}),
		DiscoveryResults: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "floatr",
			Name:      "discovery_results",
			Help:      "Candidates returned per discovery search.",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
		}),
		RealtimeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floatr",
			Name:      "realtime_connections",
			Help:      "Open websocket connections.",
		}),
		RealtimeGroups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floatr",
			Name:      "realtime_groups",
			Help:      "Chat rooms with at least one live member.",
		}),
		OutboundDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatr",
			Name:      "outbound_events_dropped_total",
			Help:      "Outbound events dropped because the dispatch buffer was full.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatr",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern and status class.",
		}, []string{"route", "status"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SwipesTotal,
		m.MatchesCreated,
		m.MessagesPosted,
		m.DiscoveryResults,
		m.RealtimeConnections,
		m.RealtimeGroups,
		m.OutboundDropped,
		m.HTTPRequests,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
