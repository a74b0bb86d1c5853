// Package metrics exposes the daemon's Prometheus collectors, following
// datarhei-core/prometheus's pattern of one private registry plus an
// HTTPHandler for exposition rather than the global default registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CacheStater is the subset of internal/cache.LRU's interface metrics
// needs: cumulative, ever-increasing hit/miss counts.
type CacheStater interface {
	Stats() (hits, misses int64)
}

// Metrics holds every collector the daemon updates.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge
	CommandsTotal     *prometheus.CounterVec
	FramesServedTotal *prometheus.CounterVec
	DecodeDuration    prometheus.Histogram
}

// New builds a Metrics bound to a fresh, private registry. cache's
// cumulative hit/miss counters are read directly on each scrape via
// CounterFunc, following datarhei-core/prometheus's per-scrape Collect
// pattern rather than requiring callers to mirror state into this package.
func New(cache CacheStater) *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "vtsourced_cache_hits_total",
		Help: "Frame cache hits.",
	}, func() float64 {
		hits, _ := cache.Stats()
		return float64(hits)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Name: "vtsourced_cache_misses_total",
		Help: "Frame cache misses.",
	}, func() float64 {
		_, misses := cache.Stats()
		return float64(misses)
	})

	return &Metrics{
		registry: registry,

		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "vtsourced_connections_total",
			Help: "Total TCP connections accepted.",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "vtsourced_connections_active",
			Help: "Currently open TCP connections.",
		}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vtsourced_commands_total",
			Help: "Commands processed, by verb and outcome.",
		}, []string{"verb", "outcome"}),
		FramesServedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vtsourced_frames_served_total",
			Help: "GETFRAME responses served, by colorspace.",
		}, []string{"colorspace"}),
		DecodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "vtsourced_decode_duration_seconds",
			Help:    "Time spent in decoder SeekAndDecode calls.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// HTTPHandler returns the handler to mount for Prometheus scraping.
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
