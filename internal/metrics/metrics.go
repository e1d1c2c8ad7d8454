// Package metrics exposes Prometheus collectors for the HTTP API, the
// cache layer, the connection pool and the live feed.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPActiveRequests  *prometheus.GaugeVec

	CacheHitsTotal      *prometheus.CounterVec
	CacheMissesTotal    *prometheus.CounterVec
	CacheEvictionsTotal *prometheus.CounterVec
	CacheEntryCount     *prometheus.GaugeVec
	CacheSizeBytes      *prometheus.GaugeVec

	PoolConnectionsActive prometheus.Gauge
	PoolConnectionsTotal  prometheus.Counter
	PoolReconnectsTotal   prometheus.Counter
	PoolQueuedMessages    prometheus.Gauge

	FeedActivitiesPublished *prometheus.CounterVec
	FeedValidationFailures  prometheus.Counter

	RelayClientsActive  prometheus.Gauge
	RelayMessagesRouted prometheus.Counter
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide metrics, registering collectors on first use
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics(prometheus.DefaultRegisterer)
	})
	return instance
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchpulse_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "matchpulse_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		HTTPActiveRequests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchpulse_http_active_requests",
			Help: "In-flight HTTP requests",
		}, []string{"method", "path"}),

		CacheHitsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchpulse_cache_hits_total",
			Help: "Cache hits by cache name",
		}, []string{"cache"}),
		CacheMissesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchpulse_cache_misses_total",
			Help: "Cache misses by cache name",
		}, []string{"cache"}),
		CacheEvictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchpulse_cache_evictions_total",
			Help: "Cache evictions by cache name",
		}, []string{"cache"}),
		CacheEntryCount: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchpulse_cache_entries",
			Help: "Current entries by cache name",
		}, []string{"cache"}),
		CacheSizeBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "matchpulse_cache_size_bytes",
			Help: "Estimated size in bytes by cache name",
		}, []string{"cache"}),

		PoolConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "matchpulse_pool_connections_active",
			Help: "Open pooled WebSocket connections",
		}),
		PoolConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchpulse_pool_connections_total",
			Help: "Pooled WebSocket connections ever opened",
		}),
		PoolReconnectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchpulse_pool_reconnects_total",
			Help: "Reconnection attempts made by the pool",
		}),
		PoolQueuedMessages: factory.NewGauge(prometheus.GaugeOpts{
			Name: "matchpulse_pool_queued_messages",
			Help: "Messages waiting in per-connection queues",
		}),

		FeedActivitiesPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "matchpulse_feed_activities_published_total",
			Help: "Activities accepted into feeds by type",
		}, []string{"type"}),
		FeedValidationFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchpulse_feed_validation_failures_total",
			Help: "Activities rejected by feed validation",
		}),

		RelayClientsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "matchpulse_relay_clients_active",
			Help: "WebSocket clients connected to the relay",
		}),
		RelayMessagesRouted: factory.NewCounter(prometheus.CounterOpts{
			Name: "matchpulse_relay_messages_routed_total",
			Help: "PUBLISH frames fanned out by the relay",
		}),
	}
}
