// ConfigRelay - Distributed Configuration Delivery Cache
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/configrelay

// Package metrics defines the Prometheus instrumentation for ConfigRelay:
// config request throughput and latency, cache efficiency and weight, watch
// index size, and release-message invalidation fan-out.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Config request metrics
	ConfigRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "configfiles_requests_total",
			Help: "Total number of config-file requests",
		},
		[]string{"format", "outcome"}, // outcome: hit, miss, personalized, not_found, error
	)

	ConfigRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "configfiles_request_duration_seconds",
			Help:    "Config-file request duration in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"format"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "config_cache_hits_total",
			Help: "Total number of serving cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "config_cache_misses_total",
			Help: "Total number of serving cache misses",
		},
	)

	CacheRemovals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_cache_removals_total",
			Help: "Total number of cache entry removals by cause",
		},
		[]string{"cause"}, // explicit, expired, evicted, replaced
	)

	CacheWeightBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "config_cache_weight_bytes",
			Help: "Total byte weight of live cache entries",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "config_cache_entries",
			Help: "Current number of live cache entries",
		},
	)

	// Watch index metrics
	WatchIndexWatchKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_index_watch_keys",
			Help: "Current number of distinct watch keys in the index",
		},
	)

	WatchIndexCacheKeys = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "watch_index_cache_keys",
			Help: "Current number of distinct cache keys in the index",
		},
	)

	// Invalidation metrics
	ReleaseMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "release_messages_total",
			Help: "Total number of release messages processed",
		},
		[]string{"result"}, // applied, empty, no_match
	)

	InvalidationFanout = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "release_invalidation_fanout",
			Help:    "Number of cache entries invalidated per release message",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		},
	)

	// Resolver metrics
	ResolverBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "resolver_breaker_state",
			Help: "Resolver circuit breaker state (1 for the active state)",
		},
		[]string{"state"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)
)

// RecordConfigRequest records one config-file request.
func RecordConfigRequest(format, outcome string, duration time.Duration) {
	ConfigRequestsTotal.WithLabelValues(format, outcome).Inc()
	ConfigRequestDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordCacheRemoval records one cache removal by cause.
func RecordCacheRemoval(cause string) {
	CacheRemovals.WithLabelValues(cause).Inc()
}

// SetCacheSize updates the cache gauges.
func SetCacheSize(entries int, weightBytes int64) {
	CacheEntries.Set(float64(entries))
	CacheWeightBytes.Set(float64(weightBytes))
}

// SetWatchIndexSize updates the watch index gauges.
func SetWatchIndexSize(watchKeys, cacheKeys int) {
	WatchIndexWatchKeys.Set(float64(watchKeys))
	WatchIndexCacheKeys.Set(float64(cacheKeys))
}

// SetResolverBreakerState marks the given breaker state active.
func SetResolverBreakerState(state string) {
	ResolverBreakerState.Reset()
	ResolverBreakerState.WithLabelValues(state).Set(1)
}

// RecordHTTPRequest records one HTTP request for the middleware.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}
