// Package metrics holds the prometheus collectors shared by the resolver,
// the redirect service and the visit recorder.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts resolver cache reads by lookup and result ("hit", "miss", "corrupt", "error").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirector_cache_lookups_total",
			Help: "Total number of resolver cache lookups",
		},
		[]string{"lookup", "result"},
	)

	// CacheErrors counts cache operation failures by operation ("get", "set", "remove").
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirector_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"},
	)

	// Resolutions counts redirect outcomes by source ("record", "group", "system", "fallback").
	Resolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirector_resolutions_total",
			Help: "Total number of resolved redirects",
		},
		[]string{"source"},
	)

	// StoreErrors counts record store failures seen during resolution.
	StoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redirector_store_errors_total",
			Help: "Total number of record store errors during resolution",
		},
	)

	// Visits counts visit events by subject and outcome ("recorded", "failed", "dropped").
	Visits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redirector_visits_total",
			Help: "Total number of visit events",
		},
		[]string{"subject", "outcome"},
	)
)
