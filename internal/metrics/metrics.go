// Package metrics defines and registers the Prometheus metrics of the ledger.
// Metrics are registered with the default registry on package init through
// promauto; the HTTP server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

// MutationsTotal counts store mutations.
// Labels:
//   - entity: "job", "payment", "product", "user", "settings"
//   - op: "create", "update", "delete"
//   - result: "ok", "validation", "not_found", "persistence"
var MutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Total number of entity mutations, by entity, operation and result.",
	},
	[]string{"entity", "op", "result"},
)

// PersistenceErrorsTotal counts failed reads/parses on load and failed writes on save.
var PersistenceErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_errors_total",
		Help:      "Total number of persistence failures, by operation and storage key.",
	},
	[]string{"op", "key"},
)

// LoginsTotal counts login attempts by result ("ok" or "invalid").
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// SummaryCacheTotal counts summary cache lookups by result ("hit" or "miss").
var SummaryCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summary_cache_total",
		Help:      "Total number of monthly summary cache lookups, by result.",
	},
	[]string{"result"},
)

// SummarySkippedTotal counts records left out of a summary because their
// amount could not be parsed.
var SummarySkippedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "summary_skipped_records_total",
		Help:      "Total number of records skipped by summaries due to malformed amounts.",
	},
)

// HTTPRequestDuration measures API request latency.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests, by method and status code.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "status"},
)
