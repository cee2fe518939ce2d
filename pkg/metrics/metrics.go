// Package metrics exposes the Prometheus registry shared by the collector
// packages and exports it for one-shot runs.
// All metrics are defined in their respective packages (client, ratelimit,
// pagination, collector) to maintain modularity and avoid circular
// dependencies.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the collector.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads the metrics registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// WriteTextfile writes every registered metric to path in the text
// exposition format, for pickup by the node exporter textfile collector.
// The file is written atomically.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Gatherer); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ghstats_requests_total{operation, outcome} (Counter): Requests by operation and outcome
//   - ghstats_request_duration_seconds{operation} (Histogram): Request duration by operation
//   - ghstats_errors_total{class} (Counter): Upstream errors by retry class
//   - ghstats_not_ready_polls_total (Counter): 202 responses while statistics were computed
//   - ghstats_not_ready_gave_up_total (Counter): Statistics that degraded to empty
//
// Retry Metrics (pkg/client):
//   - ghstats_retries_total{error_class} (Counter): Retry attempts by error class
//   - ghstats_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - ghstats_retry_exhausted_total{error_class} (Counter): Operations that exhausted their attempts
//
// Budget Metrics (pkg/ratelimit):
//   - ghstats_budget_remaining (Gauge): Requests left in the most constrained window
//   - ghstats_budget_checks_total{outcome} (Counter): Budget queries by outcome
//   - ghstats_budget_waits_total (Counter): Calls suspended until the window reset
//   - ghstats_budget_wait_seconds (Histogram): Time spent waiting for a reset
//
// Pagination Metrics (pkg/pagination):
//   - ghstats_repository_pages_total (Counter): Repository pages fetched
//   - ghstats_repositories_total{connection, outcome} (Counter): Repositories admitted, excluded or duplicate
//   - ghstats_batch_items_total{operation, outcome} (Counter): Per-repository operations in batches
//   - ghstats_batch_duration_seconds{operation} (Histogram): Duration of one batch
//
// Run Metrics (pkg/collector):
//   - ghstats_runs_total{phase} (Counter): Runs by final phase (done, failed)
//   - ghstats_run_duration_seconds (Histogram): Duration of successful runs
//
// Example Prometheus Queries:
//
//   # Share of contributor statistics never computed in time
//   ghstats_not_ready_gave_up_total / ghstats_requests_total{operation="contributor_stats"}
//
//   # Budget close to exhaustion
//   ghstats_budget_remaining < 100
//
//   # Retry rate by class
//   rate(ghstats_retries_total[1h])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ghstats_request_duration_seconds_bucket[1h]))
