// Package metrics provides the Prometheus registry reference for availability loading.
// All metrics are defined in their respective packages (loader, client, health)
// to maintain modularity and avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Prefix is shared by every metric of this module.
const Prefix = "availability_"

// Registry is the default Prometheus registry used by the module.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer reads back what was registered on Registry.
var Gatherer = prometheus.DefaultGatherer

// Summary gathers g and returns one value per availability metric family:
// the sum over all label sets for counters and gauges, the total sample
// count for histograms and summaries.
func Summary(g prometheus.Gatherer) (map[string]float64, error) {
	families, err := g.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather metrics: %w", err)
	}

	out := make(map[string]float64)
	for _, mf := range families {
		name := mf.GetName()
		if !strings.HasPrefix(name, Prefix) {
			continue
		}

		var total float64
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				total += float64(m.GetHistogram().GetSampleCount())
			case m.GetSummary() != nil:
				total += float64(m.GetSummary().GetSampleCount())
			}
		}
		out[name] = total
	}

	return out, nil
}

// SortedNames returns the keys of a Summary result in order.
func SortedNames(summary map[string]float64) []string {
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Metrics Documentation
//
// Load Metrics (pkg/loader):
//   - availability_loads_total{state} (Counter): Page loads by terminal state (skipped, populated, error)
//   - availability_attempts_total{result, error_class} (Counter): Batch fetch attempts
//   - availability_placeholders_rendered_total{rendering} (Counter): Placeholders by rendering (formatted, no_status, error)
//
// Retry Metrics (pkg/loader):
//   - availability_retries_total (Counter): Retried batch fetches
//   - availability_retry_backoff_seconds (Histogram): Delay before a retried fetch
//   - availability_retry_exhausted_total (Counter): Loads that exhausted their attempts
//
// Request Metrics (pkg/client):
//   - availability_requests_total{status} (Counter): Requests by HTTP status
//   - availability_request_duration_seconds (Histogram): Request duration
//   - availability_request_ids (Histogram): Record ids per batched request
//   - availability_errors_total{class} (Counter): Errors by class (client, server, network, timeout, rate_limit, decode, endpoint)
//
// Health Metrics (pkg/health):
//   - availability_endpoint_consecutive_failures (Gauge): Failed loads since the last success
//   - availability_endpoint_unhealthy_total (Counter): Transitions into the unhealthy state
//
// Example Prometheus Queries:
//
//   # Load Error Rate
//   sum(rate(availability_loads_total{state="error"}[5m])) /
//   sum(rate(availability_loads_total[5m]))
//
//   # Endpoint Unhealthy
//   availability_endpoint_consecutive_failures >= 3
//
//   # Attempts Per Load
//   sum(rate(availability_attempts_total[5m])) /
//   sum(rate(availability_loads_total{state!="skipped"}[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(availability_request_duration_seconds_bucket[5m]))
