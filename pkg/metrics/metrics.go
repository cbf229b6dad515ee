// Package metrics exposes the Prometheus registry of the RateBeer client.
// All metrics are defined in their respective packages (client, jar,
// ratelimit, pagination, auth) and registered through promauto.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the RateBeer client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the gatherer paired with Registry.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the metrics of Gatherer in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - ratebeer_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - ratebeer_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - ratebeer_errors_total{class} (Counter): Errors by class (client, auth, server, rate_limit, network)
//
// Request Budget Metrics (pkg/ratelimit):
//   - ratebeer_rate_limit_window_requests (Gauge): Requests admitted in the current window
//   - ratebeer_rate_limit_throttles_total (Counter): Requests delayed until the window reset
//
// Cookie Store Metrics (pkg/jar):
//   - ratebeer_cookie_store_ops_total{operation} (Counter): Redis operations on persisted auth cookies
//   - ratebeer_cookie_store_errors_total{operation} (Counter): Failed cookie store operations
//
// Pagination Metrics (pkg/pagination):
//   - ratebeer_pages_fetched_total{outcome} (Counter): Page requests by outcome (success, error)
//   - ratebeer_page_fetch_duration_seconds (Histogram): Duration of a single page request
//
// Auth Metrics (pkg/auth):
//   - ratebeer_logins_total{outcome} (Counter): Logins by outcome
//   - ratebeer_reauthentications_total{outcome} (Counter): Silent re-authentications by outcome
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(ratebeer_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(ratebeer_request_duration_seconds_bucket[5m]))
//
//   # Failed Page Share
//   rate(ratebeer_pages_fetched_total{outcome="error"}[5m]) / rate(ratebeer_pages_fetched_total[5m])
//
//   # Login Rejections
//   increase(ratebeer_logins_total{outcome="rejected"}[1h])
