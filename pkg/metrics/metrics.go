// Package metrics exposes the Prometheus registry for branchdesk.
// All metrics are defined in their respective packages (client, cache,
// query, listview, auth) to maintain modularity and avoid circular dependencies.
//
// This package provides the HTTP endpoint and a reference for all available metrics.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Sternrassler/branchdesk/pkg/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by branchdesk.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Path is where Serve exposes metrics.
const Path = "/metrics"

// Handler returns the metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes Path on addr until ctx is done. It returns the bound address
// once listening, so ":0" can be used in tests.
func Serve(ctx context.Context, addr string) (net.Addr, error) {
	logger := logging.NewLogger("metrics")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("Metrics server failed")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")
	return ln.Addr(), nil
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - branchdesk_requests_total{method, endpoint, status} (Counter): Requests by method, endpoint and HTTP status
//   - branchdesk_request_duration_seconds{method, endpoint} (Histogram): Request duration
//   - branchdesk_errors_total{class} (Counter): Errors by class (network, server, client, validation, unauthorized, internal)
//   - branchdesk_unauthorized_total (Counter): 401 responses that triggered session teardown
//
// Retry Metrics (pkg/client):
//   - branchdesk_retries_total{error_class} (Counter): Retry attempts by error class
//   - branchdesk_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - branchdesk_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Cache Metrics (pkg/cache):
//   - branchdesk_cache_hits_total (Counter): Responses served from cache after 304 revalidation
//   - branchdesk_cache_misses_total (Counter): Cache misses
//   - branchdesk_cache_size_bytes (Gauge): Bytes written to the response cache
//   - branchdesk_cache_invalidations_total (Counter): Keys removed by write invalidation
//   - branchdesk_conditional_requests_total (Counter): Conditional requests sent with If-None-Match
//   - branchdesk_cache_errors_total{operation} (Counter): Cache operation errors
//
// Query Metrics (pkg/query):
//   - branchdesk_query_location_writes_total (Counter): Query string rewrites
//   - branchdesk_debounce_commits_total (Counter): Debounced search values committed
//   - branchdesk_debounce_cancelled_total (Counter): Pending commits superseded or cancelled
//
// List Metrics (pkg/listview):
//   - branchdesk_list_fetches_total{resource} (Counter): List fetches dispatched
//   - branchdesk_list_fetch_results_total{resource, result} (Counter): success, error, unauthorized, stale, suppressed
//   - branchdesk_list_fetches_shared_total{resource} (Counter): Fetches answered by an identical in-flight request
//   - branchdesk_list_fetch_duration_seconds{resource} (Histogram): List fetch duration
//
// Auth Metrics (pkg/auth):
//   - branchdesk_auth_events_total{event} (Counter): login, login_failed, logout, refresh, refresh_failed, unauthorized
//
// Example Prometheus Queries:
//
//   # Share of list responses discarded as stale
//   sum(rate(branchdesk_list_fetch_results_total{result="stale"}[5m])) /
//   sum(rate(branchdesk_list_fetch_results_total[5m]))
//
//   # Cache revalidation hit rate
//   sum(rate(branchdesk_cache_hits_total[5m])) /
//   sum(rate(branchdesk_conditional_requests_total[5m]))
//
//   # Request Error Rate
//   rate(branchdesk_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(branchdesk_request_duration_seconds_bucket[5m]))
