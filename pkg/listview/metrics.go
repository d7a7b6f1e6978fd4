package listview

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for list views.
var (
	fetchesStarted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchdesk_list_fetches_total",
		Help: "Total list fetches dispatched by resource",
	}, []string{"resource"})

	fetchResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchdesk_list_fetch_results_total",
		Help: "List fetch outcomes by resource and result (success, error, unauthorized, stale, suppressed)",
	}, []string{"resource", "result"})

	fetchesShared = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchdesk_list_fetches_shared_total",
		Help: "List fetches answered by an identical in-flight request",
	}, []string{"resource"})

	fetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "branchdesk_list_fetch_duration_seconds",
		Help:    "List fetch duration in seconds by resource",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	}, []string{"resource"})
)
