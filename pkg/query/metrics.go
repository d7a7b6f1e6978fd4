package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for query state handling.
var (
	locationWrites = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchdesk_query_location_writes_total",
		Help: "Total query string rewrites caused by state changes",
	})

	debounceCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchdesk_debounce_commits_total",
		Help: "Total debounced values committed",
	})

	debounceCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "branchdesk_debounce_cancelled_total",
		Help: "Total pending debounce commits superseded or cancelled",
	})
)
