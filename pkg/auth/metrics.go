package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for authentication.
var (
	authEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "branchdesk_auth_events_total",
		Help: "Session events by type (login, login_failed, logout, refresh, refresh_failed, unauthorized)",
	}, []string{"event"})
)
