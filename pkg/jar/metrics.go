package jar

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOps tracks Redis cookie store operations
	StoreOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebeer_cookie_store_ops_total",
			Help: "Total number of persisted cookie operations",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)

	// StoreErrors tracks Redis cookie store errors
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratebeer_cookie_store_errors_total",
			Help: "Total number of persisted cookie operation errors",
		},
		[]string{"operation"},
	)
)
