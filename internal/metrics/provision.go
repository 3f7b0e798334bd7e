package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StatusTransitions counts status transitions applied to instances.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peacock_status_transitions_total",
			Help: "Total number of instance status transitions applied",
		},
		[]string{"from", "to"},
	)

	// HandlerOutcomes counts handler invocations by outcome.
	HandlerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "peacock_handler_outcomes_total",
			Help: "Total number of provisioning handler runs by outcome",
		},
		[]string{"handler", "outcome"},
	)

	// WaiterDuration observes how long waiters block on a child.
	WaiterDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "peacock_waiter_duration_seconds",
			Help:    "Time spent waiting for a child subprocess to settle",
			Buckets: []float64{1, 3, 10, 30, 60, 120, 300, 600},
		},
		[]string{"child"},
	)
)
