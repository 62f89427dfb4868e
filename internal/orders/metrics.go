package orders

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OrdersSubmittedTotal tracks order submissions by action.
	OrdersSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeterm_orders_submitted_total",
			Help: "Total number of orders submitted",
		},
		[]string{"action"},
	)

	// OrdersResolvedTotal tracks resolved outcomes by final status.
	OrdersResolvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeterm_orders_resolved_total",
			Help: "Total number of order outcomes by final status",
		},
		[]string{"status"},
	)

	// ResolveDurationSeconds tracks submission-to-outcome latency.
	ResolveDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tradeterm_orders_resolve_duration_seconds",
		Help:    "Duration from order submission to outcome resolution",
		Buckets: prometheus.DefBuckets,
	})

	// OrderTimeoutsTotal tracks resolutions forced by the timeout.
	OrderTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_orders_timeouts_total",
		Help: "Total number of orders resolved by the resolution timeout",
	})

	// UnclassifiedErrorsTotal tracks broker errors no pattern matched.
	UnclassifiedErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_orders_unclassified_errors_total",
		Help: "Total number of unclassified broker errors propagated to callers",
	})

	// OpenOrdersGauge is the current size of the open-orders registry.
	OpenOrdersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeterm_orders_open",
		Help: "Current number of orders in the open-orders registry",
	})

	// CancelsTotal tracks cancel instructions sent.
	CancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_orders_cancels_total",
		Help: "Total number of cancel instructions sent",
	})

	// CancelTimeoutsTotal tracks cancels with no confirmation in time.
	CancelTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_orders_cancel_timeouts_total",
		Help: "Total number of cancels that timed out awaiting confirmation",
	})
)
