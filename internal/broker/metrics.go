package broker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsReceivedTotal tracks decoded gateway events by type.
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeterm_gateway_events_received_total",
			Help: "Total number of gateway events received",
		},
		[]string{"type"},
	)

	// EventsDroppedTotal tracks events lost to a full subscriber channel.
	EventsDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_gateway_events_dropped_total",
		Help: "Total number of events dropped because a subscriber channel was full",
	})

	// ReconnectsTotal tracks gateway reconnection attempts.
	ReconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tradeterm_gateway_reconnects_total",
		Help: "Total number of gateway reconnections",
	})

	// ConnectedGauge is 1 while the gateway session is established.
	ConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tradeterm_gateway_connected",
		Help: "Whether the gateway session is currently established",
	})
)
