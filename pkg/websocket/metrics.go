package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_ws_reconnect_attempts_total",
		Help: "WebSocket reconnection attempts",
	})

	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_ws_reconnect_failures_total",
		Help: "WebSocket reconnection failures",
	})

	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyarb_ws_messages_received_total",
		Help: "Stream messages received by event type",
	}, []string{"event_type"})

	MessagesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_ws_messages_dropped_total",
		Help: "Stream messages dropped because the consumer channel was full",
	})

	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_ws_subscription_count",
		Help: "Active market subscriptions",
	})

	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_ws_connection_duration_seconds",
		Help:    "Connection lifetime before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)
