// Package metrics holds the Prometheus collectors of the real-time chat path.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message channels
const (
	ChannelRealtime = "realtime"
	ChannelREST     = "rest"
)

var (
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_sessions_active",
			Help: "Number of WebSocket sessions connected to this instance",
		},
	)

	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_sent_total",
			Help: "Total number of persisted chat messages",
		},
		[]string{"channel"},
	)

	DeliveriesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_deliveries_failed_total",
			Help: "Total number of events that could not be delivered to a session",
		},
		[]string{"event"},
	)

	ReadReceipts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_read_receipts_total",
			Help: "Total number of messages flipped to read",
		},
	)
)
