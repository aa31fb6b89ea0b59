package hub

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	connectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "loadhub_connections",
		Help: "Currently connected websocket clients by role.",
	}, []string{"role"})

	messagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loadhub_messages_total",
		Help: "Websocket messages processed, by event and direction.",
	}, []string{"event", "direction"})

	droppedClientsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "loadhub_dropped_clients_total",
		Help: "Clients disconnected because their send buffer filled up.",
	})
)
