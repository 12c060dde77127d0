package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ClientsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mj_clients_total",
			Help: "Client create attempts by outcome",
		},
		[]string{"outcome"}, // created|rejected|failed
	)

	ClientEventsProjected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mj_client_events_projected_total",
			Help: "Client events handled by the ClickHouse projector",
		},
		[]string{"result"}, // stored|skipped|failed
	)

	OutboxRelayed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mj_outbox_relayed_total",
			Help: "Outbox rows published to Kafka by the relay worker",
		},
	)

	registerOnce sync.Once
)

// MustRegister registers every collector once; later calls are no-ops.
func MustRegister(r prometheus.Registerer) {
	registerOnce.Do(func() {
		r.MustRegister(
			ClientsTotal,
			ClientEventsProjected,
			OutboxRelayed,
		)
	})
}
