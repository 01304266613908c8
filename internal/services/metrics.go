// Prometheus collectors for the relay flow. HTTP-level metrics live in the
// middleware package; these count domain outcomes.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// relayTurns counts handled message turns by outcome:
	// "stats_reply", "help", "nlu_error", "stats_error".
	relayTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_turns_total",
			Help: "Total number of handled message turns by outcome.",
		},
		[]string{"outcome"},
	)

	// deliveryFailures counts failed outbound platform calls by kind:
	// "text" or a sender action name.
	deliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_delivery_failures_total",
			Help: "Total number of failed outbound platform sends.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(relayTurns, deliveryFailures)
}
