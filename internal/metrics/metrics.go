package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	reservationCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "reservation_created_total",
			Help:      "Count of reservations created by status.",
		},
		[]string{"status"},
	)

	reservationCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "reservation_cancelled_total",
			Help:      "Count of reservations cancelled.",
		},
	)

	reservationConflict = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "reservation_conflict_total",
			Help:      "Count of reservation attempts rejected for slot conflicts.",
		},
	)

	battleScore = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "battle_score_total",
			Help:      "Count of battle score submissions by outcome.",
		},
		[]string{"outcome"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quadra",
			Name:      "http_requests_total",
			Help:      "Count of HTTP API requests by handler.",
		},
		[]string{"handler"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			reservationCreated, reservationCancelled, reservationConflict,
			battleScore, httpRequests,
		)
	})
}

func IncReservationCreated(status string) {
	reservationCreated.WithLabelValues(status).Inc()
}

func IncReservationCancelled() {
	reservationCancelled.Inc()
}

func IncReservationConflict() {
	reservationConflict.Inc()
}

func IncBattleScore(outcome string) {
	battleScore.WithLabelValues(outcome).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}
