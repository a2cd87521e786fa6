package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	swapsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "router",
		Name:      "swaps_total",
		Help:      "Swaps attempted, by route type, direction and outcome.",
	}, []string{"route_type", "direction", "outcome"})

	swapDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bridge",
		Subsystem: "router",
		Name:      "swap_duration_seconds",
		Help:      "Time from swap request to confirmed transaction or failure.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"route_type", "outcome"})

	quotesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bridge",
		Subsystem: "router",
		Name:      "quotes_total",
		Help:      "Pool quote requests, by pool and outcome.",
	}, []string{"pool", "outcome"})
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
