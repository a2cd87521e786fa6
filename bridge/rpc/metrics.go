package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	callsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_calls_total",
		Help: "Bridge method calls by method and result code.",
	}, []string{"method", "code"})

	callDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bridge_call_duration_seconds",
		Help:    "Duration of bridge method calls.",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"method"})

	eventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bridge_events_published_total",
		Help: "Events pushed to the host event stream.",
	}, []string{"event"})

	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bridge_events_dropped_total",
		Help: "Events dropped because a subscriber was too slow.",
	})

	eventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bridge_event_subscribers",
		Help: "Open event stream connections.",
	})
)
