package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linerelay",
			Subsystem: "webhook",
			Name:      "requests_total",
			Help:      "Webhook requests by HTTP status",
		},
		[]string{"status"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linerelay",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook events by type and outcome",
		},
		[]string{"type", "outcome"}, // outcome: handled, failed, ignored, duplicate
	)

	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "linerelay",
			Subsystem: "llm",
			Name:      "generation_duration_seconds",
			Help:      "Time spent waiting for the language model",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"result"},
	)

	GenerationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linerelay",
			Subsystem: "llm",
			Name:      "generation_failures_total",
			Help:      "Generation failures by classified kind",
		},
		[]string{"kind"},
	)

	RepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "linerelay",
			Subsystem: "line",
			Name:      "replies_total",
			Help:      "Reply API calls by result",
		},
		[]string{"result"},
	)
)
