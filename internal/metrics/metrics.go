package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PlanGenerations counts draft requests by outcome: success, repaired,
	// fallback_stub or the error code that ended the request.
	PlanGenerations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "training",
			Subsystem: "ai_plan",
			Name:      "generations_total",
			Help:      "Draft plan requests by outcome.",
		},
		[]string{"outcome"},
	)

	PlanApplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "training",
			Subsystem: "ai_plan",
			Name:      "applies_total",
			Help:      "Apply requests by result.",
		},
		[]string{"result"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "training",
			Subsystem: "ai_plan",
			Name:      "rate_limited_total",
			Help:      "Draft requests rejected by the per-actor rate limit.",
		},
	)

	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "training",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Model provider call latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"status"},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
