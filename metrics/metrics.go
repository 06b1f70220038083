// Package metrics provides Prometheus-based metrics recording for
// conversation turns. The Recorder interface keeps the orchestrator
// decoupled from Prometheus; NoOpRecorder is the default.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives turn-level observations from the orchestrator.
type Recorder interface {
	// ObserveTurn records one completed turn with its classified intent,
	// outcome status (success, model_error) and duration.
	ObserveTurn(intent, status string, duration time.Duration)

	// ObserveRateLimited records a turn rejected by the rate limiter.
	ObserveRateLimited(tier string)
}

// NoOpRecorder discards all observations.
type NoOpRecorder struct{}

func (NoOpRecorder) ObserveTurn(string, string, time.Duration) {}
func (NoOpRecorder) ObserveRateLimited(string)                 {}

// PrometheusRecorder implements Recorder using Prometheus metrics registered
// on the default registry.
type PrometheusRecorder struct {
	turnsTotal       *prometheus.CounterVec
	turnDuration     *prometheus.HistogramVec
	rateLimitedTotal *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder. Construct it once per process;
// promauto panics on duplicate registration.
func NewPrometheusRecorder() *PrometheusRecorder {
	return &PrometheusRecorder{
		turnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_turns_total",
				Help: "Total number of conversation turns by intent and status",
			},
			[]string{"intent", "status"},
		),
		turnDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "chat_turn_duration_seconds",
				Help:    "Duration of conversation turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"intent"},
		),
		rateLimitedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "chat_rate_limited_total",
				Help: "Total number of turns rejected by the rate limiter, by tier",
			},
			[]string{"tier"},
		),
	}
}

func (p *PrometheusRecorder) ObserveTurn(intent, status string, duration time.Duration) {
	if intent == "" {
		intent = "unknown"
	}
	p.turnsTotal.WithLabelValues(intent, status).Inc()
	p.turnDuration.WithLabelValues(intent).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) ObserveRateLimited(tier string) {
	p.rateLimitedTotal.WithLabelValues(tier).Inc()
}
