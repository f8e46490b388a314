package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SagaMetrics covers one coordinator process. CompensationExhausted is the
// operator alert for reservations that could not be released; a non-zero value
// means inventory is short until someone reconciles it by hand.
type SagaMetrics struct {
	Runs                  *prometheus.CounterVec
	StepDuration          *prometheus.HistogramVec
	CompensationRetries   prometheus.Counter
	CompensationExhausted prometheus.Counter
}

func NewSagaMetrics(reg prometheus.Registerer) *SagaMetrics {
	m := &SagaMetrics{
		Runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "orderflow",
			Subsystem: "saga",
			Name:      "runs_total",
			Help:      "Fulfillment runs by terminal status.",
		}, []string{"status"}),
		StepDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "orderflow",
			Subsystem: "saga",
			Name:      "step_duration_seconds",
			Help:      "Duration of each ledger call.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"step"}),
		CompensationRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderflow",
			Subsystem: "saga",
			Name:      "compensation_retries_total",
			Help:      "Retried stock-release calls.",
		}),
		CompensationExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "orderflow",
			Subsystem: "saga",
			Name:      "compensation_exhausted_total",
			Help:      "Stock releases abandoned after retry exhaustion (inventory drift).",
		}),
	}
	reg.MustRegister(m.Runs, m.StepDuration, m.CompensationRetries, m.CompensationExhausted)
	return m
}

func Handler() http.Handler {
	return promhttp.Handler()
}
