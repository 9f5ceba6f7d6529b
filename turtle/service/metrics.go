package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "turtle",
		Name:      "runs_total",
		Help:      "Script runs by outcome.",
	}, []string{"outcome"})
	metricRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "turtle",
		Name:      "run_duration_seconds",
		Help:      "Wall time of script runs, including failed ones.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	})
	metricSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "turtle",
		Name:      "sessions_active",
		Help:      "Drawing sessions currently held in memory.",
	})
)

func recordRun(outcome string, d time.Duration) {
	metricRuns.WithLabelValues(outcome).Inc()
	metricRunDuration.Observe(d.Seconds())
}

// RecordSessionCount publishes the number of in-memory sessions
func RecordSessionCount(n int) {
	metricSessionsActive.Set(float64(n))
}
