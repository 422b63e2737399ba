// Package metrics exposes prometheus instrumentation for the benchmarker
// itself: how many runs are in flight per destination, how runs terminate,
// and how long they take end to end.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const MetricsPrefix = "galaxy_benchmarker_"

var runsInFlightGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: MetricsPrefix + "runs_in_flight",
		Help: "Number of runs currently executing, by destination",
	},
	[]string{"destination"},
)

var runsTerminalCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: MetricsPrefix + "runs_total",
		Help: "Number of runs that reached a terminal state, by destination and state",
	},
	[]string{"destination", "state"},
)

var runDurationHist = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    MetricsPrefix + "run_duration_seconds",
		Help:    "End-to-end duration of successful runs in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600, 7200},
	},
	[]string{"destination", "workflow"},
)

func RecordRunStarted(destination string) {
	runsInFlightGauge.WithLabelValues(destination).Inc()
}

func RecordRunFinished(destination, state string) {
	runsInFlightGauge.WithLabelValues(destination).Dec()
	runsTerminalCounter.WithLabelValues(destination, state).Inc()
}

func RecordRunDuration(destination, workflow string, duration time.Duration) {
	runDurationHist.WithLabelValues(destination, workflow).Observe(duration.Seconds())
}
