package runs

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsRunsTotal and metricsStepDuration back the EXPANDED MODULE LIST's
// Run Executor counters: run_executor_runs_total{status} and
// run_executor_step_duration_seconds.
var (
	metricsRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "run_executor_runs_total",
		Help: "Total runs processed by the Run Executor, by terminal/suspend status.",
	}, []string{"status"})

	metricsStepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "run_executor_step_duration_seconds",
		Help:    "Duration of one run step's execution, by step type.",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)

func init() {
	prometheus.MustRegister(metricsRunsTotal, metricsStepDuration)
}
