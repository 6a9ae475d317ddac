package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(jobsSubmittedTotal, jobsFinishedTotal, jobPhaseDuration, workerQueueRejected) }

var jobsSubmittedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_submitted_total",
		Help: "Jobs accepted, labeled by source.",
	},
	[]string{"source"}, // 'cache', 'pipeline'
)

var jobsFinishedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "jobs_finished_total",
		Help: "Jobs that reached a terminal phase, labeled by status and failure kind.",
	},
	[]string{"status", "kind"},
)

var jobPhaseDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "job_phase_duration_seconds",
		Help:    "Time spent in each pipeline phase.",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	},
	[]string{"phase"},
)

var workerQueueRejected = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "worker_queue_rejected_total",
		Help: "Tasks rejected because the worker queue was full.",
	},
)

func IncJobSubmitted(source string) {
	jobsSubmittedTotal.WithLabelValues(norm(source)).Inc()
}

func IncJobFinished(status, kind string) {
	jobsFinishedTotal.WithLabelValues(norm(status), norm(kind)).Inc()
}

func ObservePhase(phase string, d time.Duration) {
	jobPhaseDuration.WithLabelValues(norm(phase)).Observe(d.Seconds())
}

func IncQueueRejected() { workerQueueRejected.Inc() }
