package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(admissionDecisionsTotal) }

var admissionDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "admission_decisions_total",
		Help: "Rate limiter decisions.",
	},
	[]string{"result"}, // 'allowed', 'denied', 'exempt'
)

func IncAdmission(result string) {
	admissionDecisionsTotal.WithLabelValues(norm(result)).Inc()
}
