package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookDeliveriesTotal, webhookDeadLetters) }

var webhookDeliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Webhook delivery attempts, labeled by trigger and result.",
	},
	[]string{"trigger", "result"}, // trigger: notify|replay|scheduled; result: delivered|duplicate|failed
)

var webhookDeadLetters = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "webhook_dead_letters",
		Help: "Current number of undelivered webhook events.",
	},
)

func IncWebhookDelivery(trigger, result string) {
	webhookDeliveriesTotal.WithLabelValues(norm(trigger), norm(result)).Inc()
}

func SetDeadLetters(n int) {
	webhookDeadLetters.Set(float64(n))
}
