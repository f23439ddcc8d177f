package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookDeliveriesTotal,
		webhookMessagesTotal,
		webhookDeliveryDuration,
		notifySendsTotal,
	)
}

var (
	// result: ok|bad_json|handshake_ok|handshake_denied
	webhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_deliveries_total",
			Help: "Inbound webhook requests by result.",
		},
		[]string{"result"},
	)

	// outcome: issued|duplicate|rejected|failed|skipped
	// reason: bounded parse rule or error class
	webhookMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_messages_total",
			Help: "Inbound messages processed by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	webhookDeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "webhook_delivery_duration_seconds",
			Help:    "Time spent processing one webhook delivery, notifications included.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	// status: sent|error
	notifySendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_sends_total",
			Help: "Outbound notifications by channel and delivery status.",
		},
		[]string{"channel", "status"},
	)
)

func IncWebhookDelivery(result string) {
	webhookDeliveriesTotal.WithLabelValues(norm(result)).Inc()
}

func IncWebhookMessage(outcome, reason string) {
	webhookMessagesTotal.WithLabelValues(norm(outcome), norm(reason)).Inc()
}

func ObserveWebhookDelivery(d time.Duration) {
	webhookDeliveryDuration.Observe(d.Seconds())
}

func IncNotify(channel, status string) {
	notifySendsTotal.WithLabelValues(norm(channel), norm(status)).Inc()
}
