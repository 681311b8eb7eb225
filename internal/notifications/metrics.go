package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "songline"

var (
	notificationQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_size",
			Help:      "Number of notifications in queue by status",
		},
		[]string{"status"},
	)

	notificationsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "enqueued_total",
			Help:      "Total notifications enqueued",
		},
		[]string{"kind", "priority"},
	)

	notificationSendOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_attempts_total",
			Help:      "Send attempts by outcome (success, skipped, error, circuit_open)",
		},
		[]string{"outcome"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Total notifications handed to a channel sender",
		},
		[]string{"channel", "status"},
	)

	notificationSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "send_duration_seconds",
			Help:      "Time to send notification",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	notificationsDeadLettered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dead_lettered_total",
			Help:      "Notifications moved to the dead-letter sink",
		},
		[]string{"kind"},
	)

	circuitBreakerOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "circuit_breaker_open",
			Help:      "1 while the delivery circuit breaker is open",
		},
	)
)

func recordEnqueued(kind Kind, priority Priority) {
	notificationsEnqueued.WithLabelValues(string(kind), string(priority)).Inc()
}

func recordSendOutcome(outcome string) {
	notificationSendOutcomes.WithLabelValues(outcome).Inc()
}

// recordNotificationSent records a sent notification metric.
func recordNotificationSent(channel Channel, status string) {
	notificationsSent.WithLabelValues(string(channel), status).Inc()
}

// recordNotificationDuration records notification send duration.
func recordNotificationDuration(channel Channel, duration time.Duration) {
	notificationSendDuration.WithLabelValues(string(channel)).Observe(duration.Seconds())
}

func recordDeadLettered(kind Kind) {
	notificationsDeadLettered.WithLabelValues(string(kind)).Inc()
}

func recordBreakerState(open bool) {
	if open {
		circuitBreakerOpen.Set(1)
		return
	}
	circuitBreakerOpen.Set(0)
}

// RecordQueueStats updates queue size metrics.
func RecordQueueStats(stats QueueStats) {
	notificationQueueSize.WithLabelValues("pending").Set(float64(stats.Pending))
	notificationQueueSize.WithLabelValues("sending").Set(float64(stats.Sending))
}
