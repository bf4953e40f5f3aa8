package telegram

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal counts handled messages.
	// Labels: command (start, add, today, ..., text)
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronoflow",
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Total number of bot messages handled, by command",
		},
		[]string{"command"},
	)

	// RateLimitedTotal counts messages dropped by the per-chat limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "chronoflow",
			Subsystem: "telegram",
			Name:      "rate_limited_total",
			Help:      "Total number of bot messages dropped by the per-chat rate limit",
		},
	)

	// SendsTotal counts outgoing messages.
	// Labels: kind (reply, reminder), result (success, error)
	SendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "chronoflow",
			Subsystem: "telegram",
			Name:      "sends_total",
			Help:      "Total number of messages sent by the bot",
		},
		[]string{"kind", "result"},
	)
)

func recordSend(kind string, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	SendsTotal.WithLabelValues(kind, result).Inc()
}
