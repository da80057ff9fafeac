package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(recipientsRegisteredTotal, autoMessagesSentTotal) }

var recipientsRegisteredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "recipients_registered_total",
		Help: "Total number of recipients created on first interaction.",
	},
)

var autoMessagesSentTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "auto_messages_sent_total",
		Help: "Auto messages delivered per scheduled pass, labeled by outcome.",
	},
	[]string{"status"},
)

func IncRecipientRegistered() { recipientsRegisteredTotal.Inc() }

func IncAutoMessage(status string) {
	autoMessagesSentTotal.WithLabelValues(norm(status)).Inc()
}
