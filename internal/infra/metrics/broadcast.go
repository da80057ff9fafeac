package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(broadcastRunsTotal, broadcastOutcomesTotal, sendLatencySeconds, sendsInFlight)
}

var broadcastRunsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "broadcast_runs_total",
		Help: "Total number of broadcast runs started.",
	},
)

var broadcastOutcomesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "broadcast_outcomes_total",
		Help: "Delivery outcomes accumulated across runs, labeled by status.",
	},
	[]string{"status"}, // 'sent', 'failed', 'skipped'
)

var sendLatencySeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "broadcast_send_latency_seconds",
		Help:    "External send call latency distribution.",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.2, 0.4, 0.8, 1.6, 3, 5},
	},
	[]string{"success"},
)

var sendsInFlight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "broadcast_sends_in_flight",
		Help: "Number of send calls currently in flight.",
	},
)

func IncBroadcastRun() { broadcastRunsTotal.Inc() }

func IncBroadcastOutcome(status string) {
	broadcastOutcomesTotal.WithLabelValues(norm(status)).Inc()
}

func ObserveSendLatency(d time.Duration, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	sendLatencySeconds.WithLabelValues(label).Observe(d.Seconds())
}

func SendStarted()  { sendsInFlight.Inc() }
func SendFinished() { sendsInFlight.Dec() }
