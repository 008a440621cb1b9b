package metering

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	submittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revenium_metering_submitted_total",
		Help: "Usage records successfully delivered to the metering backend.",
	})
	failedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "revenium_metering_failed_total",
		Help: "Usage records whose delivery failed.",
	})
	skippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "revenium_metering_skipped_total",
		Help: "Usage records not delivered, by reason.",
	}, []string{"reason"})
)

const (
	skipReasonShutdown  = "shutdown"
	skipReasonQueueFull = "queue_full"
)
