// Package metrics holds the process-wide Prometheus collectors for the
// dispatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts HTTP requests by route, method, and
	// resulting status code.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of http requests handled by the service.",
		},
		[]string{"path", "method", "code"},
	)

	// QueueOpsTotal counts queue-core operations by kind and target
	// agent, updated in the same critical section as the mutation. For
	// "cancel" it adds the number of jobs removed; "skip_next" and
	// "bring_forward" count only calls that moved a job.
	QueueOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_ops_total",
			Help: "Total number of priority queue operations, by kind and agent.",
		},
		[]string{"op", "agent"},
	)

	// QueuedHigh is the current number of jobs sitting in the high lane.
	QueuedHigh = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queued_high",
			Help: "Current number of jobs queued in the high-priority lane.",
		},
	)

	// QueuedLow is the current number of jobs sitting in the low lane.
	QueuedLow = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queued_low",
			Help: "Current number of jobs queued in the low-priority lane.",
		},
	)

	// Inflight is the current number of jobs dequeued but not yet
	// completed.
	Inflight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inflight",
			Help: "Current number of jobs dequeued but not yet completed.",
		},
	)

	// PausedAgents is the current number of agents barred from
	// dispatch.
	PausedAgents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "paused_agents",
			Help: "Current number of agents currently paused.",
		},
	)
)
