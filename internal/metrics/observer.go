package metrics

import "taskdispatch/internal/domain"

// QueueObserver adapts the Prometheus collectors in this package to
// domain.QueueMetricsObserver so a Queue can report every mutation
// under its own critical section.
type QueueObserver struct{}

func (QueueObserver) ObserveEnqueue(agent string, _ domain.Priority) {
	QueueOpsTotal.WithLabelValues("enqueue", agent).Inc()
}

func (QueueObserver) ObserveDequeue(agent string, _ domain.Priority) {
	QueueOpsTotal.WithLabelValues("dequeue", agent).Inc()
}

func (QueueObserver) ObserveComplete(agent string) {
	QueueOpsTotal.WithLabelValues("complete", agent).Inc()
}

func (QueueObserver) ObserveCancel(agent string, removed int) {
	QueueOpsTotal.WithLabelValues("cancel", agent).Add(float64(removed))
}

func (QueueObserver) ObserveSkipNext(agent string, moved bool) {
	if moved {
		QueueOpsTotal.WithLabelValues("skip_next", agent).Inc()
	}
}

func (QueueObserver) ObserveBringForward(agent string, moved bool) {
	if moved {
		QueueOpsTotal.WithLabelValues("bring_forward", agent).Inc()
	}
}

// ObserveDepths is called under the queue's own lock on every mutation,
// so these gauges are never stale relative to the lanes they describe.
func (QueueObserver) ObserveDepths(high, low, inflight int) {
	QueuedHigh.Set(float64(high))
	QueuedLow.Set(float64(low))
	Inflight.Set(float64(inflight))
}
