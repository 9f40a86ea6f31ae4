// Package reporting runs the background stats reporter: a cron-scheduled
// job that periodically logs queue stats and republishes the
// paused-agents gauge without ever
// touching queue state itself.
package reporting

import (
	"context"
	"log/slog"

	"taskdispatch/internal/domain"
	"taskdispatch/internal/metrics"

	"github.com/robfig/cron/v3"
)

// Reporter owns a cron schedule that snapshots the queue on a fixed
// cadence and emits a structured log line plus the paused_agents gauge.
// The queue-depth gauges (queued_high, queued_low, inflight) are kept
// current by domain.QueueMetricsObserver under the queue's own lock, so
// the reporter only republishes the one gauge it is authoritative for.
// It never mutates the queue or the pause registry.
type Reporter struct {
	cron   *cron.Cron
	queue  *domain.Queue
	pauses *domain.PauseRegistry
	logger *slog.Logger
}

// NewReporter builds a reporter on the given 6-field (seconds-first)
// cron expression. Construction fails fast on a malformed expression,
// the same way the codebase's scheduler rejects a bad job schedule at
// registration time rather than at run time.
func NewReporter(cronExpr string, queue *domain.Queue, pauses *domain.PauseRegistry, logger *slog.Logger) (*Reporter, error) {
	r := &Reporter{
		cron:   cron.New(cron.WithSeconds()),
		queue:  queue,
		pauses: pauses,
		logger: logger.With("component", "stats-reporter"),
	}

	if _, err := r.cron.AddFunc(cronExpr, r.report); err != nil {
		return nil, err
	}
	return r, nil
}

// Start runs the reporter until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	r.cron.Start()
	r.logger.Info("stats reporter started")
	<-ctx.Done()
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.logger.Info("stats reporter stopped")
}

func (r *Reporter) report() {
	snap := r.queue.Snapshot()

	byAgent := make(map[string]int)
	for _, j := range snap.High {
		byAgent[j.Agent]++
	}
	for _, j := range snap.Low {
		byAgent[j.Agent]++
	}

	metrics.PausedAgents.Set(float64(len(r.pauses.List())))

	r.logger.Info("queue stats",
		"queued_high", len(snap.High),
		"queued_low", len(snap.Low),
		"inflight", len(snap.Inflight),
		"distinct_agents_queued", len(byAgent),
		"paused_agents", len(r.pauses.List()),
	)
}
