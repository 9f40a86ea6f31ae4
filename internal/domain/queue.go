package domain

import "sync"

// Snapshot is a shallow, consistent-instant copy of the queue's three
// live collections. Lane order is preserved; inflight order is
// unspecified.
type Snapshot struct {
	High     []Job
	Low      []Job
	Inflight []Job
}

// PeekResult is the head-for-agent job together with the lane it was
// found in and its zero-based index within that lane.
type PeekResult struct {
	Job      Job
	Lane     Priority
	Position int
}

// QueueMetricsObserver receives a callback for every mutating queue
// operation, under the same critical section that performed the
// mutation, so a caller wiring metrics never observes a state in which
// the gauges and the lanes have drifted apart. Implementations must not
// call back into the Queue.
type QueueMetricsObserver interface {
	ObserveEnqueue(agent string, priority Priority)
	ObserveDequeue(agent string, priority Priority)
	ObserveComplete(agent string)
	ObserveCancel(agent string, removed int)
	ObserveSkipNext(agent string, moved bool)
	ObserveBringForward(agent string, moved bool)

	// ObserveDepths reports the current size of each collection. It is
	// called at the end of every mutating method, still under the
	// queue's lock, so a gauge reader never sees a depth that is stale
	// relative to the lanes it describes.
	ObserveDepths(high, low, inflight int)
}

type noopObserver struct{}

func (noopObserver) ObserveEnqueue(string, Priority)  {}
func (noopObserver) ObserveDequeue(string, Priority)  {}
func (noopObserver) ObserveComplete(string)           {}
func (noopObserver) ObserveCancel(string, int)        {}
func (noopObserver) ObserveSkipNext(string, bool)     {}
func (noopObserver) ObserveBringForward(string, bool) {}
func (noopObserver) ObserveDepths(int, int, int)      {}

// Queue is the sole authority over the high lane, the low lane, and the
// inflight table. Every exported method is atomic with respect to every
// other: no caller can observe or mutate a partially-modified state.
//
// A single mutex guards all three collections as one logical unit.
// Finer-grained locking is unsound here: peek, skip_next, and
// bring_forward all cross lanes in a single logical step.
type Queue struct {
	mu       sync.Mutex
	high     []Job
	low      []Job
	inflight map[string]Job
	obs      QueueMetricsObserver
}

// NewQueue constructs an empty queue. A nil observer is replaced with a
// no-op so callers that don't care about metrics can omit it.
func NewQueue(obs QueueMetricsObserver) *Queue {
	if obs == nil {
		obs = noopObserver{}
	}
	return &Queue{
		inflight: make(map[string]Job),
		obs:      obs,
	}
}

// Enqueue appends job to the high lane if its priority is "high", else
// to the low lane, and returns the stored job.
func (q *Queue) Enqueue(job Job) Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job.Priority == PriorityHigh {
		q.high = append(q.high, job)
	} else {
		job.Priority = PriorityLow
		q.low = append(q.low, job)
	}
	q.obs.ObserveEnqueue(job.Agent, job.Priority)
	q.reportDepths()
	return job
}

// DequeueForAgent scans the high lane from the head for the first job
// targeted at agent, then the low lane, moves it into the inflight
// table, and returns it. It returns false if no job for agent is
// queued. It does not consult any pause state — that gate belongs to
// the caller.
func (q *Queue) DequeueForAgent(agent string) (Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.popFirstMatch(&q.high, agent); ok {
		q.inflight[job.ID] = job
		q.obs.ObserveDequeue(agent, job.Priority)
		q.reportDepths()
		return job, true
	}
	if job, ok := q.popFirstMatch(&q.low, agent); ok {
		q.inflight[job.ID] = job
		q.obs.ObserveDequeue(agent, job.Priority)
		q.reportDepths()
		return job, true
	}
	return Job{}, false
}

// Complete retires id from the inflight table. Absence of id is not an
// error: completion is idempotent. ok and detail are accepted for
// parity with the wire contract but are not persisted.
func (q *Queue) Complete(id string, ok bool, detail string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, present := q.inflight[id]
	delete(q.inflight, id)
	if present {
		q.obs.ObserveComplete(job.Agent)
		q.reportDepths()
	}
}

// Snapshot returns shallow copies of the high lane, the low lane, and
// the inflight table at a single consistent instant.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Snapshot{
		High:     append([]Job(nil), q.high...),
		Low:      append([]Job(nil), q.low...),
		Inflight: make([]Job, 0, len(q.inflight)),
	}
	for _, j := range q.inflight {
		s.Inflight = append(s.Inflight, j)
	}
	return s
}

// CancelQueuedForAgent removes every job for agent from both lanes,
// leaving the inflight table untouched, and returns the number removed.
func (q *Queue) CancelQueuedForAgent(agent string) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := removeAllMatching(&q.high, agent) + removeAllMatching(&q.low, agent)
	q.obs.ObserveCancel(agent, removed)
	q.reportDepths()
	return removed
}

// PeekForAgent returns the head-for-agent job without mutating the
// queue: the first match in the high lane, else the first in the low
// lane, along with its lane and index.
func (q *Queue) PeekForAgent(agent string) (PeekResult, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if i := indexOfFirstMatch(q.high, agent); i >= 0 {
		return PeekResult{Job: q.high[i], Lane: PriorityHigh, Position: i}, true
	}
	if i := indexOfFirstMatch(q.low, agent); i >= 0 {
		return PeekResult{Job: q.low[i], Lane: PriorityLow, Position: i}, true
	}
	return PeekResult{}, false
}

// SkipNextForAgent finds the head-for-agent job, removes it from its
// lane, and appends it to the tail of that same lane (a same-lane
// deferral). It reports whether a matching job was found, even when the
// move has no observable effect because the job was the only one
// present for that agent.
func (q *Queue) SkipNextForAgent(agent string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.popFirstMatch(&q.high, agent); ok {
		q.high = append(q.high, job)
		q.obs.ObserveSkipNext(agent, true)
		q.reportDepths()
		return true
	}
	if job, ok := q.popFirstMatch(&q.low, agent); ok {
		q.low = append(q.low, job)
		q.obs.ObserveSkipNext(agent, true)
		q.reportDepths()
		return true
	}
	q.obs.ObserveSkipNext(agent, false)
	return false
}

// BringForwardForAgent finds the head-for-agent job, removes it from
// its lane, and inserts it at the front of the high lane, promoting it
// across lanes if it was found in low. The job's own Priority field is
// left untouched: location, not the field, is authoritative for
// dispatch. It reports whether a matching job was found.
func (q *Queue) BringForwardForAgent(agent string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if job, ok := q.popFirstMatch(&q.high, agent); ok {
		q.high = prepend(q.high, job)
		q.obs.ObserveBringForward(agent, true)
		q.reportDepths()
		return true
	}
	if job, ok := q.popFirstMatch(&q.low, agent); ok {
		q.high = prepend(q.high, job)
		q.obs.ObserveBringForward(agent, true)
		q.reportDepths()
		return true
	}
	q.obs.ObserveBringForward(agent, false)
	return false
}

// reportDepths pushes the current size of each collection to the
// observer. Callers must hold q.mu.
func (q *Queue) reportDepths() {
	q.obs.ObserveDepths(len(q.high), len(q.low), len(q.inflight))
}

// popFirstMatch removes and returns the first job in *lane whose Agent
// equals agent. Callers must hold q.mu.
func (q *Queue) popFirstMatch(lane *[]Job, agent string) (Job, bool) {
	i := indexOfFirstMatch(*lane, agent)
	if i < 0 {
		return Job{}, false
	}
	job := (*lane)[i]
	*lane = append((*lane)[:i], (*lane)[i+1:]...)
	return job, true
}

func indexOfFirstMatch(lane []Job, agent string) int {
	for i, j := range lane {
		if j.Agent == agent {
			return i
		}
	}
	return -1
}

func removeAllMatching(lane *[]Job, agent string) int {
	kept := (*lane)[:0]
	removed := 0
	for _, j := range *lane {
		if j.Agent == agent {
			removed++
			continue
		}
		kept = append(kept, j)
	}
	*lane = kept
	return removed
}

func prepend(lane []Job, job Job) []Job {
	return append([]Job{job}, lane...)
}
