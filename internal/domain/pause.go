package domain

import "sync"

// PauseRegistry is the set of agent names currently barred from
// dispatch. Membership blocks GET /dequeue for that agent; it does not
// block enqueue, completion, cancellation, inspection, or reorder
// controls. It is synchronized independently of Queue.
type PauseRegistry struct {
	mu     sync.RWMutex
	paused map[string]struct{}
}

// NewPauseRegistry constructs an empty registry.
func NewPauseRegistry() *PauseRegistry {
	return &PauseRegistry{paused: make(map[string]struct{})}
}

// Pause adds agent to the pause set. Idempotent.
func (r *PauseRegistry) Pause(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused[agent] = struct{}{}
}

// Resume removes agent from the pause set. Idempotent.
func (r *PauseRegistry) Resume(agent string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.paused, agent)
}

// Contains reports whether agent is currently paused.
func (r *PauseRegistry) Contains(agent string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.paused[agent]
	return ok
}

// List returns the currently paused agents in unspecified order.
func (r *PauseRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.paused))
	for agent := range r.paused {
		out = append(out, agent)
	}
	return out
}
