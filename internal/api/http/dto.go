package http

import (
	"encoding/json"

	"taskdispatch/internal/domain"
)

// EnqueueRequest is the Data Transfer Object for POST /enqueue.
type EnqueueRequest struct {
	ID       string          `json:"id"`
	Agent    string          `json:"agent" validate:"required,min=1,max=256"`
	Model    string          `json:"model" validate:"required,min=1,max=256"`
	Priority string          `json:"priority"`
	Payload  json.RawMessage `json:"payload"`
}

// ToDomainJob converts an EnqueueRequest DTO to a domain.Job, applying
// the documented defaults: priority normalizes to "low" unless exactly
// "high", an absent payload becomes an empty object, and an absent id
// is minted fresh.
func (r *EnqueueRequest) ToDomainJob() domain.Job {
	id := r.ID
	if id == "" {
		id = domain.NewID()
	}

	payload := r.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}

	return domain.Job{
		ID:       id,
		Agent:    r.Agent,
		Model:    r.Model,
		Priority: domain.NormalizePriority(r.Priority),
		Payload:  payload,
	}
}

// CompleteRequest is the Data Transfer Object for POST /complete/{id}.
type CompleteRequest struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// jobResponse is the wire shape of a Job returned from /dequeue and
// /peek.
type jobResponse struct {
	ID       string          `json:"id"`
	Agent    string          `json:"agent"`
	Model    string          `json:"model"`
	Priority domain.Priority `json:"priority"`
	Payload  json.RawMessage `json:"payload"`
}

func toJobResponse(j domain.Job) jobResponse {
	return jobResponse{
		ID:       j.ID,
		Agent:    j.Agent,
		Model:    j.Model,
		Priority: j.Priority,
		Payload:  j.Payload,
	}
}

// statsAgentMetrics is the per-agent breakdown within /stats.metrics.by_agent.
type statsAgentMetrics struct {
	QueuedHigh int `json:"queued_high"`
	QueuedLow  int `json:"queued_low"`
	Inflight   int `json:"inflight"`
}

// statsMetrics is /stats.metrics.
type statsMetrics struct {
	QueuedHigh int                          `json:"queued_high"`
	QueuedLow  int                          `json:"queued_low"`
	Inflight   int                          `json:"inflight"`
	ByAgent    map[string]*statsAgentMetrics `json:"by_agent"`
}

// statsResponse is the full /stats response body.
type statsResponse struct {
	Queues struct {
		High []jobResponse `json:"high"`
		Low  []jobResponse `json:"low"`
	} `json:"queues"`
	Inflight []jobResponse `json:"inflight"`
	Metrics  statsMetrics  `json:"metrics"`
}

// peekResponse is the /peek response body.
type peekResponse struct {
	Job      jobResponse     `json:"job"`
	Lane     domain.Priority `json:"lane"`
	Position int             `json:"position"`
}

// auditResponse is the /control/audit response body.
type auditResponse struct {
	Entries []domain.AuditEntry `json:"entries"`
}
