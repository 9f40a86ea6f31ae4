// Package http is the HTTP control/data plane for the task dispatch
// service: it translates requests into domain.Queue and
// domain.PauseRegistry calls and serializes the documented JSON
// response shapes. JSON is the sole content type for request and
// response bodies; the agent selector travels in the query string.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskdispatch/internal/domain"
	"taskdispatch/internal/metrics"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Handler routes dispatch requests to the queue core and pause
// registry.
type Handler struct {
	queue    *domain.Queue
	pauses   *domain.PauseRegistry
	audit    domain.AuditSink
	logger   *slog.Logger
	validate *validator.Validate
	tracer   trace.Tracer
}

// NewHandler constructs a Handler. audit may be domain.NoopAuditSink{}
// when no audit backend is configured.
func NewHandler(queue *domain.Queue, pauses *domain.PauseRegistry, audit domain.AuditSink, logger *slog.Logger) *Handler {
	return &Handler{
		queue:    queue,
		pauses:   pauses,
		audit:    audit,
		logger:   logger.With("component", "http-handler"),
		validate: validator.New(),
		tracer:   otel.Tracer("taskdispatch-api"),
	}
}

// instrumentedResponseWriter captures the status code written so the
// request can be counted by its outcome after the handler returns.
type instrumentedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *instrumentedResponseWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

// instrument wraps a route handler with request tracing, status-code
// metrics, and structured logging, the same layering the HTTP surface
// uses for every route.
func (h *Handler) instrument(route string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := h.tracer.Start(r.Context(), "HTTP "+r.Method+" "+route, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()
		r = r.WithContext(ctx)

		iw := &instrumentedResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(iw, r)

		metrics.HttpRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(iw.statusCode)).Inc()
		span.SetAttributes(attribute.Int("http.status_code", iw.statusCode))
		if iw.statusCode >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
		h.logger.Info("handled request", "route", route, "method", r.Method, "status", iw.statusCode)
	})
}

// RegisterRoutes registers every documented route on mux, plus a
// catch-all that produces the documented 404 JSON body for anything
// else.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/enqueue", h.instrument("/enqueue", h.handleEnqueue))
	mux.Handle("/dequeue", h.instrument("/dequeue", h.handleDequeue))
	mux.Handle("/complete/", h.instrument("/complete/{id}", h.handleComplete))
	mux.Handle("/stats", h.instrument("/stats", h.handleStats))
	mux.Handle("/jobs", h.instrument("/jobs", h.handleJobs))
	mux.Handle("/peek", h.instrument("/peek", h.handlePeek))
	mux.Handle("/control/pause", h.instrument("/control/pause", h.handlePause))
	mux.Handle("/control/resume", h.instrument("/control/resume", h.handleResume))
	mux.Handle("/control/state", h.instrument("/control/state", h.handleState))
	mux.Handle("/control/skip_next", h.instrument("/control/skip_next", h.handleSkipNext))
	mux.Handle("/control/bring_forward", h.instrument("/control/bring_forward", h.handleBringForward))
	mux.Handle("/control/stop", h.instrument("/control/stop", h.handleStop))
	mux.Handle("/control/audit", h.instrument("/control/audit", h.handleAudit))
	mux.Handle("/", h.instrument("/", h.handleNotFound))
}

func (h *Handler) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

// handleEnqueue handles POST /enqueue.
func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleNotFound(w, r)
		return
	}
	span := trace.SpanFromContext(r.Context())

	var req EnqueueRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, firstValidationError(err))
		return
	}

	job := req.ToDomainJob()
	span.SetAttributes(attribute.String("job.id", job.ID), attribute.String("agent", job.Agent))

	stored := h.queue.Enqueue(job)
	writeJSON(w, http.StatusOK, map[string]string{"id": stored.ID})
}

// handleDequeue handles GET /dequeue?agent=X. A paused agent is
// rejected before the queue core is ever consulted.
func (h *Handler) handleDequeue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if h.pauses.Contains(agent) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	job, ok := h.queue.DequeueForAgent(agent)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

// handleComplete handles POST /complete/{id}.
func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleNotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/complete/")
	if id == "" {
		writeError(w, http.StatusBadRequest, errors.New("id required"))
		return
	}

	var req CompleteRequest
	if err := decodeJSON(r.Body, &req); err != nil && !errors.Is(err, errEmptyBody) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok := req.Status != "error"

	h.queue.Complete(id, ok, req.Error)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleStats handles GET /stats.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.handleNotFound(w, r)
		return
	}
	snap := h.queue.Snapshot()

	var resp statsResponse
	resp.Queues.High = make([]jobResponse, 0, len(snap.High))
	resp.Queues.Low = make([]jobResponse, 0, len(snap.Low))
	resp.Inflight = make([]jobResponse, 0, len(snap.Inflight))
	resp.Metrics.ByAgent = make(map[string]*statsAgentMetrics)

	agentMetrics := func(agent string) *statsAgentMetrics {
		m, ok := resp.Metrics.ByAgent[agent]
		if !ok {
			m = &statsAgentMetrics{}
			resp.Metrics.ByAgent[agent] = m
		}
		return m
	}

	for _, j := range snap.High {
		resp.Queues.High = append(resp.Queues.High, toJobResponse(j))
		agentMetrics(j.Agent).QueuedHigh++
	}
	for _, j := range snap.Low {
		resp.Queues.Low = append(resp.Queues.Low, toJobResponse(j))
		agentMetrics(j.Agent).QueuedLow++
	}
	for _, j := range snap.Inflight {
		resp.Inflight = append(resp.Inflight, toJobResponse(j))
		agentMetrics(j.Agent).Inflight++
	}

	resp.Metrics.QueuedHigh = len(snap.High)
	resp.Metrics.QueuedLow = len(snap.Low)
	resp.Metrics.Inflight = len(snap.Inflight)

	writeJSON(w, http.StatusOK, resp)
}

// handleJobs handles DELETE /jobs?agent=X.
func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	removed := h.queue.CancelQueuedForAgent(agent)
	h.recordAudit(r, domain.AuditCancelQueued, agent, removed)
	writeJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handlePeek handles GET /peek?agent=X.
func (h *Handler) handlePeek(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, ok := h.queue.PeekForAgent(agent)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, peekResponse{
		Job:      toJobResponse(result.Job),
		Lane:     result.Lane,
		Position: result.Position,
	})
}

// handlePause handles POST /control/pause?agent=X.
func (h *Handler) handlePause(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.pauses.Pause(agent)
	h.recordAudit(r, domain.AuditPause, agent, 0)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleResume handles POST /control/resume?agent=X.
func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.pauses.Resume(agent)
	h.recordAudit(r, domain.AuditResume, agent, 0)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleState handles GET /control/state.
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.handleNotFound(w, r)
		return
	}
	paused := h.pauses.List()
	if paused == nil {
		paused = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"paused": paused})
}

// handleSkipNext handles POST /control/skip_next?agent=X.
func (h *Handler) handleSkipNext(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	moved := h.queue.SkipNextForAgent(agent)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": moved})
}

// handleBringForward handles POST /control/bring_forward?agent=X.
func (h *Handler) handleBringForward(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	moved := h.queue.BringForwardForAgent(agent)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": moved})
}

// handleStop handles POST /control/stop?agent=X: pause(agent) followed
// by cancel_queued_for_agent(agent), each under its own lock (the
// registry's, then the queue's). Because the pause lands first, no
// dequeue that checks the pause set after it can dispatch for agent; a
// dequeue that passed the check just before can still take one job
// between the two steps. After the response no new dispatch for agent
// occurs.
func (h *Handler) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.handleNotFound(w, r)
		return
	}
	agent, err := requireAgent(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	h.pauses.Pause(agent)
	removed := h.queue.CancelQueuedForAgent(agent)
	h.recordAudit(r, domain.AuditStop, agent, removed)

	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"paused":  true,
		"removed": removed,
	})
}

// handleAudit handles GET /control/audit.
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.handleNotFound(w, r)
		return
	}
	entries, err := h.audit.Recent(r.Context(), 100)
	if err != nil {
		entries = []domain.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, auditResponse{Entries: entries})
}

func (h *Handler) recordAudit(r *http.Request, action domain.AuditAction, agent string, removed int) {
	if err := h.audit.Record(r.Context(), domain.AuditEntry{
		Action:  action,
		Agent:   agent,
		AtUnix:  time.Now().Unix(),
		Removed: removed,
	}); err != nil {
		h.logger.Warn("audit record failed", "action", action, "agent", agent, "error", err)
	}
}

// requireAgent extracts and validates the "agent" query parameter
// shared by most routes.
func requireAgent(r *http.Request) (string, error) {
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		return "", errors.New("agent query parameter required")
	}
	return agent, nil
}

// errEmptyBody is returned by decodeJSON when the request body was
// empty; routes that treat an absent body as defaults can match it with
// errors.Is.
var errEmptyBody = errors.New("request body required")

// decodeJSON decodes body into v, translating any parse failure into a
// plain error so handlers can surface it as a 400.
func decodeJSON(body io.ReadCloser, v any) error {
	defer body.Close()
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func firstValidationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return errors.New(fe.Field() + " failed on the '" + fe.Tag() + "' tag")
	}
	return err
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
