// Package etcd wires the dispatch service's optional etcd-backed
// infrastructure: the shared client and the control-plane audit sink.
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"taskdispatch/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// auditPrefix is the etcd key prefix under which control-plane actions
// are recorded, one key per entry.
const auditPrefix = "/taskdispatch/audit/"

// AuditSink records operator control-plane actions to etcd. It is
// advisory only: the queue's dispatch correctness never depends on it,
// so every method degrades to a logged warning rather than a failure
// visible to the HTTP caller.
type AuditSink struct {
	client *clientv3.Client
	logger *slog.Logger
}

// NewAuditSink wraps an etcd client as a domain.AuditSink.
func NewAuditSink(client *clientv3.Client, logger *slog.Logger) *AuditSink {
	return &AuditSink{
		client: client,
		logger: logger.With("component", "audit-sink"),
	}
}

// Record appends one audit entry under auditPrefix, keyed by a freshly
// minted ID so entries never collide.
func (s *AuditSink) Record(ctx context.Context, entry domain.AuditEntry) error {
	body, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	key := auditPrefix + domain.NewID()
	if _, err := s.client.Put(ctx, key, string(body)); err != nil {
		s.logger.Warn("failed to record audit entry", "action", entry.Action, "agent", entry.Agent, "error", err)
		return err
	}
	return nil
}

// Recent returns up to limit of the most recently written audit
// entries, newest first.
func (s *AuditSink) Recent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	resp, err := s.client.Get(ctx, auditPrefix, clientv3.WithPrefix())
	if err != nil {
		s.logger.Warn("failed to list audit entries", "error", err)
		return nil, err
	}

	entries := make([]domain.AuditEntry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var e domain.AuditEntry
		if err := json.Unmarshal(kv.Value, &e); err != nil {
			s.logger.Warn("skipping malformed audit entry", "key", string(kv.Key), "error", err)
			continue
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].AtUnix > entries[j].AtUnix })
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
