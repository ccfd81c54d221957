// Package store provides reference implementations of the durable store
// interfaces: an in-memory store for tests and single-process deployments,
// and a JSONL append log for audit events.
package store

import (
	"context"
	"sync"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// MemoryStore keeps snapshots in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu         sync.RWMutex
	cases      map[string]model.Case
	responders map[string]model.Responder
	audits     map[string][]model.AuditEvent
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		cases:      make(map[string]model.Case),
		responders: make(map[string]model.Responder),
		audits:     make(map[string][]model.AuditEvent),
	}
}

// SaveCase implements store.CaseStore.
func (s *MemoryStore) SaveCase(_ context.Context, c model.Case) error {
	s.mu.Lock()
	s.cases[c.ID] = c
	s.mu.Unlock()
	return nil
}

// SaveResponder implements store.ResponderStore.
func (s *MemoryStore) SaveResponder(_ context.Context, r model.Responder) error {
	s.mu.Lock()
	s.responders[r.ID] = r
	s.mu.Unlock()
	return nil
}

// AppendAuditEvent implements store.AuditStore.
func (s *MemoryStore) AppendAuditEvent(_ context.Context, ev model.AuditEvent) error {
	s.mu.Lock()
	s.audits[ev.CaseID] = append(s.audits[ev.CaseID], ev)
	s.mu.Unlock()
	return nil
}

// Case returns the stored snapshot for the case, if any.
func (s *MemoryStore) Case(id string) (model.Case, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[id]
	return c, ok
}

// AuditEvents returns the persisted audit trail for a case.
func (s *MemoryStore) AuditEvents(caseID string) []model.AuditEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AuditEvent, len(s.audits[caseID]))
	copy(out, s.audits[caseID])
	return out
}
