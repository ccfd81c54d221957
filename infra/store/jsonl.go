package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// JSONLAuditStore appends audit events to a newline-delimited JSON file.
// Writes are serialized; the file is opened in append mode so restarts keep
// extending the same log.
type JSONLAuditStore struct {
	mu sync.Mutex
	f  *os.File
}

// NewJSONLAuditStore opens or creates the log file.
func NewJSONLAuditStore(path string) (*JSONLAuditStore, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &JSONLAuditStore{f: f}, nil
}

// AppendAuditEvent implements store.AuditStore.
func (s *JSONLAuditStore) AppendAuditEvent(_ context.Context, ev model.AuditEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *JSONLAuditStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
