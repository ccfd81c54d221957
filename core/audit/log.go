// Package audit implements the per-case append-only event log. Ordering is
// the coordinator's transition order, captured by a per-case sequence number
// rather than wall-clock time.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/store"
)

// Log records audit events in memory and writes them through to an optional
// durable store. The store write happens on a background goroutine so that
// appends never perform I/O while the caller holds a case lock. There is no
// update or delete operation.
type Log struct {
	mu     sync.Mutex
	events map[string][]model.AuditEvent

	store   store.AuditStore
	log     logger.Logger
	persist chan model.AuditEvent
	done    chan struct{}
}

// NewLog creates an audit log. A nil store disables persistence.
func NewLog(st store.AuditStore, log logger.Logger) *Log {
	l := &Log{
		events: make(map[string][]model.AuditEvent),
		store:  st,
		log:    log,
	}
	if st != nil {
		l.persist = make(chan model.AuditEvent, 256)
		l.done = make(chan struct{})
		go l.writer()
	}
	return l
}

func (l *Log) writer() {
	defer close(l.done)
	for ev := range l.persist {
		if err := l.store.AppendAuditEvent(context.Background(), ev); err != nil {
			l.log.Errorf("audit persist failed for case %s seq %d: %v", ev.CaseID, ev.Seq, err)
		}
	}
}

// Append records an event for the case and returns it with its sequence
// number assigned. Persistence is queued; a full queue drops the write with
// an error log rather than blocking the transition.
func (l *Log) Append(caseID string, action model.AuditAction, performedBy, notes string) model.AuditEvent {
	l.mu.Lock()
	ev := model.AuditEvent{
		CaseID:      caseID,
		Seq:         len(l.events[caseID]) + 1,
		Action:      action,
		PerformedBy: performedBy,
		Notes:       notes,
		Timestamp:   time.Now(),
	}
	l.events[caseID] = append(l.events[caseID], ev)
	l.mu.Unlock()

	if l.persist != nil {
		select {
		case l.persist <- ev:
		default:
			l.log.Errorf("audit persist queue full, dropping case %s seq %d", caseID, ev.Seq)
		}
	}
	return ev
}

// Events returns the full ordered history for a case.
func (l *Log) Events(caseID string) []model.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	evs := l.events[caseID]
	out := make([]model.AuditEvent, len(evs))
	copy(out, evs)
	return out
}

// Close drains the persistence queue and stops the writer.
func (l *Log) Close() error {
	if l.persist != nil {
		close(l.persist)
		<-l.done
	}
	return nil
}
