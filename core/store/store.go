// Package store defines the durable persistence interfaces consumed by the
// dispatch core. Real databases live behind these; the dispatch path treats
// persistence as write-through and best effort, so a store failure is logged
// but never stalls an assignment.
package store

import (
	"context"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// CaseStore persists emergency case snapshots.
type CaseStore interface {
	SaveCase(ctx context.Context, c model.Case) error
}

// AuditStore persists audit events in append order.
type AuditStore interface {
	AppendAuditEvent(ctx context.Context, ev model.AuditEvent) error
}

// ResponderStore persists responder snapshots.
type ResponderStore interface {
	SaveResponder(ctx context.Context, r model.Responder) error
}

// NopStore discards everything.
type NopStore struct{}

func (NopStore) SaveCase(context.Context, model.Case) error               { return nil }
func (NopStore) AppendAuditEvent(context.Context, model.AuditEvent) error { return nil }
func (NopStore) SaveResponder(context.Context, model.Responder) error     { return nil }
