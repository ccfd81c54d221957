// Package registry is the authoritative store of emergency cases and their
// state machine. Each case is guarded by its own lock so dispatch attempts
// for different cases never contend; racing attempts for the same case
// serialize here. Every committed transition writes exactly one audit event.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/audit"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/store"
)

var (
	// ErrNotFound is returned when the case id is unknown.
	ErrNotFound = errors.New("case not found")
	// ErrInvalidTransition is returned when the requested edge is not part
	// of the case lifecycle. State is left untouched.
	ErrInvalidTransition = errors.New("invalid case transition")
)

// legalEdges is the complete lifecycle edge set. No other transition is
// accepted.
var legalEdges = map[model.CaseStatus][]model.CaseStatus{
	model.StatusActive:    {model.StatusMatching, model.StatusEscalated, model.StatusCancelled},
	model.StatusMatching:  {model.StatusActive, model.StatusAssigned, model.StatusEscalated, model.StatusCancelled},
	model.StatusAssigned:  {model.StatusMatching, model.StatusEnRoute, model.StatusEscalated, model.StatusCancelled},
	model.StatusEnRoute:   {model.StatusResolved, model.StatusCancelled},
	model.StatusEscalated: {model.StatusMatching, model.StatusCancelled},
}

func edgeAllowed(from, to model.CaseStatus) bool {
	for _, s := range legalEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition describes one requested state change. Guard, when set, runs
// under the case lock after edge validation and may veto the commit; this is
// where the coordinator reserves the responder so the whole check-and-set is
// indivisible. Mutate applies field changes on success.
type Transition struct {
	To          model.CaseStatus
	Action      model.AuditAction
	PerformedBy string
	Notes       string
	Guard       func(c model.Case) error
	Mutate      func(c *model.Case)
}

type caseEntry struct {
	mu sync.Mutex
	c  model.Case
}

// Registry holds the live case set, their locks and the audit log.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*caseEntry

	audit *audit.Log
	store store.CaseStore
	log   logger.Logger
}

// New creates a registry. A nil store disables case persistence.
func New(auditLog *audit.Log, st store.CaseStore, log logger.Logger) *Registry {
	return &Registry{
		entries: make(map[string]*caseEntry),
		audit:   auditLog,
		store:   st,
		log:     log,
	}
}

// Create validates the report, stores it as Active and writes the Created
// audit event.
func (r *Registry) Create(c model.Case, performedBy string) (model.Case, error) {
	if err := c.Validate(); err != nil {
		return model.Case{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Status = model.StatusActive
	c.ResponderID = ""
	c.CreatedAt = time.Now()
	c.ResolvedAt = time.Time{}

	r.mu.Lock()
	if _, exists := r.entries[c.ID]; exists {
		r.mu.Unlock()
		return model.Case{}, fmt.Errorf("case %s already exists", c.ID)
	}
	r.entries[c.ID] = &caseEntry{c: c}
	r.mu.Unlock()

	r.audit.Append(c.ID, model.ActionCreated, performedBy, "priority "+c.Priority.String())
	r.persist(c)
	return c, nil
}

// Get returns a copy of the case.
func (r *Registry) Get(id string) (model.Case, error) {
	e, err := r.entry(id)
	if err != nil {
		return model.Case{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.c, nil
}

// AuditTrail returns the ordered audit history for a case.
func (r *Registry) AuditTrail(id string) ([]model.AuditEvent, error) {
	if _, err := r.entry(id); err != nil {
		return nil, err
	}
	return r.audit.Events(id), nil
}

// Apply atomically performs one transition. Under the case lock it checks
// the edge, runs the guard, mutates the case, verifies the responder-holding
// invariant and appends the audit event. Illegal edges are logged and leave
// the case untouched.
func (r *Registry) Apply(id string, t Transition) (model.Case, error) {
	e, err := r.entry(id)
	if err != nil {
		return model.Case{}, err
	}

	e.mu.Lock()
	prev := e.c
	if !edgeAllowed(prev.Status, t.To) {
		e.mu.Unlock()
		r.log.Warnf("case %s: rejected transition %s -> %s", id, prev.Status, t.To)
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev.Status, t.To)
	}
	if t.Guard != nil {
		if err := t.Guard(prev); err != nil {
			e.mu.Unlock()
			return prev, err
		}
	}
	next := prev
	next.Status = t.To
	if t.Mutate != nil {
		t.Mutate(&next)
	}
	if next.HoldsResponder() != (next.ResponderID != "") {
		e.mu.Unlock()
		return prev, fmt.Errorf("case %s: responder invariant violated in %s", id, next.Status)
	}
	e.c = next
	r.audit.Append(id, t.Action, t.PerformedBy, t.Notes)
	e.mu.Unlock()

	r.persist(next)
	return next, nil
}

func (r *Registry) entry(id string) (*caseEntry, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

// persist writes the case snapshot through to the durable store, best
// effort, outside any case lock.
func (r *Registry) persist(c model.Case) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveCase(context.Background(), c); err != nil {
		r.log.Errorf("case persist failed for %s: %v", c.ID, err)
	}
}
