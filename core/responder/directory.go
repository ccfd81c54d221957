// Package responder tracks responder identity, capabilities, availability
// and position. The directory is the authority for the single-case
// exclusivity rule: a responder is reserved through a compare-and-set on its
// availability flag, so two dispatch attempts racing for the same responder
// serialize here.
package responder

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/geo"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

var (
	// ErrNotFound is returned when the responder id is unknown.
	ErrNotFound = errors.New("responder not found")
	// ErrUnavailable is returned by Reserve when the responder is already
	// held by another case or has gone offline.
	ErrUnavailable = errors.New("responder not available")
)

// Directory is an in-memory responder registry backed by a geo index.
type Directory struct {
	mu    sync.RWMutex
	byID  map[string]model.Responder
	index *geo.Index
	log   logger.Logger
}

// NewDirectory creates an empty directory and its spatial index.
func NewDirectory(log logger.Logger) *Directory {
	return &Directory{
		byID:  make(map[string]model.Responder),
		index: geo.NewIndex(),
		log:   log,
	}
}

// Index exposes the spatial index for read-only matching queries.
func (d *Directory) Index() *geo.Index { return d.index }

// Register validates and stores a responder. A missing id is generated.
func (d *Directory) Register(r model.Responder) (model.Responder, error) {
	if err := r.Validate(); err != nil {
		return model.Responder{}, fmt.Errorf("register responder: %w", err)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	d.mu.Lock()
	d.byID[r.ID] = r
	d.mu.Unlock()
	d.index.Upsert(r.ID, r.Location)
	d.log.Debugw("responder registered", map[string]any{"responder_id": r.ID, "tags": r.Tags})
	return r, nil
}

// Get returns a copy of the responder.
func (d *Directory) Get(id string) (model.Responder, error) {
	d.mu.RLock()
	r, ok := d.byID[id]
	d.mu.RUnlock()
	if !ok {
		return model.Responder{}, ErrNotFound
	}
	return r, nil
}

// SetAvailability flips the availability flag, e.g. from the responder's own
// heartbeat. It does not go through Reserve and must not be used to commit
// an assignment.
func (d *Directory) SetAvailability(id string, available bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.Available = available
	d.byID[id] = r
	return nil
}

// UpdateLocation records a new position and keeps the geo index in sync.
func (d *Directory) UpdateLocation(id string, p model.GeoPoint) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("update location: %w", err)
	}
	d.mu.Lock()
	r, ok := d.byID[id]
	if !ok {
		d.mu.Unlock()
		return ErrNotFound
	}
	r.Location = p
	d.byID[id] = r
	d.mu.Unlock()
	d.index.Upsert(id, p)
	return nil
}

// Reserve atomically flips an available responder to unavailable and returns
// its snapshot. This is the responder half of the assignment commit; callers
// hold the case lock first so lock order is fixed globally.
func (d *Directory) Reserve(id string) (model.Responder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.byID[id]
	if !ok {
		return model.Responder{}, ErrNotFound
	}
	if !r.Available {
		return model.Responder{}, ErrUnavailable
	}
	r.Available = false
	d.byID[id] = r
	return r, nil
}

// Release returns a reserved responder to the available pool.
func (d *Directory) Release(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.byID[id]
	if !ok {
		return ErrNotFound
	}
	r.Available = true
	d.byID[id] = r
	return nil
}

// ListAvailableByTag returns available responders carrying the tag. An empty
// tag matches every available responder.
func (d *Directory) ListAvailableByTag(tag string) []model.Responder {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var res []model.Responder
	for _, r := range d.byID {
		if r.Available && (tag == "" || r.HasTag(tag)) {
			res = append(res, r)
		}
	}
	return res
}

// Snapshot returns a copy of every registered responder, used to rebuild the
// geo index on restart.
func (d *Directory) Snapshot() []model.Responder {
	d.mu.RLock()
	defer d.mu.RUnlock()
	res := make([]model.Responder, 0, len(d.byID))
	for _, r := range d.byID {
		res = append(res, r)
	}
	return res
}
