// Package geo provides a concurrent spatial index over responder positions.
// The index is rebuildable from the responder directory and carries no
// persistence of its own.
package geo

import (
	"sort"
	"sync"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// Result is one index entry returned by a radius query.
type Result struct {
	ID        string
	Location  model.GeoPoint
	DistanceM float64
}

// Index maps responder ids to their last known position. Position updates
// are atomic per responder: a reader never observes a half-written point.
type Index struct {
	mu     sync.RWMutex
	points map[string]model.GeoPoint
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{points: make(map[string]model.GeoPoint)}
}

// Upsert inserts or replaces the position for the given responder.
func (i *Index) Upsert(id string, p model.GeoPoint) {
	i.mu.Lock()
	i.points[id] = p
	i.mu.Unlock()
}

// Remove drops the responder from the index.
func (i *Index) Remove(id string) {
	i.mu.Lock()
	delete(i.points, id)
	i.mu.Unlock()
}

// Len returns the number of indexed responders.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.points)
}

// QueryRadius returns every responder within radiusM meters of center,
// ordered by ascending distance. Equal distances order by id so results are
// reproducible.
func (i *Index) QueryRadius(center model.GeoPoint, radiusM float64) []Result {
	i.mu.RLock()
	var res []Result
	for id, p := range i.points {
		if d := model.Haversine(center, p); d <= radiusM {
			res = append(res, Result{ID: id, Location: p, DistanceM: d})
		}
	}
	i.mu.RUnlock()

	sort.Slice(res, func(a, b int) bool {
		if res[a].DistanceM != res[b].DistanceM {
			return res[a].DistanceM < res[b].DistanceM
		}
		return res[a].ID < res[b].ID
	})
	return res
}
