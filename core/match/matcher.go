// Package match ranks eligible responders for a case by proximity, rating
// and capability fit. Matching only reads the geo index and the directory;
// it takes no locks and can run fully in parallel with other matches.
package match

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/responder"
)

// ErrNoCandidates is returned when radius expansion exhausts its ceiling
// without finding an eligible responder. Recoverable: the coordinator
// retries with backoff.
var ErrNoCandidates = errors.New("no candidate responder found")

// Candidate is an ephemeral ranking entry for a single matching attempt.
type Candidate struct {
	ResponderID string
	DistanceM   float64
	Score       float64
	Rating      float64
}

// Matcher computes ranked candidate lists using the directory's geo index.
type Matcher struct {
	cfg Config
	dir *responder.Directory
	log logger.Logger
}

// New creates a matcher. The config must have been validated.
func New(cfg Config, dir *responder.Directory, log logger.Logger) *Matcher {
	return &Matcher{cfg: cfg, dir: dir, log: log}
}

// Candidates returns eligible responders ranked by descending score. The
// search starts at the priority's initial radius and doubles it until a
// candidate appears or the doubling ceiling is reached. Responders listed in
// exclude are skipped for this attempt.
func (m *Matcher) Candidates(c model.Case, exclude map[string]struct{}) ([]Candidate, error) {
	radius := m.cfg.initialRadius(c.Priority)
	for attempt := 0; attempt <= m.cfg.MaxDoublings; attempt++ {
		cands := m.collect(c, radius, exclude)
		if len(cands) > 0 {
			rank(cands)
			m.log.Debugw("match candidates", map[string]any{
				"case_id":    c.ID,
				"radius_m":   radius,
				"doublings":  attempt,
				"candidates": len(cands),
			})
			return cands, nil
		}
		radius *= 2
	}
	return nil, fmt.Errorf("%w: case %s", ErrNoCandidates, c.ID)
}

func (m *Matcher) collect(c model.Case, radiusM float64, exclude map[string]struct{}) []Candidate {
	var cands []Candidate
	for _, res := range m.dir.Index().QueryRadius(c.Location, radiusM) {
		if _, skip := exclude[res.ID]; skip {
			continue
		}
		r, err := m.dir.Get(res.ID)
		if err != nil || !r.Available {
			continue
		}
		if !r.HasAllTags(c.RequiredTags) {
			continue
		}
		// Respect the responder's own coverage radius.
		if res.DistanceM > r.ResponseRadiusM {
			continue
		}
		cands = append(cands, Candidate{
			ResponderID: r.ID,
			DistanceM:   res.DistanceM,
			Rating:      r.Rating,
			Score:       m.score(res.DistanceM, radiusM, r, c),
		})
	}
	return cands
}

// score combines normalized proximity, rating and specialization. A
// responder tagged with the case's category gets the specialization bonus.
func (m *Matcher) score(distanceM, radiusM float64, r model.Responder, c model.Case) float64 {
	proximity := 1 - distanceM/radiusM
	if proximity < 0 {
		proximity = 0
	}
	typeMatch := 0.0
	if r.HasTag(c.Type) {
		typeMatch = 1
	}
	return m.cfg.DistanceWeight*proximity +
		m.cfg.RatingWeight*(r.Rating/5) +
		m.cfg.TagWeight*typeMatch
}

// rank sorts by descending score; ties break on lower distance, then higher
// rating, then responder id, so the ordering is reproducible.
func rank(cands []Candidate) {
	sort.Slice(cands, func(a, b int) bool {
		if cands[a].Score != cands[b].Score {
			return cands[a].Score > cands[b].Score
		}
		if cands[a].DistanceM != cands[b].DistanceM {
			return cands[a].DistanceM < cands[b].DistanceM
		}
		if cands[a].Rating != cands[b].Rating {
			return cands[a].Rating > cands[b].Rating
		}
		return cands[a].ResponderID < cands[b].ResponderID
	})
}
