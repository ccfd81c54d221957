package model

import "fmt"

// Responder is a person or unit capable of being dispatched to a case.
type Responder struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"` // reference into the external identity directory

	// Tags carries the responder's capability set ("medic", "cardiac",
	// "fire", ...). Eligibility is tag coverage, not a type hierarchy.
	Tags []string `json:"tags"`

	Location        GeoPoint `json:"location"`
	Available       bool     `json:"available"`
	ResponseRadiusM float64  `json:"response_radius_m"`
	Rating          float64  `json:"rating"` // 0..5
}

// Validate checks that the responder registration is sound.
func (r Responder) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("user id is required")
	}
	if r.ResponseRadiusM <= 0 {
		return fmt.Errorf("response radius must be positive")
	}
	if r.Rating < 0 || r.Rating > 5 {
		return fmt.Errorf("rating %f out of range", r.Rating)
	}
	return r.Location.Validate()
}

// HasTag reports whether the responder carries the capability tag.
func (r Responder) HasTag(tag string) bool {
	for _, t := range r.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// HasAllTags reports whether the responder covers every required tag.
func (r Responder) HasAllTags(tags []string) bool {
	for _, t := range tags {
		if !r.HasTag(t) {
			return false
		}
	}
	return true
}
