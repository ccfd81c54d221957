package model

import (
	"fmt"
	"strings"
	"time"
)

// Priority classifies the urgency of an emergency case.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// ParsePriority converts a configuration string into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return PriorityLow, fmt.Errorf("unknown priority %q", s)
	}
}

// Valid reports whether the priority is one of the defined levels.
func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

// CaseStatus is the lifecycle state of an emergency case.
type CaseStatus int

const (
	StatusActive CaseStatus = iota
	StatusMatching
	StatusAssigned
	StatusEnRoute
	StatusResolved
	StatusCancelled
	StatusEscalated
)

// String returns a human-readable representation of the status.
func (s CaseStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusMatching:
		return "matching"
	case StatusAssigned:
		return "assigned"
	case StatusEnRoute:
		return "en_route"
	case StatusResolved:
		return "resolved"
	case StatusCancelled:
		return "cancelled"
	case StatusEscalated:
		return "escalated"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status permits no further transitions.
func (s CaseStatus) Terminal() bool {
	return s == StatusResolved || s == StatusCancelled
}

// Holding reports whether a case in this status holds a responder.
func (s CaseStatus) Holding() bool {
	return s == StatusAssigned || s == StatusEnRoute
}

// Case is one emergency report tracked through its lifecycle.
type Case struct {
	ID          string     `json:"id"`
	PatientID   string     `json:"patient_id"`
	Type        string     `json:"type"` // free-form category, e.g. "cardiac"
	Priority    Priority   `json:"priority"`
	Location    GeoPoint   `json:"location"`
	Status      CaseStatus `json:"status"`
	ResponderID string     `json:"responder_id,omitempty"` // set only while Assigned or EnRoute
	Description string     `json:"description"`

	// RequiredTags restricts eligible responders to those carrying every
	// listed capability tag. Empty means any responder qualifies.
	RequiredTags []string `json:"required_tags,omitempty"`

	CreatedAt  time.Time `json:"created_at"`
	ResolvedAt time.Time `json:"resolved_at,omitempty"`
}

// Validate checks that an incoming report is well formed.
func (c Case) Validate() error {
	if c.PatientID == "" {
		return fmt.Errorf("patient id is required")
	}
	if c.Type == "" {
		return fmt.Errorf("case type is required")
	}
	if !c.Priority.Valid() {
		return fmt.Errorf("invalid priority %d", int(c.Priority))
	}
	return c.Location.Validate()
}

// HoldsResponder reports whether the case currently holds a responder. The
// registry rejects any transition that breaks the equivalence between this
// and a non-empty ResponderID.
func (c Case) HoldsResponder() bool {
	return c.Status.Holding()
}
