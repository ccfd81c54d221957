// Package events defines the payloads published on alert channels.
//
// Available event types:
//   - CaseEvent: case lifecycle change
//   - AssignmentEvent: responder assigned to a case
//   - EscalationEvent: case raised to supervisors
package events

import (
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// CaseEvent is published on every case lifecycle change.
type CaseEvent struct {
	CaseID      string           `json:"case_id"`
	Status      model.CaseStatus `json:"status"`
	Priority    model.Priority   `json:"priority"`
	ResponderID string           `json:"responder_id,omitempty"`
	At          time.Time        `json:"at"`
}

// AssignmentEvent is published to the responder's channel when a case is
// committed to them.
type AssignmentEvent struct {
	CaseID       string         `json:"case_id"`
	ResponderID  string         `json:"responder_id"`
	AssignmentID string         `json:"assignment_id"`
	Priority     model.Priority `json:"priority"`
	Location     model.GeoPoint `json:"location"`
	DistanceM    float64        `json:"distance_m"`
	At           time.Time      `json:"at"`
}

// EscalationEvent is published to the supervisors channel after repeated
// dispatch failure or a missed critical deadline.
type EscalationEvent struct {
	CaseID   string         `json:"case_id"`
	Priority model.Priority `json:"priority"`
	Reason   string         `json:"reason"`
	Failures int            `json:"failures"`
	At       time.Time      `json:"at"`
}
