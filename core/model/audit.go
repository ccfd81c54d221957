package model

import "time"

// AuditAction identifies the state transition recorded by an audit event.
type AuditAction int

const (
	ActionCreated AuditAction = iota
	ActionMatchAttempted
	ActionAssigned
	ActionAcknowledged
	ActionAckTimeout
	ActionReassigned
	ActionEscalated
	ActionReopened
	ActionResolved
	ActionCancelled
)

// String returns a human-readable representation of the action.
func (a AuditAction) String() string {
	switch a {
	case ActionCreated:
		return "created"
	case ActionMatchAttempted:
		return "match_attempted"
	case ActionAssigned:
		return "assigned"
	case ActionAcknowledged:
		return "acknowledged"
	case ActionAckTimeout:
		return "ack_timeout"
	case ActionReassigned:
		return "reassigned"
	case ActionEscalated:
		return "escalated"
	case ActionReopened:
		return "reopened"
	case ActionResolved:
		return "resolved"
	case ActionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// AuditEvent is one entry in a case's append-only audit trail. Seq is a
// monotonically increasing per-case sequence number assigned by the audit
// log; ordering relies on it rather than on wall-clock time.
type AuditEvent struct {
	CaseID      string      `json:"case_id"`
	Seq         int         `json:"seq"`
	Action      AuditAction `json:"action"`
	PerformedBy string      `json:"performed_by"` // user id or "system"
	Notes       string      `json:"notes,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
}
