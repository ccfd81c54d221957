package metrics

import (
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
)

// AssignmentRecord is a per-assignment observability event.
type AssignmentRecord struct {
	CaseID       string
	ResponderID  string
	AssignmentID string
	Priority     model.Priority
	DistanceM    float64
	Score        float64
	Acknowledged bool
	AssignedAt   time.Time
	AckLatency   time.Duration
}

// MetricsSink records assignment results for observability purposes.
type MetricsSink interface {
	RecordAssignment(recs []AssignmentRecord) error
}

// EscalationEvent captures a case being raised to supervisors.
type EscalationEvent struct {
	CaseID   string
	Priority model.Priority
	Reason   string
	Failures int
	Time     time.Time
}

// EscalationRecorder records escalation events when supported by a sink.
type EscalationRecorder interface {
	RecordEscalation(ev EscalationEvent) error
}

// NopSink discards every record.
type NopSink struct{}

// RecordAssignment implements MetricsSink.
func (NopSink) RecordAssignment([]AssignmentRecord) error { return nil }
