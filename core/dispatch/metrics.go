package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	casesReported       *prometheus.CounterVec
	assignmentsTotal    *prometheus.CounterVec
	assignmentConflicts prometheus.Counter
	ackTimeouts         prometheus.Counter
	escalationsTotal    prometheus.Counter
	matchLatency        prometheus.Histogram
	ackLatency          *prometheus.HistogramVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, prometheus.Counter, prometheus.Counter, prometheus.Counter, prometheus.Histogram, *prometheus.HistogramVec) {
	reported := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_cases_reported_total",
			Help: "Number of emergency cases reported",
		},
		[]string{"priority"},
	)
	assigned := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_assignments_total",
			Help: "Number of committed responder assignments",
		},
		[]string{"priority"},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_assignment_conflicts_total",
			Help: "Number of assignment commits lost to a concurrent dispatch",
		},
	)
	timeouts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_ack_timeouts_total",
			Help: "Number of assignments that missed their acknowledgement deadline",
		},
	)
	escalations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_escalations_total",
			Help: "Number of cases escalated to supervisors",
		},
	)
	mLat := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_match_latency_seconds",
			Help:    "Latency of one matching attempt",
			Buckets: prometheus.DefBuckets,
		},
	)
	aLat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_ack_latency_seconds",
			Help:    "Time from assignment commit to responder acknowledgement",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"priority"},
	)
	return reported, assigned, conflicts, timeouts, escalations, mLat, aLat
}

func init() {
	casesReported, assignmentsTotal, assignmentConflicts, ackTimeouts, escalationsTotal, matchLatency, ackLatency = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(casesReported, assignmentsTotal, assignmentConflicts, ackTimeouts, escalationsTotal, matchLatency, ackLatency)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	casesReported, assignmentsTotal, assignmentConflicts, ackTimeouts, escalationsTotal, matchLatency, ackLatency = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
