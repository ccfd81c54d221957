package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/Sara-Samara/HealthAidProj-sub002/core/metrics"
)

// PromSink records assignment events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	ackLatency  *prometheus.HistogramVec
	escalations *prometheus.CounterVec
}

// NewPromSink registers assignment metrics on the default Prometheus
// registerer. The Prometheus server is started separately.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "assignment_events_total",
		Help: "Total number of assignment events",
	}, []string{"priority", "acknowledged"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "assignment_ack_latency_seconds",
		Help:    "Time between assignment commit and acknowledgement",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"priority"})
	escalations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "escalation_events_total",
		Help: "Total number of escalation events",
	}, []string{"priority"})

	if err := reg.Register(assignments); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			assignments = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(escalations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			escalations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	return &PromSink{assignments: assignments, ackLatency: latency, escalations: escalations}, nil
}

// RecordAssignment increments counters for each assignment record.
func (s *PromSink) RecordAssignment(recs []coremetrics.AssignmentRecord) error {
	for _, r := range recs {
		s.assignments.WithLabelValues(r.Priority.String(), strconv.FormatBool(r.Acknowledged)).Inc()
		if r.Acknowledged {
			s.ackLatency.WithLabelValues(r.Priority.String()).Observe(r.AckLatency.Seconds())
		}
	}
	return nil
}

// RecordEscalation implements coremetrics.EscalationRecorder.
func (s *PromSink) RecordEscalation(ev coremetrics.EscalationEvent) error {
	s.escalations.WithLabelValues(ev.Priority.String()).Inc()
	return nil
}
