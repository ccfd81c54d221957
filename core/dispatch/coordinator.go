// Package dispatch orchestrates the case lifecycle: intake, candidate
// selection, atomic assignment, acknowledgement deadlines and escalation.
// A pool of workers processes match jobs concurrently; the only exclusive
// step is the commit, which runs under the case lock and the directory's
// availability compare-and-set, in that fixed order.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/alert"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/events"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/identity"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/match"
	coremetrics "github.com/Sara-Samara/HealthAidProj-sub002/core/metrics"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/registry"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/responder"
)

// Report is an incoming emergency report.
type Report struct {
	PatientID    string
	Type         string
	Priority     model.Priority
	Location     model.GeoPoint
	Description  string
	RequiredTags []string
}

// caseState is the coordinator's transient bookkeeping for one case. It is
// guarded by the coordinator mutex, never by the case lock.
type caseState struct {
	failures      int                 // consecutive matches without a candidate
	exclude       map[string]struct{} // responders skipped for the next cycle only
	reassigning   bool                // a previous assignment timed out
	assignmentID  string
	assignedAt    time.Time
	ackTimer      *time.Timer
	deadlineTimer *time.Timer
}

// Coordinator sequences case creation, matching and assignment.
type Coordinator struct {
	cfg         Config
	registry    *registry.Registry
	directory   *responder.Directory
	matcher     *match.Matcher
	broadcaster alert.Broadcaster
	identity    identity.Directory
	sink        coremetrics.MetricsSink
	tuner       *AckTuner
	log         logger.Logger

	jobs chan string // case ids awaiting a match cycle
	quit chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	states map[string]*caseState
}

// NewCoordinator creates a coordinator. The registry, directory, matcher and
// broadcaster are required; identity and sink may be nil.
func NewCoordinator(cfg Config, reg *registry.Registry, dir *responder.Directory, m *match.Matcher, bc alert.Broadcaster, id identity.Directory, sink coremetrics.MetricsSink, log logger.Logger) (*Coordinator, error) {
	if reg == nil || dir == nil || m == nil || bc == nil {
		return nil, fmt.Errorf("dispatch: nil parameter provided to NewCoordinator")
	}
	if id == nil {
		id = identity.StaticDirectory{}
	}
	if sink == nil {
		sink = coremetrics.NopSink{}
	}
	c := &Coordinator{
		cfg:         cfg,
		registry:    reg,
		directory:   dir,
		matcher:     m,
		broadcaster: bc,
		identity:    id,
		sink:        sink,
		tuner:       NewAckTuner(),
		log:         log,
		jobs:        make(chan string, cfg.QueueSize),
		quit:        make(chan struct{}),
		states:      make(map[string]*caseState),
	}
	return c, nil
}

// Start launches the dispatch workers.
func (c *Coordinator) Start() {
	for i := 0; i < c.cfg.Workers; i++ {
		c.wg.Add(1)
		go c.worker()
	}
}

// Run starts the workers and blocks until the context is canceled.
func (c *Coordinator) Run(ctx context.Context) error {
	c.Start()
	<-ctx.Done()
	return c.Close()
}

// Close stops the workers and cancels outstanding timers. Queued match jobs
// are dropped.
func (c *Coordinator) Close() error {
	c.once.Do(func() {
		close(c.quit)
		c.wg.Wait()
		c.mu.Lock()
		for _, st := range c.states {
			if st.ackTimer != nil {
				st.ackTimer.Stop()
			}
			if st.deadlineTimer != nil {
				st.deadlineTimer.Stop()
			}
		}
		c.mu.Unlock()
	})
	return nil
}

func (c *Coordinator) worker() {
	defer c.wg.Done()
	for {
		select {
		case id := <-c.jobs:
			c.matchCase(id)
		case <-c.quit:
			return
		}
	}
}

// ReportEmergency validates the report, registers the case as Active and
// queues the first match cycle.
func (c *Coordinator) ReportEmergency(ctx context.Context, rep Report) (string, error) {
	cs, err := c.registry.Create(model.Case{
		PatientID:    rep.PatientID,
		Type:         rep.Type,
		Priority:     rep.Priority,
		Location:     rep.Location,
		Description:  rep.Description,
		RequiredTags: rep.RequiredTags,
	}, c.resolveActor(ctx, rep.PatientID))
	if err != nil {
		return "", &ValidationError{Err: err}
	}
	casesReported.WithLabelValues(cs.Priority.String()).Inc()
	c.log.Infof("case %s reported: %s priority %s", cs.ID, cs.Type, cs.Priority)

	c.mu.Lock()
	st := c.state(cs.ID)
	if cs.Priority == model.PriorityCritical {
		deadline := time.Duration(c.cfg.CriticalEscalationSeconds) * time.Second
		st.deadlineTimer = time.AfterFunc(deadline, func() { c.onCriticalDeadline(cs.ID) })
	}
	c.mu.Unlock()

	c.publishCase(cs)
	c.enqueue(cs.ID)
	return cs.ID, nil
}

// GetCase returns the current case snapshot.
func (c *Coordinator) GetCase(id string) (model.Case, error) {
	return c.registry.Get(id)
}

// GetAuditTrail returns the ordered audit history for a case.
func (c *Coordinator) GetAuditTrail(id string) ([]model.AuditEvent, error) {
	return c.registry.AuditTrail(id)
}

// RegisterResponder registers a responder with the directory.
func (c *Coordinator) RegisterResponder(r model.Responder) (model.Responder, error) {
	reg, err := c.directory.Register(r)
	if err != nil {
		return model.Responder{}, &ValidationError{Err: err}
	}
	return reg, nil
}

// SetResponderAvailability flips a responder's availability flag.
func (c *Coordinator) SetResponderAvailability(id string, available bool) error {
	return c.directory.SetAvailability(id, available)
}

// UpdateResponderLocation records a responder heartbeat position.
func (c *Coordinator) UpdateResponderLocation(id string, p model.GeoPoint) error {
	return c.directory.UpdateLocation(id, p)
}

// AcknowledgeAssignment confirms an assignment. Exactly one of
// acknowledgement and acknowledgement timeout wins: the case's status under
// its lock decides.
func (c *Coordinator) AcknowledgeAssignment(caseID, responderID string) error {
	cs, err := c.registry.Apply(caseID, registry.Transition{
		To:          model.StatusEnRoute,
		Action:      model.ActionAcknowledged,
		PerformedBy: responderID,
		Notes:       "responder acknowledged",
		Guard: func(cur model.Case) error {
			if cur.ResponderID != responderID {
				return fmt.Errorf("%w: case %s is not assigned to %s", ErrAssignmentConflict, caseID, responderID)
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	st := c.state(caseID)
	if st.ackTimer != nil {
		st.ackTimer.Stop()
		st.ackTimer = nil
	}
	latency := time.Since(st.assignedAt)
	assignmentID := st.assignmentID
	c.mu.Unlock()

	c.tuner.Observe(latency)
	ackLatency.WithLabelValues(cs.Priority.String()).Observe(latency.Seconds())
	c.record(coremetrics.AssignmentRecord{
		CaseID:       caseID,
		ResponderID:  responderID,
		AssignmentID: assignmentID,
		Priority:     cs.Priority,
		Acknowledged: true,
		AssignedAt:   time.Now().Add(-latency),
		AckLatency:   latency,
	})
	c.publishCase(cs)
	c.log.Infof("case %s acknowledged by %s after %s", caseID, responderID, latency.Round(time.Millisecond))
	return nil
}

// ResolveCase closes an en-route case and releases its responder.
func (c *Coordinator) ResolveCase(ctx context.Context, caseID, performedBy string) error {
	var released string
	cs, err := c.registry.Apply(caseID, registry.Transition{
		To:          model.StatusResolved,
		Action:      model.ActionResolved,
		PerformedBy: c.resolveActor(ctx, performedBy),
		Mutate: func(cur *model.Case) {
			released = cur.ResponderID
			cur.ResponderID = ""
			cur.ResolvedAt = time.Now()
		},
	})
	if err != nil {
		return err
	}
	c.releaseResponder(released)
	c.clearState(caseID)
	c.publishCase(cs)
	return nil
}

// CancelCase cancels a case from any non-terminal state and releases any
// held responder.
func (c *Coordinator) CancelCase(ctx context.Context, caseID, performedBy string) error {
	var released string
	cs, err := c.registry.Apply(caseID, registry.Transition{
		To:          model.StatusCancelled,
		Action:      model.ActionCancelled,
		PerformedBy: c.resolveActor(ctx, performedBy),
		Mutate: func(cur *model.Case) {
			released = cur.ResponderID
			cur.ResponderID = ""
		},
	})
	if err != nil {
		return err
	}
	c.releaseResponder(released)
	c.clearState(caseID)
	c.publishCase(cs)
	c.log.Infof("case %s cancelled by %s", caseID, performedBy)
	return nil
}

// ReopenCase is the manual override that brings an escalated case back into
// matching.
func (c *Coordinator) ReopenCase(ctx context.Context, caseID, performedBy string) error {
	cs, err := c.registry.Apply(caseID, registry.Transition{
		To:          model.StatusMatching,
		Action:      model.ActionReopened,
		PerformedBy: c.resolveActor(ctx, performedBy),
		Notes:       "manual override",
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.state(caseID).failures = 0
	c.mu.Unlock()
	c.publishCase(cs)
	c.enqueue(caseID)
	return nil
}

// enqueue hands the case to the worker pool. A saturated queue retries
// shortly instead of blocking the caller.
func (c *Coordinator) enqueue(caseID string) {
	select {
	case c.jobs <- caseID:
	case <-c.quit:
	default:
		c.log.Warnf("dispatch queue full, delaying case %s", caseID)
		time.AfterFunc(100*time.Millisecond, func() { c.enqueue(caseID) })
	}
}

// matchCase runs one full match cycle for the case: move it into Matching,
// rank candidates and walk the list until a commit sticks.
func (c *Coordinator) matchCase(caseID string) {
	start := time.Now()
	cs, err := c.registry.Get(caseID)
	if err != nil {
		c.log.Errorf("match: %v", err)
		return
	}

	switch cs.Status {
	case model.StatusActive:
		cs, err = c.registry.Apply(caseID, registry.Transition{
			To:          model.StatusMatching,
			Action:      model.ActionMatchAttempted,
			PerformedBy: identity.SystemUser,
		})
		if err != nil {
			// Lost a race with cancellation; nothing to do.
			c.log.Debugf("match: case %s left Active first: %v", caseID, err)
			return
		}
	case model.StatusMatching:
		// Re-dispatch after an acknowledgement timeout; the AckTimeout
		// event already recorded the transition into Matching.
	default:
		c.log.Debugf("match: case %s in %s, skipping", caseID, cs.Status)
		return
	}

	c.mu.Lock()
	st := c.state(caseID)
	exclude := st.exclude
	st.exclude = nil // exclusion lasts one cycle
	c.mu.Unlock()

	cands, err := c.matcher.Candidates(cs, exclude)
	matchLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		if errors.Is(err, match.ErrNoCandidates) {
			c.handleNoCandidate(cs)
			return
		}
		c.log.Errorf("match: case %s: %v", caseID, err)
		return
	}

	for _, cand := range cands {
		ok, stop := c.tryAssign(cs, cand)
		if ok {
			return
		}
		if stop {
			return
		}
	}
	// Every ranked candidate was grabbed by a concurrent dispatch.
	c.handleNoCandidate(cs)
}

// tryAssign performs the atomic commit for one candidate. The guard runs
// under the case lock and reserves the responder through the directory's
// compare-and-set, so both preconditions are re-checked in one indivisible
// step. A conflict moves on to the next candidate; a vanished or cancelled
// case stops the cycle.
func (c *Coordinator) tryAssign(cs model.Case, cand match.Candidate) (assigned, stop bool) {
	assignmentID := uuid.NewString()
	c.mu.Lock()
	action := model.ActionAssigned
	if c.state(cs.ID).reassigning {
		action = model.ActionReassigned
	}
	c.mu.Unlock()
	committed, err := c.registry.Apply(cs.ID, registry.Transition{
		To:          model.StatusAssigned,
		Action:      action,
		PerformedBy: identity.SystemUser,
		Notes:       fmt.Sprintf("responder %s at %.0f m", cand.ResponderID, cand.DistanceM),
		Guard: func(model.Case) error {
			if _, rerr := c.directory.Reserve(cand.ResponderID); rerr != nil {
				return fmt.Errorf("%w: %v", ErrAssignmentConflict, rerr)
			}
			return nil
		},
		Mutate: func(cur *model.Case) {
			cur.ResponderID = cand.ResponderID
		},
	})
	if err != nil {
		if errors.Is(err, ErrAssignmentConflict) {
			assignmentConflicts.Inc()
			c.log.Debugf("case %s: responder %s grabbed concurrently, trying next", cs.ID, cand.ResponderID)
			return false, false
		}
		// InvalidTransition here means the case left Matching under us
		// (cancelled or committed by another worker).
		c.log.Debugf("case %s: assignment aborted: %v", cs.ID, err)
		return false, true
	}

	now := time.Now()
	c.mu.Lock()
	st := c.state(cs.ID)
	st.failures = 0
	st.reassigning = false
	st.assignmentID = assignmentID
	st.assignedAt = now
	if st.deadlineTimer != nil {
		st.deadlineTimer.Stop()
		st.deadlineTimer = nil
	}
	deadline := c.cfg.ackTimeout(committed.Priority)
	if c.cfg.AdaptiveAckTimeout {
		deadline = c.tuner.Suggest(deadline)
	}
	st.ackTimer = time.AfterFunc(deadline, func() {
		c.onAckTimeout(cs.ID, cand.ResponderID, assignmentID)
	})
	c.mu.Unlock()

	assignmentsTotal.WithLabelValues(committed.Priority.String()).Inc()
	c.record(coremetrics.AssignmentRecord{
		CaseID:       cs.ID,
		ResponderID:  cand.ResponderID,
		AssignmentID: assignmentID,
		Priority:     committed.Priority,
		DistanceM:    cand.DistanceM,
		Score:        cand.Score,
		AssignedAt:   now,
	})
	c.broadcaster.Publish(alert.ResponderChannel(cand.ResponderID), events.AssignmentEvent{
		CaseID:       cs.ID,
		ResponderID:  cand.ResponderID,
		AssignmentID: assignmentID,
		Priority:     committed.Priority,
		Location:     committed.Location,
		DistanceM:    cand.DistanceM,
		At:           now,
	})
	c.publishCase(committed)
	c.log.Infof("case %s assigned to %s (%.0f m, score %.3f)", cs.ID, cand.ResponderID, cand.DistanceM, cand.Score)
	return true, false
}

// handleNoCandidate returns the case to Active and schedules a retry with
// backoff, or escalates after too many consecutive failures.
func (c *Coordinator) handleNoCandidate(cs model.Case) {
	c.mu.Lock()
	st := c.state(cs.ID)
	st.failures++
	failures := st.failures
	c.mu.Unlock()

	if failures >= c.cfg.MaxMatchFailures {
		c.escalate(cs.ID, fmt.Sprintf("no candidate after %d attempts", failures), failures)
		return
	}

	_, err := c.registry.Apply(cs.ID, registry.Transition{
		To:          model.StatusActive,
		Action:      model.ActionMatchAttempted,
		PerformedBy: identity.SystemUser,
		Notes:       fmt.Sprintf("no candidate found, attempt %d", failures),
	})
	if err != nil {
		c.log.Debugf("case %s: retry abandoned: %v", cs.ID, err)
		return
	}
	backoff := c.cfg.retryBackoff(failures)
	c.log.Infof("case %s: no candidate (attempt %d), retrying in %s", cs.ID, failures, backoff)
	time.AfterFunc(backoff, func() { c.enqueue(cs.ID) })
}

// onAckTimeout fires when an assignment misses its acknowledgement deadline.
// The assignment id pins the timer to the assignment that armed it; the
// registry's edge check then decides the race against a concurrent
// acknowledgement.
func (c *Coordinator) onAckTimeout(caseID, responderID, assignmentID string) {
	c.mu.Lock()
	st := c.state(caseID)
	if st.assignmentID != assignmentID {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	_, err := c.registry.Apply(caseID, registry.Transition{
		To:          model.StatusMatching,
		Action:      model.ActionAckTimeout,
		PerformedBy: identity.SystemUser,
		Notes:       "responder " + responderID + " did not acknowledge",
		Guard: func(cur model.Case) error {
			if cur.ResponderID != responderID {
				return fmt.Errorf("%w: assignment superseded", ErrAssignmentConflict)
			}
			return nil
		},
		Mutate: func(cur *model.Case) {
			cur.ResponderID = ""
		},
	})
	if err != nil {
		// The acknowledgement won the race, or the case was cancelled.
		c.log.Debugf("case %s: ack timeout superseded: %v", caseID, err)
		return
	}

	ackTimeouts.Inc()
	c.releaseResponder(responderID)
	c.mu.Lock()
	st = c.state(caseID)
	st.assignmentID = ""
	st.reassigning = true
	st.exclude = map[string]struct{}{responderID: {}}
	c.mu.Unlock()
	c.log.Warnf("case %s: responder %s missed the ack deadline, re-dispatching", caseID, responderID)
	c.enqueue(caseID)
}

// onCriticalDeadline escalates a critical case that is still unassigned when
// its priority deadline expires.
func (c *Coordinator) onCriticalDeadline(caseID string) {
	cs, err := c.registry.Get(caseID)
	if err != nil {
		return
	}
	if cs.Status != model.StatusActive && cs.Status != model.StatusMatching {
		return
	}
	c.mu.Lock()
	failures := c.state(caseID).failures
	c.mu.Unlock()
	c.escalate(caseID, "critical case unassigned past deadline", failures)
}

// escalate raises the case to supervisors. The edge check tolerates racing
// transitions: if the case got assigned or cancelled meanwhile, nothing
// happens.
func (c *Coordinator) escalate(caseID, reason string, failures int) {
	cs, err := c.registry.Apply(caseID, registry.Transition{
		To:          model.StatusEscalated,
		Action:      model.ActionEscalated,
		PerformedBy: identity.SystemUser,
		Notes:       reason,
	})
	if err != nil {
		c.log.Debugf("case %s: escalation skipped: %v", caseID, err)
		return
	}
	escalationsTotal.Inc()
	ev := events.EscalationEvent{
		CaseID:   caseID,
		Priority: cs.Priority,
		Reason:   reason,
		Failures: failures,
		At:       time.Now(),
	}
	c.broadcaster.Publish(alert.ChannelSupervisors, ev)
	c.publishCase(cs)
	if er, ok := c.sink.(coremetrics.EscalationRecorder); ok {
		if err := er.RecordEscalation(coremetrics.EscalationEvent{
			CaseID:   caseID,
			Priority: cs.Priority,
			Reason:   reason,
			Failures: failures,
			Time:     ev.At,
		}); err != nil {
			c.log.Errorf("escalation metrics error: %v", err)
		}
	}
	c.log.Warnf("case %s escalated: %s", caseID, reason)
	// Escalated is terminal for the coordinator; a reopen starts fresh.
	c.clearState(caseID)
}

// publishCase fans the lifecycle change out to the case and region channels.
func (c *Coordinator) publishCase(cs model.Case) {
	ev := events.CaseEvent{
		CaseID:      cs.ID,
		Status:      cs.Status,
		Priority:    cs.Priority,
		ResponderID: cs.ResponderID,
		At:          time.Now(),
	}
	c.broadcaster.Publish(alert.CaseChannel(cs.ID), ev)
	c.broadcaster.Publish(alert.RegionChannel(cs.Location.Region()), ev)
}

func (c *Coordinator) record(rec coremetrics.AssignmentRecord) {
	if err := c.sink.RecordAssignment([]coremetrics.AssignmentRecord{rec}); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
}

func (c *Coordinator) releaseResponder(id string) {
	if id == "" {
		return
	}
	if err := c.directory.Release(id); err != nil {
		c.log.Errorf("release responder %s: %v", id, err)
	}
}

// state returns the bookkeeping entry for the case; the coordinator mutex
// must be held.
func (c *Coordinator) state(caseID string) *caseState {
	st, ok := c.states[caseID]
	if !ok {
		st = &caseState{}
		c.states[caseID] = st
	}
	return st
}

// clearState drops bookkeeping for a terminal case and stops its timers.
func (c *Coordinator) clearState(caseID string) {
	c.mu.Lock()
	if st, ok := c.states[caseID]; ok {
		if st.ackTimer != nil {
			st.ackTimer.Stop()
		}
		if st.deadlineTimer != nil {
			st.deadlineTimer.Stop()
		}
		delete(c.states, caseID)
	}
	c.mu.Unlock()
}

// resolveActor annotates the performer through the identity directory, best
// effort. Empty performers become the system user.
func (c *Coordinator) resolveActor(ctx context.Context, id string) string {
	if id == "" || id == identity.SystemUser {
		return identity.SystemUser
	}
	rctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	u, err := c.identity.ResolveUser(rctx, id)
	if err != nil {
		c.log.Debugf("identity lookup for %s failed: %v", id, err)
		return id
	}
	if u.Name != "" && u.Name != u.ID {
		return fmt.Sprintf("%s (%s)", u.ID, u.Name)
	}
	return u.ID
}
