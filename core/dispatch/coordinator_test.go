package dispatch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/alert"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/audit"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/events"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/identity"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/match"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/registry"
	"github.com/Sara-Samara/HealthAidProj-sub002/core/responder"
	infraalert "github.com/Sara-Samara/HealthAidProj-sub002/infra/alert"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/logger"
)

type fixture struct {
	coord *Coordinator
	dir   *responder.Directory
	reg   *registry.Registry
	bc    *infraalert.MockBroadcaster
}

func newFixture(t *testing.T, tweak func(*Config)) *fixture {
	t.Helper()
	var cfg Config
	cfg.SetDefaults()
	cfg.Workers = 2
	cfg.RetryBackoffMS = 10
	// Generous by default so tests that acknowledge promptly never race the
	// timer; timeout tests dial this down.
	cfg.AckTimeoutSeconds = map[string]int{
		model.PriorityLow.String():      60,
		model.PriorityMedium.String():   60,
		model.PriorityHigh.String():     60,
		model.PriorityCritical.String(): 60,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	require.NoError(t, cfg.Validate())

	log := logger.NopLogger{}
	dir := responder.NewDirectory(log)
	reg := registry.New(audit.NewLog(nil, log), nil, log)

	var mcfg match.Config
	mcfg.SetDefaults()
	m := match.New(mcfg, dir, log)

	bc := infraalert.NewMockBroadcaster()
	users := identity.StaticDirectory{
		"supervisor-7": {ID: "supervisor-7", Name: "Dana Ops", Role: "supervisor"},
	}
	coord, err := NewCoordinator(cfg, reg, dir, m, bc, users, nil, log)
	require.NoError(t, err)
	coord.Start()
	t.Cleanup(func() { _ = coord.Close() })
	return &fixture{coord: coord, dir: dir, reg: reg, bc: bc}
}

func (f *fixture) addResponder(t *testing.T, id string, tags ...string) {
	t.Helper()
	_, err := f.coord.RegisterResponder(model.Responder{
		ID:              id,
		UserID:          "u-" + id,
		Tags:            tags,
		Location:        model.GeoPoint{Lat: 40.001, Lon: -75},
		Available:       true,
		ResponseRadiusM: 50000,
		Rating:          4,
	})
	require.NoError(t, err)
}

func (f *fixture) report(t *testing.T, p model.Priority) string {
	t.Helper()
	id, err := f.coord.ReportEmergency(context.Background(), Report{
		PatientID: "patient-1",
		Type:      "cardiac",
		Priority:  p,
		Location:  model.GeoPoint{Lat: 40, Lon: -75},
	})
	require.NoError(t, err)
	return id
}

func (f *fixture) waitStatus(t *testing.T, caseID string, want model.CaseStatus) model.Case {
	t.Helper()
	var got model.Case
	require.Eventually(t, func() bool {
		cs, err := f.coord.GetCase(caseID)
		if err != nil {
			return false
		}
		got = cs
		return cs.Status == want
	}, 5*time.Second, 10*time.Millisecond, "case %s never reached %s (last: %s)", caseID, want, got.Status)
	return got
}

func countAction(events []model.AuditEvent, action model.AuditAction) int {
	n := 0
	for _, ev := range events {
		if ev.Action == action {
			n++
		}
	}
	return n
}

func TestHappyPathAssignAckResolve(t *testing.T) {
	f := newFixture(t, nil)
	f.addResponder(t, "r1", "medic", "cardiac")

	caseID := f.report(t, model.PriorityHigh)
	cs := f.waitStatus(t, caseID, model.StatusAssigned)
	require.Equal(t, "r1", cs.ResponderID)

	// The responder is reserved while assigned.
	r, err := f.dir.Get("r1")
	require.NoError(t, err)
	require.False(t, r.Available)

	require.NoError(t, f.coord.AcknowledgeAssignment(caseID, "r1"))
	cs, err = f.coord.GetCase(caseID)
	require.NoError(t, err)
	require.Equal(t, model.StatusEnRoute, cs.Status)
	require.Equal(t, "r1", cs.ResponderID)

	require.NoError(t, f.coord.ResolveCase(context.Background(), caseID, "r1"))
	cs, err = f.coord.GetCase(caseID)
	require.NoError(t, err)
	require.Equal(t, model.StatusResolved, cs.Status)
	require.Empty(t, cs.ResponderID)
	require.False(t, cs.ResolvedAt.IsZero())

	r, err = f.dir.Get("r1")
	require.NoError(t, err)
	require.True(t, r.Available)

	trail, err := f.coord.GetAuditTrail(caseID)
	require.NoError(t, err)
	require.Equal(t, 1, countAction(trail, model.ActionAssigned), "exactly one assignment must be recorded")
	require.Equal(t, 1, countAction(trail, model.ActionAcknowledged))
	require.Equal(t, 1, countAction(trail, model.ActionResolved))
}

func TestDoubleBookingRace(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxMatchFailures = 2 })
	f.addResponder(t, "only", "medic")

	var wg sync.WaitGroup
	ids := make([]string, 2)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = f.report(t, model.PriorityHigh)
		}(i)
	}
	wg.Wait()

	// Exactly one case wins the responder; the other exhausts its retries
	// against an empty pool and escalates.
	require.Eventually(t, func() bool {
		assigned, escalated := 0, 0
		for _, id := range ids {
			cs, err := f.coord.GetCase(id)
			if err != nil {
				return false
			}
			switch cs.Status {
			case model.StatusAssigned:
				assigned++
			case model.StatusEscalated:
				escalated++
			}
		}
		return assigned == 1 && escalated == 1
	}, 5*time.Second, 10*time.Millisecond)

	total := 0
	for _, id := range ids {
		trail, err := f.coord.GetAuditTrail(id)
		require.NoError(t, err)
		total += countAction(trail, model.ActionAssigned)
	}
	require.Equal(t, 1, total, "the responder must be assigned exactly once")
}

func TestAckTimeoutReleasesAndRedispatches(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.AckTimeoutSeconds[model.PriorityHigh.String()] = 1
	})
	f.addResponder(t, "slow", "medic")

	caseID := f.report(t, model.PriorityHigh)
	f.waitStatus(t, caseID, model.StatusAssigned)

	// Never acknowledge. The timeout releases the responder, excludes it
	// for one cycle and, with nobody else around, the next cycle picks it
	// up again, recorded as a reassignment.
	require.Eventually(t, func() bool {
		trail, err := f.coord.GetAuditTrail(caseID)
		if err != nil {
			return false
		}
		return countAction(trail, model.ActionAckTimeout) >= 1 &&
			countAction(trail, model.ActionReassigned) >= 1
	}, 8*time.Second, 20*time.Millisecond)

	trail, err := f.coord.GetAuditTrail(caseID)
	require.NoError(t, err)
	require.Equal(t, 1, countAction(trail, model.ActionAssigned), "only the first commit is Assigned")

	cs := f.waitStatus(t, caseID, model.StatusAssigned)
	require.Equal(t, "slow", cs.ResponderID)
	require.NoError(t, f.coord.AcknowledgeAssignment(caseID, "slow"))
}

func TestAckTimeoutPrefersOtherResponder(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.AckTimeoutSeconds[model.PriorityHigh.String()] = 1
	})
	f.addResponder(t, "aaa-first", "medic", "cardiac")
	f.addResponder(t, "zzz-backup", "medic")

	caseID := f.report(t, model.PriorityHigh)
	cs := f.waitStatus(t, caseID, model.StatusAssigned)
	require.Equal(t, "aaa-first", cs.ResponderID)

	// After the missed deadline the excluded responder must not win the
	// immediate re-dispatch.
	require.Eventually(t, func() bool {
		cur, err := f.coord.GetCase(caseID)
		return err == nil && cur.Status == model.StatusAssigned && cur.ResponderID == "zzz-backup"
	}, 5*time.Second, 20*time.Millisecond)

	r, err := f.dir.Get("aaa-first")
	require.NoError(t, err)
	require.True(t, r.Available, "timed-out responder must be released")
}

func TestAcknowledgeWrongResponderRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.addResponder(t, "r1", "medic")

	caseID := f.report(t, model.PriorityHigh)
	f.waitStatus(t, caseID, model.StatusAssigned)

	err := f.coord.AcknowledgeAssignment(caseID, "impostor")
	require.ErrorIs(t, err, ErrAssignmentConflict)

	cs, gerr := f.coord.GetCase(caseID)
	require.NoError(t, gerr)
	require.Equal(t, model.StatusAssigned, cs.Status)
	require.Equal(t, "r1", cs.ResponderID)
}

func TestCancelResolvedCaseRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.addResponder(t, "r1", "medic")

	caseID := f.report(t, model.PriorityMedium)
	f.waitStatus(t, caseID, model.StatusAssigned)
	require.NoError(t, f.coord.AcknowledgeAssignment(caseID, "r1"))
	require.NoError(t, f.coord.ResolveCase(context.Background(), caseID, "r1"))

	before, _ := f.coord.GetCase(caseID)
	beforeTrail, _ := f.coord.GetAuditTrail(caseID)

	err := f.coord.CancelCase(context.Background(), caseID, "patient-1")
	require.ErrorIs(t, err, registry.ErrInvalidTransition)

	after, _ := f.coord.GetCase(caseID)
	afterTrail, _ := f.coord.GetAuditTrail(caseID)
	require.Equal(t, before, after)
	require.Equal(t, len(beforeTrail), len(afterTrail))
}

func TestCancelReleasesResponder(t *testing.T) {
	f := newFixture(t, nil)
	f.addResponder(t, "r1", "medic")

	caseID := f.report(t, model.PriorityHigh)
	f.waitStatus(t, caseID, model.StatusAssigned)

	require.NoError(t, f.coord.CancelCase(context.Background(), caseID, "patient-1"))
	cs, err := f.coord.GetCase(caseID)
	require.NoError(t, err)
	require.Equal(t, model.StatusCancelled, cs.Status)
	require.Empty(t, cs.ResponderID)

	r, err := f.dir.Get("r1")
	require.NoError(t, err)
	require.True(t, r.Available)
}

func TestEscalationAfterRepeatedFailures(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxMatchFailures = 3 })
	// No responders registered at all.

	caseID := f.report(t, model.PriorityHigh)
	f.waitStatus(t, caseID, model.StatusEscalated)

	trail, err := f.coord.GetAuditTrail(caseID)
	require.NoError(t, err)
	require.Equal(t, 1, countAction(trail, model.ActionEscalated))
	require.GreaterOrEqual(t, countAction(trail, model.ActionMatchAttempted), 3)

	var found bool
	for _, ev := range f.bc.Events(alert.ChannelSupervisors) {
		if _, ok := ev.(events.EscalationEvent); ok {
			found = true
		}
	}
	require.True(t, found, "supervisors channel must receive the escalation event")

	// Escalation releases the per-case bookkeeping so long-lived processes
	// do not accumulate entries for cases nobody reopens.
	require.Eventually(t, func() bool {
		f.coord.mu.Lock()
		_, ok := f.coord.states[caseID]
		f.coord.mu.Unlock()
		return !ok
	}, time.Second, 10*time.Millisecond, "escalated case must not linger in coordinator state")
}

func TestReopenEscalatedCase(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.MaxMatchFailures = 2 })

	caseID := f.report(t, model.PriorityHigh)
	f.waitStatus(t, caseID, model.StatusEscalated)

	f.addResponder(t, "late", "medic")
	require.NoError(t, f.coord.ReopenCase(context.Background(), caseID, "supervisor-7"))

	cs := f.waitStatus(t, caseID, model.StatusAssigned)
	require.Equal(t, "late", cs.ResponderID)

	trail, err := f.coord.GetAuditTrail(caseID)
	require.NoError(t, err)
	require.Equal(t, 1, countAction(trail, model.ActionReopened))
	for _, ev := range trail {
		if ev.Action == model.ActionReopened {
			// The directory's display name is stamped next to the raw id.
			require.Equal(t, "supervisor-7 (Dana Ops)", ev.PerformedBy)
		}
	}
}

func TestCriticalDeadlineEscalates(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.MaxMatchFailures = 1000 // keep the retry loop alive past the deadline
		c.RetryBackoffMS = 50
		c.CriticalEscalationSeconds = 1
	})

	caseID := f.report(t, model.PriorityCritical)
	f.waitStatus(t, caseID, model.StatusEscalated)

	trail, err := f.coord.GetAuditTrail(caseID)
	require.NoError(t, err)
	require.Equal(t, 1, countAction(trail, model.ActionEscalated))
}

func TestReportValidation(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.coord.ReportEmergency(context.Background(), Report{Type: "cardiac"})
	require.Error(t, err)
	require.True(t, IsValidation(err), "expected a validation error, got %v", err)
}

func TestAuditSequenceMonotonic(t *testing.T) {
	f := newFixture(t, nil)
	f.addResponder(t, "r1", "medic")

	caseID := f.report(t, model.PriorityLow)
	f.waitStatus(t, caseID, model.StatusAssigned)
	require.NoError(t, f.coord.AcknowledgeAssignment(caseID, "r1"))
	require.NoError(t, f.coord.ResolveCase(context.Background(), caseID, "r1"))

	trail, err := f.coord.GetAuditTrail(caseID)
	require.NoError(t, err)
	for i, ev := range trail {
		require.Equal(t, i+1, ev.Seq, "audit sequence must be gapless")
		require.Equal(t, caseID, ev.CaseID)
	}
}
