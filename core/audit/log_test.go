package audit

import (
	"testing"
	"time"

	"github.com/Sara-Samara/HealthAidProj-sub002/core/model"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/logger"
	"github.com/Sara-Samara/HealthAidProj-sub002/infra/store"
)

func TestAppendAssignsSequence(t *testing.T) {
	l := NewLog(nil, logger.NopLogger{})
	l.Append("c1", model.ActionCreated, "system", "")
	l.Append("c1", model.ActionMatchAttempted, "system", "")
	l.Append("c2", model.ActionCreated, "system", "")
	l.Append("c1", model.ActionAssigned, "system", "")

	evs := l.Events("c1")
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	for i, ev := range evs {
		if ev.Seq != i+1 {
			t.Fatalf("event %d has seq %d", i, ev.Seq)
		}
	}
	if evs[2].Action != model.ActionAssigned {
		t.Fatalf("order not preserved")
	}
	if got := l.Events("c2"); len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("per-case sequence leaked across cases")
	}
}

func TestEventsReturnsCopy(t *testing.T) {
	l := NewLog(nil, logger.NopLogger{})
	l.Append("c1", model.ActionCreated, "system", "")
	evs := l.Events("c1")
	evs[0].Notes = "mutated"
	if l.Events("c1")[0].Notes == "mutated" {
		t.Fatalf("internal state leaked through Events")
	}
}

func TestWriteThrough(t *testing.T) {
	mem := store.NewMemoryStore()
	l := NewLog(mem, logger.NopLogger{})
	l.Append("c1", model.ActionCreated, "reporter", "note")
	l.Append("c1", model.ActionCancelled, "reporter", "")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(mem.AuditEvents("c1")) == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	persisted := mem.AuditEvents("c1")
	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted events, got %d", len(persisted))
	}
	if persisted[0].Action != model.ActionCreated || persisted[1].Seq != 2 {
		t.Fatalf("persisted events wrong: %+v", persisted)
	}
}
