package escalation

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/config"
	"github.com/kishorekota-dev/chatrouter/internal/queue"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memoryRecords struct {
	mu      sync.Mutex
	records []types.EscalationRecord
}

func (m *memoryRecords) SaveEscalationRecord(r types.EscalationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func setup(policy types.ExhaustedPolicy, maxEscalations int) (*clock, *queue.Queue, *Tracker, *memoryRecords) {
	c := &clock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	q := queue.New(queue.NewMemoryStore(), queue.Options{MaxAttempts: 3, Now: c.Now}, zerolog.Nop())
	store := &memoryRecords{}
	tr := New(q, store, Options{
		MaxEscalations:  maxEscalations,
		ExhaustedPolicy: policy,
		Thresholds:      config.DefaultPolicy().SLA,
		Now:             c.Now,
	}, zerolog.Nop())
	return c, q, tr, store
}

func enqueue(t *testing.T, q *queue.Queue, id, priority string) types.QueueEntry {
	t.Helper()
	e, err := q.Enqueue(types.ChatSession{SessionID: id, CustomerID: "c-" + id}, priority, types.Requirements{})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return e
}

func TestEscalateRequeuesOneBandUp(t *testing.T) {
	c, q, tr, store := setup(types.ExhaustedForceAssign, 3)
	e := enqueue(t, q, "s1", "low")
	q.RecordAttempt(e.QueueID)
	c.Advance(45 * time.Second)

	rec, err := tr.Escalate(e.QueueID, types.ReasonCustomerRequest)
	if err != nil {
		t.Fatalf("escalate: %v", err)
	}

	if rec.OriginalPriority != types.PriorityLow || rec.EscalatedPriority != types.PriorityMedium {
		t.Errorf("expected low -> medium, got %s -> %s", rec.OriginalPriority, rec.EscalatedPriority)
	}
	if rec.Outcome != types.OutcomeRequeued || rec.Sequence != 1 {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Attempts != 1 || rec.TotalWaitTime != 45 {
		t.Errorf("expected snapshot of 1 attempt and 45s wait, got %d and %v", rec.Attempts, rec.TotalWaitTime)
	}

	live, _ := q.Get(e.QueueID)
	if live.Priority != types.PriorityMedium || live.Attempts != 0 || live.State != types.EntryStateRequeued {
		t.Errorf("live entry not requeued: %+v", live)
	}
	if !live.QueuedAt.Equal(e.QueuedAt) {
		t.Errorf("escalation changed queuedAt")
	}
	if live.EscalationReason != types.ReasonCustomerRequest {
		t.Errorf("expected reason on entry, got %s", live.EscalationReason)
	}

	tr.Wait()
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.records) != 1 || store.records[0].EscalationID != rec.EscalationID {
		t.Errorf("expected escalation record to be persisted, got %+v", store.records)
	}
}

func TestEscalateNeverLowersPriority(t *testing.T) {
	_, q, tr, _ := setup(types.ExhaustedForceAssign, 10)

	for _, p := range []string{"low", "medium", "high", "urgent"} {
		e := enqueue(t, q, "s-"+p, p)
		for i := 0; i < 4; i++ {
			before, _ := q.Get(e.QueueID)
			rec, err := tr.Escalate(e.QueueID, types.ReasonManual)
			if err != nil {
				t.Fatalf("escalate %s: %v", p, err)
			}
			after, _ := q.Get(e.QueueID)
			if after.Priority.Rank() < before.Priority.Rank() {
				t.Fatalf("%s: priority dropped %s -> %s", p, before.Priority, after.Priority)
			}
			if rec.EscalatedPriority.Rank() < rec.OriginalPriority.Rank() {
				t.Fatalf("%s: record shows a drop", p)
			}
			if !after.QueuedAt.Equal(e.QueuedAt) {
				t.Fatalf("%s: queuedAt changed", p)
			}
		}
	}
}

func TestExhaustedPolicies(t *testing.T) {
	tests := []struct {
		name    string
		policy  types.ExhaustedPolicy
		outcome types.EscalationOutcome
		queued  bool
	}{
		{"abandon", types.ExhaustedAbandon, types.OutcomeAbandoned, false},
		{"force assign", types.ExhaustedForceAssign, types.OutcomeForceAssign, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, q, tr, _ := setup(tt.policy, 1)
			e := enqueue(t, q, "s1", "high")

			first, err := tr.Escalate(e.QueueID, types.ReasonMaxAttemptsExceeded)
			if err != nil || first.Outcome != types.OutcomeRequeued {
				t.Fatalf("first escalation should requeue, got %v %v", first.Outcome, err)
			}

			second, err := tr.Escalate(e.QueueID, types.ReasonMaxAttemptsExceeded)
			if err != nil {
				t.Fatalf("second escalation: %v", err)
			}
			if second.Outcome != tt.outcome {
				t.Errorf("expected outcome %s, got %s", tt.outcome, second.Outcome)
			}
			if second.Sequence != 2 {
				t.Errorf("expected sequence 2, got %d", second.Sequence)
			}

			live, err := q.Get(e.QueueID)
			if tt.queued {
				if err != nil || !live.ForceAssign {
					t.Errorf("expected entry to stay queued with force flag, got %+v %v", live, err)
				}
			} else {
				if !errors.Is(err, types.ErrNotFound) {
					t.Errorf("expected abandoned entry to be gone, got %v", err)
				}
				if q.Metrics().TotalAbandoned != 1 {
					t.Errorf("expected TotalAbandoned 1")
				}
			}

			if got := q.Metrics().TotalEscalated; got != 2 {
				t.Errorf("expected TotalEscalated 2, got %d", got)
			}
			if got := len(tr.History(e.QueueID)); got != 2 {
				t.Errorf("expected 2 history records, got %d", got)
			}
		})
	}
}

func TestEscalateErrors(t *testing.T) {
	_, q, tr, _ := setup(types.ExhaustedForceAssign, 3)

	if _, err := tr.Escalate("missing", types.ReasonManual); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	e := enqueue(t, q, "s1", "low")
	if _, err := tr.Escalate(e.QueueID, "because"); !errors.Is(err, types.ErrValidation) {
		t.Errorf("expected ErrValidation for unknown reason, got %v", err)
	}
	if tr.Count() != 0 {
		t.Errorf("failed escalations must not be recorded")
	}
}

func TestCheckWaitTimes(t *testing.T) {
	c, q, tr, _ := setup(types.ExhaustedForceAssign, 3)

	urgent := enqueue(t, q, "u1", "urgent") // 30s threshold
	low := enqueue(t, q, "l1", "low")       // 10m threshold

	c.Advance(31 * time.Second)
	escalated := tr.CheckWaitTimes()
	if len(escalated) != 1 || escalated[0].QueueID != urgent.QueueID {
		t.Fatalf("expected only the urgent entry escalated, got %+v", escalated)
	}
	if escalated[0].Reason != types.ReasonWaitTimeExceeded {
		t.Errorf("expected wait_time_exceeded, got %s", escalated[0].Reason)
	}

	// The wait restarts at escalation, so an immediate re-check does nothing
	if again := tr.CheckWaitTimes(); len(again) != 0 {
		t.Errorf("expected no cascading escalation, got %d", len(again))
	}

	c.Advance(10 * time.Minute)
	escalated = tr.CheckWaitTimes()
	ids := map[string]bool{}
	for _, rec := range escalated {
		ids[rec.QueueID] = true
	}
	if !ids[low.QueueID] || !ids[urgent.QueueID] {
		t.Errorf("expected both entries escalated after 10 minutes, got %+v", escalated)
	}

	live, _ := q.Get(low.QueueID)
	if live.Priority != types.PriorityMedium {
		t.Errorf("expected low entry promoted to medium, got %s", live.Priority)
	}
}

func TestCheckWaitTimesConcurrentSweepsEscalateOnce(t *testing.T) {
	c, q, tr, _ := setup(types.ExhaustedForceAssign, 3)
	entries := make([]types.QueueEntry, 200)
	for i := range entries {
		entries[i] = enqueue(t, q, fmt.Sprintf("s%d", i), "low")
	}
	c.Advance(11 * time.Minute)

	var wg sync.WaitGroup
	results := make([][]types.Escalation, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = tr.CheckWaitTimes()
		}(i)
	}
	wg.Wait()

	total := 0
	for _, r := range results {
		total += len(r)
	}
	if total != len(entries) {
		t.Errorf("expected %d escalations across sweeps, got %d", len(entries), total)
	}
	for _, e := range entries {
		live, err := q.Get(e.QueueID)
		if err != nil {
			t.Fatalf("get %s: %v", e.QueueID, err)
		}
		if live.Priority != types.PriorityMedium || live.EscalationCount != 1 {
			t.Errorf("entry %s escalated to %s %d times for one breach", e.SessionID, live.Priority, live.EscalationCount)
		}
	}
	if got := q.Metrics().TotalEscalated; got != int64(len(entries)) {
		t.Errorf("expected TotalEscalated %d, got %d", len(entries), got)
	}
}

func TestCheckWaitTimesSkipsForcedEntries(t *testing.T) {
	c, q, tr, _ := setup(types.ExhaustedForceAssign, 0)
	e := enqueue(t, q, "s1", "urgent")

	c.Advance(time.Minute)
	first := tr.CheckWaitTimes()
	if len(first) != 1 || first[0].Outcome != types.OutcomeForceAssign {
		t.Fatalf("expected force assign on first breach, got %+v", first)
	}

	c.Advance(time.Hour)
	if again := tr.CheckWaitTimes(); len(again) != 0 {
		t.Errorf("forced entry %s escalated again", e.QueueID)
	}
}

func TestRecord(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	rec := Record(types.Escalation{
		EscalationID:      "e1",
		QueueID:           "q1",
		OriginalPriority:  types.PriorityLow,
		EscalatedPriority: types.PriorityMedium,
		Reason:            types.ReasonManual,
		Outcome:           types.OutcomeRequeued,
		EscalatedAt:       at,
		Sequence:          2,
	})

	if rec.EscalatedAt != "2024-03-01T09:30:00Z" {
		t.Errorf("unexpected timestamp %s", rec.EscalatedAt)
	}
	if rec.OriginalPriority != "low" || rec.EscalatedPriority != "medium" || rec.Outcome != "requeued" {
		t.Errorf("unexpected record: %+v", rec)
	}
}
