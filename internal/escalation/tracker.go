package escalation

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kishorekota-dev/chatrouter/internal/config"
	"github.com/kishorekota-dev/chatrouter/internal/queue"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// historyLimit bounds the in-memory audit trail; storage keeps the full history
const historyLimit = 1000

// RecordStore is the subset of storage.Store needed by Tracker
type RecordStore interface {
	SaveEscalationRecord(record types.EscalationRecord) error
}

// Options tune the escalation policy
type Options struct {
	MaxEscalations  int
	ExhaustedPolicy types.ExhaustedPolicy
	Thresholds      config.SLAThresholds
	Now             func() time.Time
}

// Tracker escalates queue entries that breach wait-time or attempt thresholds
// and keeps the append-only audit trail of those escalations
type Tracker struct {
	queue *queue.Queue
	store RecordStore
	opts  Options
	now   func() time.Time

	history []types.Escalation
	pending sync.WaitGroup

	mu     sync.Mutex
	logger zerolog.Logger
}

// New creates an escalation tracker. store may be nil.
func New(q *queue.Queue, store RecordStore, opts Options, logger zerolog.Logger) *Tracker {
	if opts.ExhaustedPolicy == "" {
		opts.ExhaustedPolicy = types.ExhaustedForceAssign
	}
	if opts.Thresholds == (config.SLAThresholds{}) {
		opts.Thresholds = config.DefaultPolicy().SLA
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Tracker{
		queue:  q,
		store:  store,
		opts:   opts,
		now:    now,
		logger: logger.With().Str("component", "escalation").Logger(),
	}
}

// Escalate raises an entry one priority band and requeues it. Once an entry has
// used up its escalations the exhausted policy decides between abandoning it
// and force-assigning it to any available agent.
func (t *Tracker) Escalate(queueID string, reason types.EscalationReason) (types.Escalation, error) {
	return t.escalate(queueID, reason, nil)
}

// escalate runs one escalation under t.mu. due, when set, is checked against the
// live entry first; sweeps working from an older snapshot use it to skip entries
// another sweep has already escalated.
func (t *Tracker) escalate(queueID string, reason types.EscalationReason, due func(types.QueueEntry) bool) (types.Escalation, error) {
	if !reason.Valid() {
		return types.Escalation{}, fmt.Errorf("%w: unknown escalation reason %q", types.ErrValidation, reason)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if due != nil {
		live, err := t.queue.Get(queueID)
		if err != nil {
			return types.Escalation{}, err
		}
		if !due(live) {
			return types.Escalation{}, fmt.Errorf("queue entry %s no longer due for escalation: %w", queueID, types.ErrConcurrentModification)
		}
	}

	entry, err := t.queue.MarkEscalating(queueID)
	if err != nil {
		return types.Escalation{}, err
	}

	now := t.now()
	rec := types.Escalation{
		EscalationID:     uuid.New().String(),
		QueueID:          entry.QueueID,
		SessionID:        entry.SessionID,
		CustomerID:       entry.CustomerID,
		OriginalPriority: entry.Priority,
		Reason:           reason,
		EscalatedAt:      now,
		TotalWaitTime:    entry.WaitTime(now).Seconds(),
		Attempts:         entry.Attempts,
		Sequence:         entry.EscalationCount + 1,
	}

	var after types.QueueEntry
	switch {
	case entry.EscalationCount < t.opts.MaxEscalations:
		_, after, err = t.queue.Promote(queueID, reason, now)
		rec.Outcome = types.OutcomeRequeued
	case t.opts.ExhaustedPolicy == types.ExhaustedAbandon:
		after, err = t.queue.Abandon(queueID)
		rec.Outcome = types.OutcomeAbandoned
	default:
		_, after, err = t.queue.ForceAssign(queueID, reason, now)
		rec.Outcome = types.OutcomeForceAssign
	}
	if err != nil {
		return types.Escalation{}, fmt.Errorf("escalate %s: %w", queueID, err)
	}
	rec.EscalatedPriority = after.Priority

	t.history = append(t.history, rec)
	if over := len(t.history) - historyLimit; over > 0 {
		t.history = append([]types.Escalation(nil), t.history[over:]...)
	}
	t.persist(rec)

	t.logger.Info().
		Str("queue_id", queueID).
		Str("session_id", rec.SessionID).
		Str("reason", string(reason)).
		Str("from", string(rec.OriginalPriority)).
		Str("to", string(rec.EscalatedPriority)).
		Str("outcome", string(rec.Outcome)).
		Int("sequence", rec.Sequence).
		Msg("chat escalated")

	return rec, nil
}

// CheckWaitTimes escalates every entry whose wait in its current band exceeds the
// band's SLA threshold. The wait restarts at each escalation so one long wait
// does not cascade through every band at once.
func (t *Tracker) CheckWaitTimes() []types.Escalation {
	now := t.now()
	breached := func(e types.QueueEntry) bool {
		if e.ForceAssign || e.State == types.EntryStateEscalating {
			return false
		}
		return now.Sub(e.SLAReference()) > t.opts.Thresholds.For(e.Priority)
	}
	var escalated []types.Escalation

	for _, e := range t.queue.Ordered() {
		if !breached(e) {
			continue
		}

		rec, err := t.escalate(e.QueueID, types.ReasonWaitTimeExceeded, breached)
		if err != nil {
			// Assigned, removed or already escalated since Ordered was read
			if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrConcurrentModification) {
				continue
			}
			t.logger.Error().Err(err).Str("queue_id", e.QueueID).Msg("wait time escalation failed")
			continue
		}
		escalated = append(escalated, rec)
	}

	return escalated
}

// History returns the escalations of one queue entry, oldest first
func (t *Tracker) History(queueID string) []types.Escalation {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []types.Escalation
	for _, rec := range t.history {
		if rec.QueueID == queueID {
			result = append(result, rec)
		}
	}
	return result
}

// All returns the retained escalations, oldest first
func (t *Tracker) All() []types.Escalation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.Escalation(nil), t.history...)
}

// Count returns the number of retained escalations
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.history)
}

// Wait blocks until every pending record write has finished
func (t *Tracker) Wait() {
	t.pending.Wait()
}

func (t *Tracker) persist(rec types.Escalation) {
	if t.store == nil {
		return
	}

	record := Record(rec)
	t.pending.Add(1)
	go func() {
		defer t.pending.Done()
		if err := t.store.SaveEscalationRecord(record); err != nil {
			t.logger.Error().Err(err).Str("escalation_id", record.EscalationID).Msg("failed to save escalation record")
		}
	}()
}

// Record converts an escalation to its persisted form
func Record(e types.Escalation) types.EscalationRecord {
	return types.EscalationRecord{
		QueueID:           e.QueueID,
		EscalationID:      e.EscalationID,
		SessionID:         e.SessionID,
		CustomerID:        e.CustomerID,
		OriginalPriority:  string(e.OriginalPriority),
		EscalatedPriority: string(e.EscalatedPriority),
		Reason:            string(e.Reason),
		Outcome:           string(e.Outcome),
		EscalatedAt:       e.EscalatedAt.Format(time.RFC3339),
		TotalWaitTime:     e.TotalWaitTime,
		Attempts:          e.Attempts,
		Sequence:          e.Sequence,
	}
}
