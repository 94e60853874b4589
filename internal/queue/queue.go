package queue

import (
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// Options tune queue behaviour. Zero values fall back to defaults.
type Options struct {
	MaxAttempts         int
	PriorityPolicy      types.PriorityPolicy
	DefaultWaitEstimate time.Duration
	Now                 func() time.Time
}

// Queue is the priority queue of chat sessions waiting for an agent
type Queue struct {
	store    Store
	opts     Options
	validate *validator.Validate
	now      func() time.Time

	totals        types.QueueMetrics
	totalWaitSecs float64
	lastQueuedAt  time.Time

	mu     sync.RWMutex
	logger zerolog.Logger
}

// New creates a queue on top of store
func New(store Store, opts Options, logger zerolog.Logger) *Queue {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.PriorityPolicy == "" {
		opts.PriorityPolicy = types.PriorityPolicyDefault
	}
	if opts.DefaultWaitEstimate <= 0 {
		opts.DefaultWaitEstimate = time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Queue{
		store:    store,
		opts:     opts,
		validate: validator.New(),
		now:      now,
		logger:   logger.With().Str("component", "queue").Logger(),
	}
}

// Enqueue validates a session and adds it to the queue
func (q *Queue) Enqueue(session types.ChatSession, priority string, req types.Requirements) (types.QueueEntry, error) {
	return q.EnqueueChecked(session, priority, req, nil)
}

// EnqueueChecked is Enqueue with an extra admission check that runs under the
// queue lock, after the duplicate check and before the entry is stored
func (q *Queue) EnqueueChecked(session types.ChatSession, priority string, req types.Requirements, check func(sessionID string) error) (types.QueueEntry, error) {
	if err := q.validate.Struct(session); err != nil {
		return types.QueueEntry{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	if err := q.validate.Struct(req); err != nil {
		return types.QueueEntry{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	p, err := types.NormalizePriority(priority, q.opts.PriorityPolicy)
	if err != nil {
		return types.QueueEntry{}, err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.store.BySession(session.SessionID); ok {
		return types.QueueEntry{}, fmt.Errorf("%w: session %s is entry %s", types.ErrDuplicateSession, session.SessionID, existing.QueueID)
	}
	if check != nil {
		if err := check(session.SessionID); err != nil {
			return types.QueueEntry{}, err
		}
	}

	// QueuedAt is strictly increasing so FIFO holds even on coarse clocks
	queuedAt := q.now()
	if !queuedAt.After(q.lastQueuedAt) {
		queuedAt = q.lastQueuedAt.Add(time.Nanosecond)
	}
	q.lastQueuedAt = queuedAt

	req.Capabilities = append([]string(nil), req.Capabilities...)
	entry := types.QueueEntry{
		QueueID:       uuid.New().String(),
		SessionID:     session.SessionID,
		CustomerID:    session.CustomerID,
		CustomerName:  session.CustomerName,
		Priority:      p,
		Requirements:  req,
		QueuedAt:      queuedAt,
		MaxAttempts:   q.opts.MaxAttempts,
		State:         types.EntryStateQueued,
		PreviousAgent: session.PreviousAgent,
		CustomerData:  maps.Clone(session.CustomerData),
		Metadata:      maps.Clone(session.Metadata),
	}
	entry.EstimatedWaitTime = q.estimateLocked(entry)

	q.store.Put(entry)
	q.totals.TotalQueued++

	q.logger.Debug().
		Str("queue_id", entry.QueueID).
		Str("session_id", entry.SessionID).
		Str("priority", string(entry.Priority)).
		Int("queue_depth", q.store.Len()).
		Float64("estimated_wait", entry.EstimatedWaitTime).
		Msg("chat enqueued")

	return entry, nil
}

// Dequeue removes an entry. Removing an unknown entry is not an error.
func (q *Queue) Dequeue(queueID, reason string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.store.Delete(queueID) {
		return false
	}
	q.totals.TotalRemoved++

	q.logger.Debug().Str("queue_id", queueID).Str("reason", reason).Msg("chat removed from queue")
	return true
}

// Ordered returns every entry by priority descending, then queuedAt ascending
func (q *Queue) Ordered() []types.QueueEntry {
	q.mu.RLock()
	entries := q.store.All()
	q.mu.RUnlock()

	sortEntries(entries)
	return entries
}

// Position returns the 1-based rank of an entry in Ordered
func (q *Queue) Position(queueID string) (int, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	entry, ok := q.store.Get(queueID)
	if !ok {
		return 0, fmt.Errorf("queue entry %s: %w", queueID, types.ErrNotFound)
	}

	pos := 1
	for _, e := range q.store.All() {
		if e.QueueID != queueID && less(e, entry) {
			pos++
		}
	}
	return pos, nil
}

// Get returns a single entry
func (q *Queue) Get(queueID string) (types.QueueEntry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	entry, ok := q.store.Get(queueID)
	if !ok {
		return types.QueueEntry{}, fmt.Errorf("queue entry %s: %w", queueID, types.ErrNotFound)
	}
	return entry, nil
}

// BySession returns the live entry of a chat session
func (q *Queue) BySession(sessionID string) (types.QueueEntry, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	entry, ok := q.store.BySession(sessionID)
	if !ok {
		return types.QueueEntry{}, fmt.Errorf("session %s: %w", sessionID, types.ErrNotFound)
	}
	return entry, nil
}

// Len returns the number of queued entries
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.store.Len()
}

// Take removes an entry only if commit succeeds. commit runs under the
// queue lock, so no other caller can take or remove the entry meanwhile.
func (q *Queue) Take(queueID string, commit func(types.QueueEntry) error) (types.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.store.Get(queueID)
	if !ok {
		return types.QueueEntry{}, fmt.Errorf("queue entry %s no longer queued: %w", queueID, types.ErrConcurrentModification)
	}
	if entry.State == types.EntryStateEscalating {
		return types.QueueEntry{}, fmt.Errorf("queue entry %s is escalating: %w", queueID, types.ErrConcurrentModification)
	}

	if err := commit(entry); err != nil {
		return types.QueueEntry{}, err
	}

	q.store.Delete(queueID)
	wait := q.now().Sub(entry.QueuedAt).Seconds()
	if wait < 0 {
		wait = 0
	}
	q.totals.TotalProcessed++
	q.totalWaitSecs += wait

	return entry, nil
}

// Unqueued runs fn under the queue lock if the session has no queue entry.
// A queued session fails with ErrDuplicateSession and fn does not run.
func (q *Queue) Unqueued(sessionID string, fn func() error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.store.BySession(sessionID); ok {
		return fmt.Errorf("%w: session %s is queued as entry %s", types.ErrDuplicateSession, sessionID, existing.QueueID)
	}
	return fn()
}

// RecordAttempt counts one failed match attempt
func (q *Queue) RecordAttempt(queueID string) (types.QueueEntry, error) {
	return q.update(queueID, func(e *types.QueueEntry) error {
		e.Attempts++
		return nil
	})
}

// MarkEscalating moves an entry into the escalating state. Entries in this
// state are not handed out by Take.
func (q *Queue) MarkEscalating(queueID string) (types.QueueEntry, error) {
	return q.update(queueID, func(e *types.QueueEntry) error {
		if e.State == types.EntryStateEscalating {
			return fmt.Errorf("queue entry %s is already escalating: %w", queueID, types.ErrConcurrentModification)
		}
		e.State = types.EntryStateEscalating
		return nil
	})
}

// Promote raises an entry one priority band and requeues it for a fresh matching cycle
func (q *Queue) Promote(queueID string, reason types.EscalationReason, at time.Time) (before, after types.QueueEntry, err error) {
	return q.requeue(queueID, func(e *types.QueueEntry) {
		e.Priority = e.Priority.Next()
	}, reason, at)
}

// ForceAssign requeues an entry at its current priority with requirements waived
func (q *Queue) ForceAssign(queueID string, reason types.EscalationReason, at time.Time) (before, after types.QueueEntry, err error) {
	return q.requeue(queueID, func(e *types.QueueEntry) {
		e.ForceAssign = true
	}, reason, at)
}

// Abandon removes an entry that escalation could not place. It is the outcome
// of an escalation, so it counts towards TotalEscalated as well.
func (q *Queue) Abandon(queueID string) (types.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.store.Get(queueID)
	if !ok {
		return types.QueueEntry{}, fmt.Errorf("queue entry %s: %w", queueID, types.ErrNotFound)
	}
	q.store.Delete(queueID)
	entry.State = types.EntryStateAbandoned
	q.totals.TotalAbandoned++
	q.totals.TotalEscalated++

	q.logger.Info().
		Str("queue_id", queueID).
		Str("session_id", entry.SessionID).
		Int("escalations", entry.EscalationCount).
		Msg("chat abandoned")

	return entry, nil
}

// Status returns the dashboard read model of the queue
func (q *Queue) Status() types.QueueStatus {
	now := q.now()

	q.mu.RLock()
	entries := q.store.All()
	q.mu.RUnlock()

	status := types.QueueStatus{
		TotalInQueue:     len(entries),
		StatusByPriority: make(map[types.Priority]types.PriorityBreakdown, len(types.AllPriorities)),
		Timestamp:        now,
	}
	for _, p := range types.AllPriorities {
		status.StatusByPriority[p] = types.PriorityBreakdown{}
	}

	var totalWait float64
	sums := make(map[types.Priority]float64, len(types.AllPriorities))
	for _, e := range entries {
		wait := e.WaitTime(now).Seconds()
		if wait < 0 {
			wait = 0
		}
		totalWait += wait
		if wait > status.LongestWaitTime {
			status.LongestWaitTime = wait
		}
		if e.EscalationCount > 0 {
			status.EscalationCount++
		}

		band := status.StatusByPriority[e.Priority]
		band.Count++
		if wait > band.LongestWaitTime {
			band.LongestWaitTime = wait
		}
		status.StatusByPriority[e.Priority] = band
		sums[e.Priority] += wait
	}

	if len(entries) > 0 {
		status.AverageWaitTime = totalWait / float64(len(entries))
	}
	for p, band := range status.StatusByPriority {
		if band.Count > 0 {
			band.AverageWaitTime = sums[p] / float64(band.Count)
			status.StatusByPriority[p] = band
		}
	}

	return status
}

// Metrics returns the cumulative counters
func (q *Queue) Metrics() types.QueueMetrics {
	q.mu.RLock()
	defer q.mu.RUnlock()

	m := q.totals
	if m.TotalProcessed > 0 {
		m.AverageWaitTime = q.totalWaitSecs / float64(m.TotalProcessed)
	}
	return m
}

// Wipe clears every queued entry, returning the count of cleared entries
func (q *Queue) Wipe() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.store.Clear()
	q.totals.TotalRemoved += int64(n)
	q.logger.Info().Int("cleared", n).Msg("wiped queue")
	return n
}

func (q *Queue) update(queueID string, fn func(*types.QueueEntry) error) (types.QueueEntry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.store.Get(queueID)
	if !ok {
		return types.QueueEntry{}, fmt.Errorf("queue entry %s: %w", queueID, types.ErrNotFound)
	}
	if err := fn(&entry); err != nil {
		return types.QueueEntry{}, err
	}
	q.store.Put(entry)
	return entry, nil
}

func (q *Queue) requeue(queueID string, change func(*types.QueueEntry), reason types.EscalationReason, at time.Time) (before, after types.QueueEntry, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entry, ok := q.store.Get(queueID)
	if !ok {
		return types.QueueEntry{}, types.QueueEntry{}, fmt.Errorf("queue entry %s: %w", queueID, types.ErrNotFound)
	}
	before = entry

	change(&entry)
	entry.Attempts = 0
	entry.State = types.EntryStateRequeued
	entry.EscalationReason = reason
	entry.EscalationCount++
	escalatedAt := at
	entry.LastEscalatedAt = &escalatedAt
	entry.EstimatedWaitTime = q.estimateLocked(entry)

	q.store.Put(entry)
	q.totals.TotalEscalated++

	return before, entry, nil
}

// estimateLocked is (entries ahead + 1) times the historical average wait
func (q *Queue) estimateLocked(entry types.QueueEntry) float64 {
	ahead := 0
	for _, e := range q.store.All() {
		if e.QueueID != entry.QueueID && less(e, entry) {
			ahead++
		}
	}

	perEntry := q.opts.DefaultWaitEstimate.Seconds()
	if q.totals.TotalProcessed > 0 {
		if avg := q.totalWaitSecs / float64(q.totals.TotalProcessed); avg > 0 {
			perEntry = avg
		}
	}
	return float64(ahead+1) * perEntry
}

func less(a, b types.QueueEntry) bool {
	if a.Priority.Rank() != b.Priority.Rank() {
		return a.Priority.Rank() > b.Priority.Rank()
	}
	if !a.QueuedAt.Equal(b.QueuedAt) {
		return a.QueuedAt.Before(b.QueuedAt)
	}
	return a.QueueID < b.QueueID
}

func sortEntries(entries []types.QueueEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return less(entries[i], entries[j])
	})
}
