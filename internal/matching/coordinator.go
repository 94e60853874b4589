package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/queue"
	"github.com/kishorekota-dev/chatrouter/internal/registry"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// Escalator is the subset of escalation.Tracker used by the coordinator
type Escalator interface {
	Escalate(queueID string, reason types.EscalationReason) (types.Escalation, error)
	CheckWaitTimes() []types.Escalation
}

// Options configure a Coordinator
type Options struct {
	Interval time.Duration
	Strategy RoutingStrategy
	Notifier Notifier
	Metrics  *metrics.Metrics
}

// Pass summarises one matching pass
type Pass struct {
	Assignments []types.Assignment
	Escalations []types.Escalation
	Unmatched   int // entries with no eligible agent, attempt recorded
	Conflicts   int // commits lost to a concurrent change
	Duration    time.Duration
}

// Coordinator matches waiting entries to eligible agents
type Coordinator struct {
	queue     *queue.Queue
	registry  *registry.Registry
	escalator Escalator
	strategy  RoutingStrategy
	notifier  Notifier
	metrics   *metrics.Metrics
	interval  time.Duration

	trigger chan struct{}
	passMu  sync.Mutex
	logger  zerolog.Logger
}

// New creates a coordinator. Zero options fall back to a 1s interval and LeastLoaded.
func New(q *queue.Queue, r *registry.Registry, esc Escalator, opts Options, logger zerolog.Logger) *Coordinator {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Strategy == nil {
		opts.Strategy = LeastLoaded{}
	}
	if opts.Notifier == nil {
		opts.Notifier = Notifiers{}
	}

	return &Coordinator{
		queue:     q,
		registry:  r,
		escalator: esc,
		strategy:  opts.Strategy,
		notifier:  opts.Notifier,
		metrics:   opts.Metrics,
		interval:  opts.Interval,
		trigger:   make(chan struct{}, 1),
		logger:    logger.With().Str("component", "matching").Logger(),
	}
}

// Run performs a pass every interval and whenever Trigger is called, until ctx is cancelled.
// A pass already running when ctx is cancelled finishes.
func (c *Coordinator) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info().Dur("interval", c.interval).Msg("matching loop started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("matching loop stopped")
			return
		case <-ticker.C:
			c.tick(ctx)
		case <-c.trigger:
			c.tick(ctx)
		}
	}
}

// Trigger requests a pass without waiting for the next tick. It never blocks;
// triggers arriving while one is pending collapse into it.
func (c *Coordinator) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

func (c *Coordinator) tick(ctx context.Context) {
	pass := c.ProcessQueue(context.WithoutCancel(ctx))
	if len(pass.Assignments) > 0 || len(pass.Escalations) > 0 {
		c.logger.Debug().
			Int("assigned", len(pass.Assignments)).
			Int("escalated", len(pass.Escalations)).
			Int("unmatched", pass.Unmatched).
			Int("conflicts", pass.Conflicts).
			Dur("duration", pass.Duration).
			Msg("matching pass")
	}
}

// ProcessQueue runs one pass: SLA escalations first, then every queued entry in
// priority order is offered to the eligible agents. Passes never overlap.
func (c *Coordinator) ProcessQueue(ctx context.Context) Pass {
	c.passMu.Lock()
	defer c.passMu.Unlock()

	start := time.Now()
	var pass Pass

	for _, esc := range c.escalator.CheckWaitTimes() {
		pass.Escalations = append(pass.Escalations, esc)
		c.notifier.ChatEscalated(esc)
	}

	for _, entry := range c.queue.Ordered() {
		if ctx.Err() != nil {
			break
		}
		if entry.State == types.EntryStateEscalating {
			continue
		}

		req := entry.Requirements
		if entry.ForceAssign {
			req = types.Requirements{}
		}

		candidates := c.registry.FindEligible(req)
		if len(candidates) == 0 {
			pass.Unmatched++
			if esc, ok := c.recordMiss(entry); ok {
				pass.Escalations = append(pass.Escalations, esc)
				c.notifier.ChatEscalated(esc)
			}
			continue
		}

		assignment, taken, conflicts, ok := c.commit(entry, candidates)
		pass.Conflicts += conflicts
		if !ok {
			continue
		}

		pass.Assignments = append(pass.Assignments, assignment)
		c.notifier.ChatAssigned(assignment, taken)
		if c.metrics != nil {
			c.metrics.RecordAssigned(assignment.Forced)
		}

		c.logger.Info().
			Str("queue_id", taken.QueueID).
			Str("session_id", taken.SessionID).
			Str("agent_id", assignment.AgentID).
			Str("priority", string(taken.Priority)).
			Float64("wait_time", assignment.WaitTime).
			Bool("forced", assignment.Forced).
			Msg("chat routed to agent")
	}

	pass.Duration = time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordMatchPass(pass.Duration, pass.Unmatched, pass.Conflicts)
	}
	return pass
}

// commit offers the entry to candidates in strategy order until one commit
// succeeds. Queue removal and agent assignment happen together or not at all.
func (c *Coordinator) commit(entry types.QueueEntry, candidates []types.Agent) (types.Assignment, types.QueueEntry, int, bool) {
	conflicts := 0

	for len(candidates) > 0 {
		agent := c.strategy.SelectAgent(entry, candidates)
		if agent == nil {
			break
		}
		agentID := agent.AgentID

		var assignment types.Assignment
		taken, err := c.queue.Take(entry.QueueID, func(live types.QueueEntry) error {
			a, err := c.registry.AssignEntry(agentID, live)
			if err != nil {
				return err
			}
			assignment = a
			return nil
		})

		switch {
		case err == nil:
			return assignment, taken, conflicts, true
		case errors.Is(err, types.ErrConcurrentModification):
			// Entry removed, assigned or escalating since Ordered was read
			conflicts++
			return types.Assignment{}, types.QueueEntry{}, conflicts, false
		case errors.Is(err, types.ErrCapacityExceeded),
			errors.Is(err, types.ErrAgentUnavailable),
			errors.Is(err, types.ErrNotFound),
			errors.Is(err, types.ErrDuplicateSession):
			conflicts++
			c.logger.Debug().Err(err).
				Str("queue_id", entry.QueueID).
				Str("agent_id", agentID).
				Msg("candidate no longer eligible")
			candidates = without(candidates, agentID)
		default:
			c.logger.Error().Err(err).
				Str("queue_id", entry.QueueID).
				Str("agent_id", agentID).
				Msg("assignment commit failed")
			return types.Assignment{}, types.QueueEntry{}, conflicts, false
		}
	}

	return types.Assignment{}, types.QueueEntry{}, conflicts, false
}

// recordMiss counts a failed attempt and escalates once the entry runs out of attempts
func (c *Coordinator) recordMiss(entry types.QueueEntry) (types.Escalation, bool) {
	updated, err := c.queue.RecordAttempt(entry.QueueID)
	if err != nil {
		return types.Escalation{}, false
	}
	if updated.ForceAssign || updated.Attempts < updated.MaxAttempts {
		return types.Escalation{}, false
	}

	esc, err := c.escalator.Escalate(updated.QueueID, types.ReasonMaxAttemptsExceeded)
	if err != nil {
		if !errors.Is(err, types.ErrNotFound) && !errors.Is(err, types.ErrConcurrentModification) {
			c.logger.Error().Err(err).Str("queue_id", updated.QueueID).Msg("max attempts escalation failed")
		}
		return types.Escalation{}, false
	}
	return esc, true
}
