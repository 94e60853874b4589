package service

import (
	"fmt"

	"github.com/kishorekota-dev/chatrouter/internal/alerts"
	"github.com/kishorekota-dev/chatrouter/internal/types"
)

// EnqueueRequest is what the chat layer sends when a customer asks for a human
type EnqueueRequest struct {
	Session      types.ChatSession
	Priority     string // free-form, normalized
	Requirements types.Requirements
}

// Enqueue puts a session in the queue and asks the coordinator for a pass.
// A session an agent is holding cannot be queued.
func (s *Service) Enqueue(req EnqueueRequest) (types.QueueEntry, error) {
	entry, err := s.enqueue(req, "")
	if err != nil {
		return types.QueueEntry{}, err
	}

	s.coord.Trigger()
	return entry, nil
}

// enqueue admits a session unless an agent other than holder has it
func (s *Service) enqueue(req EnqueueRequest, holder string) (types.QueueEntry, error) {
	entry, err := s.queue.EnqueueChecked(req.Session, req.Priority, req.Requirements, func(sessionID string) error {
		if agentID, held := s.registry.Holder(sessionID); held && agentID != holder {
			return fmt.Errorf("%w: session %s is held by agent %s", types.ErrDuplicateSession, sessionID, agentID)
		}
		return nil
	})
	if err != nil {
		return types.QueueEntry{}, err
	}

	s.metrics.RecordEnqueued()
	return entry, nil
}

// RemoveFromQueue drops a waiting session, e.g. when the customer leaves. Idempotent.
func (s *Service) RemoveFromQueue(queueID, reason string) bool {
	return s.queue.Dequeue(queueID, reason)
}

// EscalateChat escalates a waiting session on request of a person. An empty
// reason means manual; system reasons are rejected.
func (s *Service) EscalateChat(queueID string, reason types.EscalationReason) (types.Escalation, error) {
	if reason == "" {
		reason = types.ReasonManual
	}
	if !reason.Manual() {
		return types.Escalation{}, fmt.Errorf("%w: %q cannot be requested manually", types.ErrValidation, reason)
	}

	esc, err := s.tracker.Escalate(queueID, reason)
	if err != nil {
		return types.Escalation{}, err
	}

	s.notifyEscalated(esc)
	s.coord.Trigger()
	return esc, nil
}

// Queue returns the waiting entries in dispatch order
func (s *Service) Queue() []types.QueueEntry {
	return s.queue.Ordered()
}

// QueueEntry returns one waiting entry
func (s *Service) QueueEntry(queueID string) (types.QueueEntry, error) {
	return s.queue.Get(queueID)
}

// Position returns the 1-based rank of a waiting entry
func (s *Service) Position(queueID string) (int, error) {
	return s.queue.Position(queueID)
}

// GetQueueStatus returns the dashboard status including SLA alerts
func (s *Service) GetQueueStatus() types.QueueStatus {
	status := s.queue.Status()
	status.Alerts = alerts.CheckQueueAlerts(s.queue.Ordered(), s.policy.SLA, s.now())
	return status
}

// QueueMetrics returns the cumulative queue counters
func (s *Service) QueueMetrics() types.QueueMetrics {
	return s.queue.Metrics()
}

// Escalations returns the retained escalations of one entry, or all of them when queueID is empty
func (s *Service) Escalations(queueID string) []types.Escalation {
	if queueID == "" {
		return s.tracker.All()
	}
	return s.tracker.History(queueID)
}

// EscalationRecords returns the persisted escalation trail of an entry
func (s *Service) EscalationRecords(queueID string) ([]types.EscalationRecord, error) {
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetEscalationRecords(queueID)
}

// SweepSLA escalates entries past their band threshold outside a matching pass
func (s *Service) SweepSLA() []types.Escalation {
	escalated := s.tracker.CheckWaitTimes()
	for _, esc := range escalated {
		s.notifyEscalated(esc)
	}
	if len(escalated) > 0 {
		s.coord.Trigger()
	}
	return escalated
}

// WipeQueue removes every waiting entry
func (s *Service) WipeQueue() int {
	return s.queue.Wipe()
}

// WipeStorage truncates the persisted records
func (s *Service) WipeStorage() error {
	if s.store == nil {
		return nil
	}
	return s.store.TruncateAll()
}

// TriggerMatching asks for a matching pass without waiting for it
func (s *Service) TriggerMatching() {
	s.coord.Trigger()
}
