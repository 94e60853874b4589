package service

import (
	"fmt"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/types"
)

// RegisterAgent adds or re-activates an agent
func (s *Service) RegisterAgent(reg types.AgentRegistration) (types.Agent, error) {
	agent, err := s.registry.Register(reg)
	if err != nil {
		return types.Agent{}, err
	}
	s.coord.Trigger()
	return agent, nil
}

// UpdateAgentStatus changes an agent's status. Agents going offline keep their chats;
// the change is flagged and logged for a supervisor to follow up.
func (s *Service) UpdateAgentStatus(agentID string, status types.AgentStatus, reason string) (types.StatusChange, error) {
	change, err := s.registry.UpdateStatus(agentID, status, reason)
	if err != nil {
		return types.StatusChange{}, err
	}

	if change.Flagged {
		s.logger.Warn().
			Str("agent_id", agentID).
			Int("active_chats", change.Agent.Load()).
			Msg("agent went offline with active chats")
	}
	if status == types.StatusAvailable {
		s.coord.Trigger()
	}
	return change, nil
}

// UpdateAgentActivity records a heartbeat
func (s *Service) UpdateAgentActivity(agentID string) (types.Agent, error) {
	agent, resumed, err := s.registry.UpdateActivity(agentID)
	if err != nil {
		return types.Agent{}, err
	}
	if resumed {
		s.coord.Trigger()
	}
	return agent, nil
}

// DeactivateAgent logically removes an agent
func (s *Service) DeactivateAgent(agentID string) (types.Agent, error) {
	return s.registry.Deactivate(agentID)
}

// AssignChatToAgent assigns a session to a specific agent. A queued session
// leaves the queue in the same step; otherwise the session is assigned as is.
func (s *Service) AssignChatToAgent(agentID, sessionID string) (types.Assignment, error) {
	if entry, err := s.queue.BySession(sessionID); err == nil {
		var assignment types.Assignment
		taken, err := s.queue.Take(entry.QueueID, func(live types.QueueEntry) error {
			a, err := s.registry.AssignEntry(agentID, live)
			if err != nil {
				return err
			}
			assignment = a
			return nil
		})
		if err != nil {
			return types.Assignment{}, err
		}
		s.metrics.RecordAssigned(assignment.Forced)
		s.notifyAssigned(assignment, taken)
		return assignment, nil
	}

	var assignment types.Assignment
	err := s.queue.Unqueued(sessionID, func() error {
		a, err := s.registry.Assign(agentID, sessionID)
		if err != nil {
			return err
		}
		assignment = a
		return nil
	})
	if err != nil {
		return types.Assignment{}, err
	}
	s.metrics.RecordAssigned(false)
	s.notifyAssigned(assignment, types.QueueEntry{SessionID: sessionID})
	return assignment, nil
}

// RemoveChatFromAgent ends a chat for an agent and persists the chat record
func (s *Service) RemoveChatFromAgent(agentID, sessionID string, res types.Resolution) (types.Agent, error) {
	chat, err := s.registry.Chat(agentID, sessionID)
	if err != nil {
		return types.Agent{}, err
	}

	agent, err := s.registry.Release(agentID, sessionID, res)
	if err != nil {
		return types.Agent{}, err
	}

	summary := agent.ChatHistory[len(agent.ChatHistory)-1]
	s.persist(chatRecord(agent, chat, summary, s.policy.SLA.For(priorityOf(chat))))
	s.metrics.RecordReleased()
	s.events.ChatReleased(agentID, summary)
	s.coord.Trigger()

	return agent, nil
}

// TransferChat takes a chat away from an agent and puts it back in the queue at
// its previous priority. The new entry avoids the agent it came from. The chat
// is queued before it is released, so a failed requeue leaves it with the agent.
func (s *Service) TransferChat(agentID, sessionID, note string) (types.QueueEntry, error) {
	chat, err := s.registry.Chat(agentID, sessionID)
	if err != nil {
		return types.QueueEntry{}, err
	}

	session := types.ChatSession{
		SessionID:     sessionID,
		CustomerID:    chat.CustomerID,
		PreviousAgent: agentID,
	}
	priority := string(types.PriorityMedium)
	var req types.Requirements
	if chat.Entry != nil {
		session.CustomerName = chat.Entry.CustomerName
		session.CustomerData = chat.Entry.CustomerData
		session.Metadata = chat.Entry.Metadata
		priority = string(chat.Entry.Priority)
		req = chat.Entry.Requirements
	}
	if session.CustomerID == "" {
		// Directly assigned chats carry no customer; keep the session as its own key
		session.CustomerID = sessionID
	}

	entry, err := s.enqueue(EnqueueRequest{Session: session, Priority: priority, Requirements: req}, agentID)
	if err != nil {
		return types.QueueEntry{}, fmt.Errorf("requeue transferred chat %s: %w", sessionID, err)
	}

	if _, err := s.RemoveChatFromAgent(agentID, sessionID, types.Resolution{
		Status: types.ResolutionTransferred,
		Notes:  note,
	}); err != nil {
		s.queue.Dequeue(entry.QueueID, "transfer failed")
		return types.QueueEntry{}, err
	}

	s.send(agentID, types.ChatRevoke{
		Type:      "chat_revoke",
		AgentID:   agentID,
		SessionID: sessionID,
		Reason:    "transferred",
	})

	s.logger.Info().
		Str("session_id", sessionID).
		Str("from_agent", agentID).
		Str("queue_id", entry.QueueID).
		Msg("chat transferred back to queue")

	return entry, nil
}

// GetAgent returns one agent
func (s *Service) GetAgent(agentID string) (types.Agent, error) {
	return s.registry.Get(agentID)
}

// ListAgents returns every agent ordered by ID
func (s *Service) ListAgents() []types.Agent {
	return s.registry.List()
}

// AgentChats returns the persisted chat records of an agent for one day (YYYY-MM-DD)
func (s *Service) AgentChats(agentID, date string) ([]types.ChatRecord, error) {
	if _, err := time.Parse(dateLayout, date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", types.ErrValidation)
	}
	if _, err := s.registry.Get(agentID); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, nil
	}
	return s.store.GetAgentChatsByDate(agentID, date)
}

// SweepIdleAgents parks agents whose heartbeat is older than the idle timeout
func (s *Service) SweepIdleAgents() []string {
	return s.registry.SweepIdle(s.policy.AgentIdleTimeout)
}

// RefreshGauges pushes queue depth and agent distribution into metrics
func (s *Service) RefreshGauges() {
	s.metrics.UpdateQueueDepth(s.queue.Status())
	s.metrics.UpdateAgentStats(s.registry.CountByStatus())
}

// Snapshot builds the payload broadcast to dashboards
func (s *Service) Snapshot() types.DashboardSnapshot {
	agents := s.registry.List()
	summaries := make([]types.AgentSummary, 0, len(agents))
	for _, a := range agents {
		if !a.Active {
			continue
		}
		summaries = append(summaries, types.AgentSummary{
			AgentID:      a.AgentID,
			Name:         a.Name,
			Department:   a.Department,
			Status:       a.Status,
			IsOnline:     a.IsOnline,
			Load:         a.Load(),
			MaxChats:     a.Preferences.MaxConcurrentChats,
			LastActivity: a.LastActivity,
		})
	}

	return types.DashboardSnapshot{
		Type:          "queue_snapshot",
		Timestamp:     s.now(),
		Status:        s.GetQueueStatus(),
		Metrics:       s.queue.Metrics(),
		Queue:         s.queue.Ordered(),
		AgentsByState: s.registry.CountByStatus(),
		Agents:        summaries,
	}
}
