package service

import (
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/types"
)

const dateLayout = "2006-01-02"

// chatRecord converts a released chat to its persisted form
func chatRecord(agent types.Agent, chat types.ActiveChat, summary types.ChatSummary, sla time.Duration) types.ChatRecord {
	record := types.ChatRecord{
		DateKey:    summary.AssignedAt.Format(dateLayout),
		SessionID:  summary.SessionID,
		QueueID:    summary.QueueID,
		AgentID:    agent.AgentID,
		CustomerID: summary.CustomerID,
		Department: agent.Department,
		AssignedAt: summary.AssignedAt.Format(time.RFC3339),
		ReleasedAt: summary.ReleasedAt.Format(time.RFC3339),
		HandleTime: summary.Duration,
		Resolution: string(summary.Resolution),
		Rating:     summary.Rating,
	}

	if chat.Entry != nil {
		wait := chat.AssignedAt.Sub(chat.Entry.QueuedAt)
		record.Priority = string(chat.Entry.Priority)
		record.QueuedAt = chat.Entry.QueuedAt.Format(time.RFC3339)
		record.WaitTime = wait.Seconds()
		record.Escalations = chat.Entry.EscalationCount
		record.AnsweredInSL = wait <= sla
	}

	return record
}

func priorityOf(chat types.ActiveChat) types.Priority {
	if chat.Entry != nil {
		return chat.Entry.Priority
	}
	return types.PriorityMedium
}

// persist saves a chat record asynchronously
func (s *Service) persist(record types.ChatRecord) {
	if s.store == nil {
		return
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.store.SaveChatRecord(record); err != nil {
			s.logger.Error().Err(err).Str("session_id", record.SessionID).Msg("failed to save chat record")
		}
	}()
}
