package ingestion

import (
	"fmt"

	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// DefaultProcessor implements EventProcessor by delegating to the service
type DefaultProcessor struct {
	service AgentService
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewDefaultProcessor creates a new DefaultProcessor
func NewDefaultProcessor(service AgentService, m *metrics.Metrics, logger zerolog.Logger) *DefaultProcessor {
	if m == nil {
		m = metrics.New()
	}
	return &DefaultProcessor{
		service: service,
		metrics: m,
		logger:  logger.With().Str("component", "processor").Logger(),
	}
}

// ProcessRegister binds a console to an agent known to the registry. The agent
// becomes available unless the message asks for another status.
func (p *DefaultProcessor) ProcessRegister(reg *types.AgentRegister) error {
	p.metrics.RecordWebSocketMessage()

	if _, err := p.service.GetAgent(reg.AgentID); err != nil {
		return err
	}

	status := reg.Status
	if status == "" {
		status = types.StatusAvailable
	}
	if _, err := p.service.UpdateAgentStatus(reg.AgentID, status, "console connected"); err != nil {
		return err
	}

	p.logger.Debug().
		Str("agent_id", reg.AgentID).
		Str("status", string(status)).
		Msg("agent registered via processor")
	return nil
}

func (p *DefaultProcessor) ProcessHeartbeat(hb *types.AgentHeartbeat) error {
	p.metrics.RecordWebSocketMessage()
	_, err := p.service.UpdateAgentActivity(hb.AgentID)
	return err
}

func (p *DefaultProcessor) ProcessStatusChange(sc *types.AgentStatusChange) error {
	p.metrics.RecordWebSocketMessage()

	change, err := p.service.UpdateAgentStatus(sc.AgentID, sc.Status, sc.Reason)
	if err != nil {
		return err
	}

	p.logger.Debug().
		Str("agent_id", sc.AgentID).
		Str("prev_status", string(change.PreviousStatus)).
		Str("new_status", string(sc.Status)).
		Msg("agent status change via processor")
	return nil
}

func (p *DefaultProcessor) ProcessChatComplete(cc *types.ChatComplete) error {
	p.metrics.RecordWebSocketMessage()

	if cc.SessionID == "" {
		return fmt.Errorf("%w: sessionId is required", types.ErrValidation)
	}
	res := cc.Resolution
	if res.Status == "" {
		res.Status = types.ResolutionResolved
	}
	if _, err := p.service.RemoveChatFromAgent(cc.AgentID, cc.SessionID, res); err != nil {
		return err
	}

	p.logger.Debug().
		Str("agent_id", cc.AgentID).
		Str("session_id", cc.SessionID).
		Str("resolution", string(res.Status)).
		Msg("chat complete via processor")
	return nil
}

// ProcessDisconnect takes an agent offline when its console goes away. Held
// chats stay with the agent.
func (p *DefaultProcessor) ProcessDisconnect(agentID string) {
	if _, err := p.service.UpdateAgentStatus(agentID, types.StatusOffline, "console disconnected"); err != nil {
		p.logger.Debug().Err(err).Str("agent_id", agentID).Msg("failed to mark agent offline")
	}
}
