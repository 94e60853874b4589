package ingestion

import (
	"github.com/kishorekota-dev/chatrouter/internal/types"
)

// EventProcessor processes messages sent by agent consoles. A returned error
// is reported back to the console that sent the message.
type EventProcessor interface {
	ProcessRegister(reg *types.AgentRegister) error
	ProcessHeartbeat(hb *types.AgentHeartbeat) error
	ProcessStatusChange(sc *types.AgentStatusChange) error
	ProcessChatComplete(cc *types.ChatComplete) error
	ProcessDisconnect(agentID string)
}

// AgentService is the part of the service the processor drives
type AgentService interface {
	GetAgent(agentID string) (types.Agent, error)
	UpdateAgentStatus(agentID string, status types.AgentStatus, reason string) (types.StatusChange, error)
	UpdateAgentActivity(agentID string) (types.Agent, error)
	RemoveChatFromAgent(agentID, sessionID string, res types.Resolution) (types.Agent, error)
}
