package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/kishorekota-dev/chatrouter/internal/ingestion"
	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

var errNotRegistered = errors.New("connection has not registered an agent")

// agentEvent is a parsed console message together with the connection it came from
type agentEvent struct {
	client *AgentClient
	msg    interface{}
}

// AgentHub maintains the set of active agent console connections
type AgentHub struct {
	// Registered agent clients
	agents map[string]*AgentClient // agentID -> client

	// Messages from agent clients
	inbound chan agentEvent

	// Unregister requests from agent clients
	unregister chan *AgentClient

	// Closed when Run returns
	done chan struct{}

	// Mutex to protect agents map
	mu sync.RWMutex

	processor ingestion.EventProcessor
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewAgentHub creates a new AgentHub
func NewAgentHub(processor ingestion.EventProcessor, m *metrics.Metrics, logger zerolog.Logger) *AgentHub {
	if m == nil {
		m = metrics.New()
	}
	return &AgentHub{
		agents:     make(map[string]*AgentClient),
		inbound:    make(chan agentEvent, 1000),
		unregister: make(chan *AgentClient),
		done:       make(chan struct{}),
		processor:  processor,
		metrics:    m,
		logger:     logger.With().Str("component", "agent_hub").Logger(),
	}
}

// Run starts the hub's main loop. Every console is closed when ctx is cancelled.
func (h *AgentHub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, client := range h.agents {
				delete(h.agents, id)
				client.Close()
			}
			h.mu.Unlock()
			return

		case client := <-h.unregister:
			h.mu.Lock()
			existing, ok := h.agents[client.agentID]
			bound := ok && existing == client
			if bound {
				delete(h.agents, client.agentID)
			}
			total := len(h.agents)
			h.mu.Unlock()
			client.Close()

			if bound {
				h.metrics.RecordWebSocketDisconnect()
				h.processor.ProcessDisconnect(client.agentID)
				h.logger.Debug().
					Str("agent_id", client.agentID).
					Int("total_agents", total).
					Msg("agent disconnected")
			}

		case ev := <-h.inbound:
			h.dispatch(ev)
		}
	}
}

func (h *AgentHub) dispatch(ev agentEvent) {
	if reg, ok := ev.msg.(*types.AgentRegister); ok {
		h.handleRegister(ev.client, reg)
		return
	}

	if !h.bound(ev.client) {
		ev.client.ack(errNotRegistered)
		return
	}

	var err error
	switch msg := ev.msg.(type) {
	case *types.AgentHeartbeat:
		if err = h.processor.ProcessHeartbeat(msg); err == nil {
			return
		}
	case *types.AgentStatusChange:
		err = h.processor.ProcessStatusChange(msg)
	case *types.ChatComplete:
		err = h.processor.ProcessChatComplete(msg)
	default:
		h.logger.Warn().Msgf("unexpected agent event %T", msg)
		return
	}

	if err != nil {
		h.metrics.RecordWebSocketError()
		h.logger.Debug().Err(err).Str("agent_id", ev.client.agentID).Msg("agent message rejected")
	}
	ev.client.ack(err)
}

func (h *AgentHub) handleRegister(client *AgentClient, reg *types.AgentRegister) {
	if err := h.processor.ProcessRegister(reg); err != nil {
		h.metrics.RecordWebSocketError()
		h.logger.Info().Err(err).Str("agent_id", reg.AgentID).Msg("agent registration rejected")
		client.ack(err)
		return
	}

	h.mu.Lock()
	existing, replaced := h.agents[reg.AgentID]
	if replaced && existing != client {
		// A newer console for the same agent wins
		existing.Close()
	}
	h.agents[reg.AgentID] = client
	total := len(h.agents)
	h.mu.Unlock()

	if !replaced || existing != client {
		h.metrics.RecordWebSocketConnect()
	}
	h.logger.Debug().
		Str("agent_id", reg.AgentID).
		Int("total_agents", total).
		Msg("agent connected")

	client.ack(nil)
}

func (h *AgentHub) bound(client *AgentClient) bool {
	if client.agentID == "" {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.agents[client.agentID] == client
}

// submit hands a parsed message to the hub loop
func (h *AgentHub) submit(ev agentEvent) bool {
	select {
	case h.inbound <- ev:
		return true
	case <-h.done:
		return false
	}
}

func (h *AgentHub) leave(client *AgentClient) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// RevokeChat tells an agent console that a chat was taken away
func (h *AgentHub) RevokeChat(agentID, sessionID, reason string) bool {
	data, err := json.Marshal(types.ChatRevoke{
		Type:      "chat_revoke",
		AgentID:   agentID,
		SessionID: sessionID,
		Reason:    reason,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal chat_revoke")
		return false
	}
	return h.SendToAgent(agentID, data)
}

// ForceDisconnect sends a force_disconnect message to the agent, then closes
// the connection and takes the agent offline
func (h *AgentHub) ForceDisconnect(agentID string) bool {
	data, err := json.Marshal(types.ForceDisconnect{
		Type:    "force_disconnect",
		AgentID: agentID,
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to marshal force_disconnect")
		return false
	}

	// Send the message first
	h.SendToAgent(agentID, data)

	h.mu.Lock()
	client, ok := h.agents[agentID]
	if ok {
		delete(h.agents, agentID)
	}
	h.mu.Unlock()

	if ok {
		client.Close()
		h.metrics.RecordWebSocketDisconnect()
		h.processor.ProcessDisconnect(agentID)
		h.logger.Info().Str("agent_id", agentID).Msg("agent force-disconnected")
	}
	return ok
}

// AgentCount returns the number of connected agents
func (h *AgentHub) AgentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.agents)
}

// SendToAgent sends a message to a specific agent
func (h *AgentHub) SendToAgent(agentID string, message []byte) bool {
	h.mu.RLock()
	client, ok := h.agents[agentID]
	h.mu.RUnlock()

	if !ok {
		return false
	}

	return client.safeSend(message)
}
