package websocket

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// agentUpgrader is the WebSocket upgrader for agent consoles
var agentUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Agent consoles are internal clients
		return true
	},
}

// AgentHandler handles WebSocket upgrade requests from agent consoles
type AgentHandler struct {
	hub    *AgentHub
	logger zerolog.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(hub *AgentHub, logger zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		hub:    hub,
		logger: logger,
	}
}

// ServeHTTP upgrades the connection. The agent is bound once the console sends register.
func (h *AgentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := agentUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.hub.metrics.RecordWebSocketError()
		h.logger.Error().Err(err).Msg("failed to upgrade agent connection")
		return
	}

	client := NewAgentClient(h.hub, conn, h.logger)
	client.Start()
}
