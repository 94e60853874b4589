package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/rs/zerolog"
)

// Disconnector closes agent console connections
type Disconnector interface {
	ForceDisconnect(agentID string) bool
}

// AgentActionsHandler provides REST endpoints for supervisor actions on agents
type AgentActionsHandler struct {
	svc      *service.Service
	consoles Disconnector
	logger   zerolog.Logger
}

// NewAgentActionsHandler creates a new AgentActionsHandler
func NewAgentActionsHandler(svc *service.Service, consoles Disconnector, logger zerolog.Logger) *AgentActionsHandler {
	return &AgentActionsHandler{
		svc:      svc,
		consoles: consoles,
		logger:   logger.With().Str("component", "agent_actions").Logger(),
	}
}

type transferRequest struct {
	Note string `json:"note"`
}

// Transfer handles POST /api/agents/{agentId}/chats/{sessionId}/transfer
func (h *AgentActionsHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	sessionID := chi.URLParam(r, "sessionId")

	var req transferRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, h.logger, err)
		return
	}

	entry, err := h.svc.TransferChat(agentID, sessionID, req.Note)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("agent_id", agentID).
		Str("session_id", sessionID).
		Str("queue_id", entry.QueueID).
		Msg("transferred chat via API")

	respond(w, r, http.StatusOK, entry)
}

// Logout handles POST /api/agents/{agentId}/logout
func (h *AgentActionsHandler) Logout(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	if _, err := h.svc.GetAgent(agentID); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	// The hub takes the agent offline once the console is gone
	if !h.consoles.ForceDisconnect(agentID) {
		respond(w, r, http.StatusNotFound, errorResponse{Error: "agent not connected"})
		return
	}

	h.logger.Info().
		Str("agent_id", agentID).
		Msg("force-disconnected agent via API")

	respond(w, r, http.StatusOK, map[string]string{
		"message": "agent logged out",
		"agentId": agentID,
	})
}
