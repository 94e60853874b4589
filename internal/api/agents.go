package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// AgentsHandler exposes the agent-layer operations
type AgentsHandler struct {
	svc    *service.Service
	logger zerolog.Logger
}

// NewAgentsHandler creates a new AgentsHandler
func NewAgentsHandler(svc *service.Service, logger zerolog.Logger) *AgentsHandler {
	return &AgentsHandler{
		svc:    svc,
		logger: logger.With().Str("component", "agents_handler").Logger(),
	}
}

type statusRequest struct {
	Status types.AgentStatus `json:"status" validate:"required,oneof=available busy away offline"`
	Reason string            `json:"reason"`
}

type assignRequest struct {
	SessionID string `json:"sessionId" validate:"required"`
}

// Register handles POST /api/agents
func (h *AgentsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var reg types.AgentRegistration
	if err := decode(r, &reg); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	agent, err := h.svc.RegisterAgent(reg)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("agent_id", agent.AgentID).
		Str("department", agent.Department).
		Msg("agent registered")

	respond(w, r, http.StatusCreated, agent)
}

// List handles GET /api/agents
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.svc.ListAgents())
}

// Get handles GET /api/agents/{agentId}
func (h *AgentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	agent, err := h.svc.GetAgent(chi.URLParam(r, "agentId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, r, http.StatusOK, agent)
}

// Deactivate handles DELETE /api/agents/{agentId}
func (h *AgentsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	agent, err := h.svc.DeactivateAgent(chi.URLParam(r, "agentId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, r, http.StatusOK, agent)
}

// UpdateStatus handles PUT /api/agents/{agentId}/status
func (h *AgentsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	change, err := h.svc.UpdateAgentStatus(chi.URLParam(r, "agentId"), req.Status, req.Reason)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, r, http.StatusOK, change)
}

// Activity handles POST /api/agents/{agentId}/activity
func (h *AgentsHandler) Activity(w http.ResponseWriter, r *http.Request) {
	agent, err := h.svc.UpdateAgentActivity(chi.URLParam(r, "agentId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, r, http.StatusOK, agent)
}

// Assign handles POST /api/agents/{agentId}/chats
func (h *AgentsHandler) Assign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	assignment, err := h.svc.AssignChatToAgent(chi.URLParam(r, "agentId"), req.SessionID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, r, http.StatusCreated, assignment)
}

// Release handles DELETE /api/agents/{agentId}/chats/{sessionId}. The
// resolution body is optional and defaults to resolved.
func (h *AgentsHandler) Release(w http.ResponseWriter, r *http.Request) {
	res := types.Resolution{Status: types.ResolutionResolved}
	if r.ContentLength > 0 {
		if err := decode(r, &res); err != nil {
			respondError(w, r, h.logger, err)
			return
		}
	}

	agent, err := h.svc.RemoveChatFromAgent(chi.URLParam(r, "agentId"), chi.URLParam(r, "sessionId"), res)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, r, http.StatusOK, agent)
}
