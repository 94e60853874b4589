package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// AgentHistoryHandler serves persisted chat records
type AgentHistoryHandler struct {
	svc    *service.Service
	now    func() time.Time
	logger zerolog.Logger
}

// NewAgentHistoryHandler creates a new AgentHistoryHandler
func NewAgentHistoryHandler(svc *service.Service, logger zerolog.Logger) *AgentHistoryHandler {
	return &AgentHistoryHandler{
		svc:    svc,
		now:    time.Now,
		logger: logger.With().Str("component", "agent_history_handler").Logger(),
	}
}

// GetHistory returns the chat records of an agent for one day
// GET /api/agents/{agentId}/history?date=YYYY-MM-DD (defaults to today, UTC)
func (h *AgentHistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.now().UTC().Format("2006-01-02")
	}

	records, err := h.svc.AgentChats(agentID, date)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	if records == nil {
		records = []types.ChatRecord{}
	}
	respond(w, r, http.StatusOK, records)
}
