package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// rosterResult reports one failed roster entry
type rosterResult struct {
	Index int    `json:"index"`
	Email string `json:"email"`
	Error string `json:"error"`
}

// RosterHandler handles bulk agent registration from workforce tooling
type RosterHandler struct {
	svc    *service.Service
	logger zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler
func NewRosterHandler(svc *service.Service, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		svc:    svc,
		logger: logger.With().Str("component", "roster").Logger(),
	}
}

// HandleRoster handles POST /internal/agents/roster. Entries are registered
// one by one; invalid ones are reported without failing the batch.
func (h *RosterHandler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	var roster []types.AgentRegistration
	if err := render.DecodeJSON(r.Body, &roster); err != nil {
		respondError(w, r, h.logger, fmt.Errorf("%w: invalid roster: %w", types.ErrValidation, err))
		return
	}

	registered := 0
	failed := []rosterResult{}
	for i, reg := range roster {
		if _, err := h.svc.RegisterAgent(reg); err != nil {
			failed = append(failed, rosterResult{Index: i, Email: reg.Email, Error: err.Error()})
			continue
		}
		registered++
	}

	h.logger.Info().
		Int("registered", registered).
		Int("failed", len(failed)).
		Msg("roster received")

	respond(w, r, http.StatusOK, map[string]interface{}{
		"registered": registered,
		"failed":     failed,
	})
}
