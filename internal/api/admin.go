package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

const maxInject = 1000

// AdminHandler serves operator endpoints under /internal
type AdminHandler struct {
	svc    *service.Service
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(svc *service.Service, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		svc:    svc,
		logger: logger.With().Str("component", "admin").Logger(),
	}
}

type injectRequest struct {
	Count      int    `json:"count" validate:"gte=0"`
	Priority   string `json:"priority"`
	Department string `json:"department"`
}

type passResponse struct {
	Assignments []types.Assignment `json:"assignments"`
	Escalations []types.Escalation `json:"escalations"`
	Unmatched   int                `json:"unmatched"`
	Conflicts   int                `json:"conflicts"`
	DurationMs  float64            `json:"durationMs"`
}

// InjectChats enqueues synthetic sessions for load and demo runs.
// Without a priority the bands are cycled.
func (h *AdminHandler) InjectChats(w http.ResponseWriter, r *http.Request) {
	var req injectRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, h.logger, err)
		return
	}
	if req.Count <= 0 {
		req.Count = 1
	}
	if req.Count > maxInject {
		req.Count = maxInject
	}

	injected := 0
	var lastErr error
	for i := 0; i < req.Count; i++ {
		priority := req.Priority
		if priority == "" {
			priority = string(types.AllPriorities[i%len(types.AllPriorities)])
		}
		session := types.ChatSession{
			SessionID:  "sim-" + uuid.New().String(),
			CustomerID: fmt.Sprintf("sim-customer-%d", i+1),
		}
		_, err := h.svc.Enqueue(service.EnqueueRequest{
			Session:      session,
			Priority:     priority,
			Requirements: types.Requirements{Department: req.Department},
		})
		if err != nil {
			lastErr = err
			continue
		}
		injected++
	}

	if injected == 0 && lastErr != nil {
		respondError(w, r, h.logger, lastErr)
		return
	}

	h.logger.Info().Int("injected", injected).Int("requested", req.Count).Msg("chats injected via admin")

	respond(w, r, http.StatusOK, map[string]interface{}{
		"message":  fmt.Sprintf("injected %d chats", injected),
		"injected": injected,
		"errors":   req.Count - injected,
	})
}

// WipeQueue handles DELETE /internal/queue
func (h *AdminHandler) WipeQueue(w http.ResponseWriter, r *http.Request) {
	cleared := h.svc.WipeQueue()

	h.logger.Info().Int("cleared", cleared).Msg("queue wiped via admin")

	respond(w, r, http.StatusOK, map[string]interface{}{
		"message": "queue wiped",
		"cleared": cleared,
	})
}

// WipeStorage handles DELETE /internal/storage
func (h *AdminHandler) WipeStorage(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.WipeStorage(); err != nil {
		respondError(w, r, h.logger, fmt.Errorf("truncate storage: %w", err))
		return
	}

	h.logger.Info().Msg("storage truncated")

	respond(w, r, http.StatusOK, map[string]string{
		"message": "storage truncated",
	})
}

// TriggerMatch handles POST /internal/match and reports what the pass did
func (h *AdminHandler) TriggerMatch(w http.ResponseWriter, r *http.Request) {
	pass := h.svc.ProcessQueue(r.Context())

	resp := passResponse{
		Assignments: pass.Assignments,
		Escalations: pass.Escalations,
		Unmatched:   pass.Unmatched,
		Conflicts:   pass.Conflicts,
		DurationMs:  float64(pass.Duration.Microseconds()) / 1000,
	}
	if resp.Assignments == nil {
		resp.Assignments = []types.Assignment{}
	}
	if resp.Escalations == nil {
		resp.Escalations = []types.Escalation{}
	}
	respond(w, r, http.StatusOK, resp)
}

// SweepSLA handles POST /internal/sla/sweep
func (h *AdminHandler) SweepSLA(w http.ResponseWriter, r *http.Request) {
	escalated := h.svc.SweepSLA()
	if escalated == nil {
		escalated = []types.Escalation{}
	}
	respond(w, r, http.StatusOK, escalated)
}
