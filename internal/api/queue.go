package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// QueueHandler exposes the chat-layer operations on the waiting queue
type QueueHandler struct {
	svc    *service.Service
	logger zerolog.Logger
}

// NewQueueHandler creates a new QueueHandler
func NewQueueHandler(svc *service.Service, logger zerolog.Logger) *QueueHandler {
	return &QueueHandler{
		svc:    svc,
		logger: logger.With().Str("component", "queue_handler").Logger(),
	}
}

type enqueueRequest struct {
	types.ChatSession
	Priority     string             `json:"priority"`
	Requirements types.Requirements `json:"requirements"`
}

type escalateRequest struct {
	Reason types.EscalationReason `json:"reason"`
}

type positionResponse struct {
	QueueID           string  `json:"queueId"`
	Position          int     `json:"position"`
	EstimatedWaitTime float64 `json:"estimatedWaitTime"`
}

// Enqueue handles POST /api/queue
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := decode(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	entry, err := h.svc.Enqueue(service.EnqueueRequest{
		Session:      req.ChatSession,
		Priority:     req.Priority,
		Requirements: req.Requirements,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("queue_id", entry.QueueID).
		Str("session_id", entry.SessionID).
		Str("priority", string(entry.Priority)).
		Msg("chat enqueued")

	respond(w, r, http.StatusCreated, entry)
}

// Remove handles DELETE /api/queue/{queueId}. Removing an entry that is gone is not an error.
func (h *QueueHandler) Remove(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")
	reason := r.URL.Query().Get("reason")
	if reason == "" {
		reason = "customer_left"
	}

	removed := h.svc.RemoveFromQueue(queueID, reason)
	respond(w, r, http.StatusOK, map[string]interface{}{
		"queueId": queueID,
		"removed": removed,
	})
}

// List handles GET /api/queue
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.svc.Queue())
}

// Get handles GET /api/queue/{queueId}
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	entry, err := h.svc.QueueEntry(chi.URLParam(r, "queueId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respond(w, r, http.StatusOK, entry)
}

// Status handles GET /api/queue/status
func (h *QueueHandler) Status(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.svc.GetQueueStatus())
}

// Metrics handles GET /api/queue/metrics
func (h *QueueHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	respond(w, r, http.StatusOK, h.svc.QueueMetrics())
}

// Position handles GET /api/queue/{queueId}/position
func (h *QueueHandler) Position(w http.ResponseWriter, r *http.Request) {
	queueID := chi.URLParam(r, "queueId")
	pos, err := h.svc.Position(queueID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	entry, err := h.svc.QueueEntry(queueID)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	respond(w, r, http.StatusOK, positionResponse{
		QueueID:           queueID,
		Position:          pos,
		EstimatedWaitTime: entry.EstimatedWaitTime,
	})
}

// Escalate handles POST /api/queue/{queueId}/escalate. The body is optional.
func (h *QueueHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	var req escalateRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, r, h.logger, err)
		return
	}

	esc, err := h.svc.EscalateChat(chi.URLParam(r, "queueId"), req.Reason)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}

	h.logger.Info().
		Str("queue_id", esc.QueueID).
		Str("reason", string(esc.Reason)).
		Str("outcome", string(esc.Outcome)).
		Msg("chat escalated on request")

	respond(w, r, http.StatusOK, esc)
}

// Escalations handles GET /api/escalations?queueId=
func (h *QueueHandler) Escalations(w http.ResponseWriter, r *http.Request) {
	escalations := h.svc.Escalations(r.URL.Query().Get("queueId"))
	if escalations == nil {
		escalations = []types.Escalation{}
	}
	respond(w, r, http.StatusOK, escalations)
}

// EscalationRecords handles GET /api/queue/{queueId}/escalations, the persisted trail
func (h *QueueHandler) EscalationRecords(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.EscalationRecords(chi.URLParam(r, "queueId"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if records == nil {
		records = []types.EscalationRecord{}
	}
	respond(w, r, http.StatusOK, records)
}
