package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/render"
	"github.com/kishorekota-dev/chatrouter/internal/ingestion"
	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

const maxEventSize = 64 << 10

// Receiver accepts agent console events over HTTP for integrations that do
// not hold a websocket, e.g. a telephony or CCaaS adapter. Events use the same
// JSON shapes as the agent websocket protocol.
type Receiver struct {
	processor      ingestion.EventProcessor
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	eventsReceived int64
	eventsFailed   int64
	lastReceived   time.Time
	mu             sync.RWMutex
}

// NewReceiver creates a new event receiver
func NewReceiver(processor ingestion.EventProcessor, m *metrics.Metrics, logger zerolog.Logger) *Receiver {
	if m == nil {
		m = metrics.New()
	}
	return &Receiver{
		processor: processor,
		metrics:   m,
		logger:    logger.With().Str("component", "event_receiver").Logger(),
	}
}

// HandleEvent handles POST /internal/agents/events
func (r *Receiver) HandleEvent(w http.ResponseWriter, req *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, req.Body, maxEventSize))
	if err != nil {
		r.fail(w, req, fmt.Errorf("%w: %v", types.ErrValidation, err))
		return
	}

	if err := r.dispatch(body); err != nil {
		r.fail(w, req, err)
		return
	}

	count := atomic.AddInt64(&r.eventsReceived, 1)
	r.mu.Lock()
	r.lastReceived = time.Now()
	r.mu.Unlock()

	if count%1000 == 0 {
		r.logger.Info().Int64("total_received", count).Msg("events received")
	}

	w.WriteHeader(http.StatusAccepted)
}

func (r *Receiver) dispatch(body []byte) error {
	var envelope struct {
		Type    string `json:"type"`
		AgentID string `json:"agentId"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("%w: invalid event: %v", types.ErrValidation, err)
	}
	if envelope.AgentID == "" {
		return fmt.Errorf("%w: agentId is required", types.ErrValidation)
	}

	switch envelope.Type {
	case "register":
		var reg types.AgentRegister
		if err := json.Unmarshal(body, &reg); err != nil {
			return fmt.Errorf("%w: %v", types.ErrValidation, err)
		}
		return r.processor.ProcessRegister(&reg)

	case "heartbeat":
		var hb types.AgentHeartbeat
		if err := json.Unmarshal(body, &hb); err != nil {
			return fmt.Errorf("%w: %v", types.ErrValidation, err)
		}
		return r.processor.ProcessHeartbeat(&hb)

	case "status_change":
		var sc types.AgentStatusChange
		if err := json.Unmarshal(body, &sc); err != nil {
			return fmt.Errorf("%w: %v", types.ErrValidation, err)
		}
		return r.processor.ProcessStatusChange(&sc)

	case "chat_complete":
		var cc types.ChatComplete
		if err := json.Unmarshal(body, &cc); err != nil {
			return fmt.Errorf("%w: %v", types.ErrValidation, err)
		}
		return r.processor.ProcessChatComplete(&cc)

	case "disconnect":
		r.processor.ProcessDisconnect(envelope.AgentID)
		return nil

	default:
		return fmt.Errorf("%w: unknown event type %q", types.ErrValidation, envelope.Type)
	}
}

func (r *Receiver) fail(w http.ResponseWriter, req *http.Request, err error) {
	atomic.AddInt64(&r.eventsFailed, 1)
	r.metrics.RecordWebSocketError()

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrCapacityExceeded), errors.Is(err, types.ErrConcurrentModification):
		status = http.StatusConflict
	}
	r.logger.Debug().Err(err).Int("status", status).Msg("agent event rejected")

	render.Status(req, status)
	render.JSON(w, req, map[string]string{"error": err.Error()})
}

// GetStats returns receiver statistics
func (r *Receiver) GetStats(w http.ResponseWriter, req *http.Request) {
	r.mu.RLock()
	lastReceived := r.lastReceived
	r.mu.RUnlock()

	render.JSON(w, req, map[string]interface{}{
		"events_received": atomic.LoadInt64(&r.eventsReceived),
		"events_failed":   atomic.LoadInt64(&r.eventsFailed),
		"last_received":   lastReceived,
	})
}
