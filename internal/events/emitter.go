package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// Event types published to the exchange
const (
	TypeChatAssigned  = "chat.assigned"
	TypeChatEscalated = "chat.escalated"
	TypeChatAbandoned = "chat.abandoned"
	TypeChatReleased  = "chat.released"
)

const bufferSize = 256

// Event is the envelope of every published message
type Event struct {
	Type       string             `json:"type"`
	EventID    string             `json:"eventId"`
	Timestamp  time.Time          `json:"timestamp"`
	Assignment *types.Assignment  `json:"assignment,omitempty"`
	Escalation *types.Escalation  `json:"escalation,omitempty"`
	Release    *types.ChatSummary `json:"release,omitempty"`
	AgentID    string             `json:"agentId,omitempty"`
}

// Emitter turns routing outcomes into broker events. Events are buffered and
// published by Run so a slow broker never stalls matching; when the buffer is
// full new events are dropped.
type Emitter struct {
	publisher Publisher
	exchange  string
	queue     chan Event
	logger    zerolog.Logger
}

// NewEmitter creates an emitter publishing to exchange
func NewEmitter(publisher Publisher, exchange string, logger zerolog.Logger) *Emitter {
	return &Emitter{
		publisher: publisher,
		exchange:  exchange,
		queue:     make(chan Event, bufferSize),
		logger:    logger.With().Str("component", "events").Logger(),
	}
}

// ChatAssigned emits chat.assigned
func (e *Emitter) ChatAssigned(a types.Assignment, _ types.QueueEntry) {
	e.emit(Event{Type: TypeChatAssigned, Assignment: &a, AgentID: a.AgentID})
}

// ChatEscalated emits chat.escalated, or chat.abandoned when escalation gave up on the entry
func (e *Emitter) ChatEscalated(esc types.Escalation) {
	eventType := TypeChatEscalated
	if esc.Outcome == types.OutcomeAbandoned {
		eventType = TypeChatAbandoned
	}
	e.emit(Event{Type: eventType, Escalation: &esc})
}

// ChatReleased emits chat.released
func (e *Emitter) ChatReleased(agentID string, summary types.ChatSummary) {
	e.emit(Event{Type: TypeChatReleased, Release: &summary, AgentID: agentID})
}

func (e *Emitter) emit(ev Event) {
	ev.EventID = uuid.New().String()
	ev.Timestamp = time.Now()

	select {
	case e.queue <- ev:
	default:
		e.logger.Warn().Str("type", ev.Type).Msg("event buffer full, dropping event")
	}
}

// Run publishes buffered events until ctx is cancelled, then drains what is left
func (e *Emitter) Run(ctx context.Context) {
	for {
		select {
		case ev := <-e.queue:
			e.publish(ev)
		case <-ctx.Done():
			for {
				select {
				case ev := <-e.queue:
					e.publish(ev)
				default:
					return
				}
			}
		}
	}
}

func (e *Emitter) publish(ev Event) {
	body, err := json.Marshal(ev)
	if err != nil {
		e.logger.Error().Err(err).Str("type", ev.Type).Msg("failed to marshal event")
		return
	}
	if err := e.publisher.Publish(e.exchange, ev.Type, body); err != nil {
		e.logger.Error().Err(err).Str("type", ev.Type).Str("event_id", ev.EventID).Msg("failed to publish event")
	}
}
