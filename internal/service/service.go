package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/config"
	"github.com/kishorekota-dev/chatrouter/internal/escalation"
	"github.com/kishorekota-dev/chatrouter/internal/matching"
	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/queue"
	"github.com/kishorekota-dev/chatrouter/internal/registry"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// AgentSender delivers messages to connected agent consoles
type AgentSender interface {
	SendToAgent(agentID string, message []byte) bool
}

// EventSink receives routing outcomes for fan-out to other systems
type EventSink interface {
	matching.Notifier
	ChatReleased(agentID string, summary types.ChatSummary)
}

// RecordStore is the subset of storage.Store used by the service
type RecordStore interface {
	SaveChatRecord(record types.ChatRecord) error
	GetAgentChatsByDate(agentID, date string) ([]types.ChatRecord, error)
	GetEscalationRecords(queueID string) ([]types.EscalationRecord, error)
	TruncateAll() error
}

// Deps are the collaborators of a Service. Sender, Events and Store may be nil.
type Deps struct {
	Queue    *queue.Queue
	Registry *registry.Registry
	Tracker  *escalation.Tracker
	Metrics  *metrics.Metrics
	Sender   AgentSender
	Events   EventSink
	Store    RecordStore
	Policy   config.Policy
	Now      func() time.Time
}

// Service is the single entry point for the chat layer, the agent layer and dashboards
type Service struct {
	queue    *queue.Queue
	registry *registry.Registry
	tracker  *escalation.Tracker
	coord    *matching.Coordinator
	metrics  *metrics.Metrics
	sender   AgentSender
	events   EventSink
	store    RecordStore
	policy   config.Policy
	now      func() time.Time

	pending sync.WaitGroup
	logger  zerolog.Logger
}

// New wires a service and its matching coordinator
func New(deps Deps, logger zerolog.Logger) (*Service, error) {
	strategy, err := matching.StrategyByName(deps.Policy.RoutingStrategy)
	if err != nil {
		return nil, err
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Service{
		queue:    deps.Queue,
		registry: deps.Registry,
		tracker:  deps.Tracker,
		metrics:  deps.Metrics,
		sender:   deps.Sender,
		events:   deps.Events,
		store:    deps.Store,
		policy:   deps.Policy,
		now:      deps.Now,
		logger:   logger.With().Str("component", "service").Logger(),
	}
	s.coord = matching.New(deps.Queue, deps.Registry, deps.Tracker, matching.Options{
		Interval: deps.Policy.MatchInterval,
		Strategy: strategy,
		Notifier: routingNotifier{s},
		Metrics:  deps.Metrics,
	}, logger)

	return s, nil
}

// SetSender sets the agent connection layer after construction, since the
// agent hub itself is built around the service. Call it before Run.
func (s *Service) SetSender(sender AgentSender) {
	s.sender = sender
}

// Run drives the matching loop until ctx is cancelled
func (s *Service) Run(ctx context.Context) {
	s.coord.Run(ctx)
}

// ProcessQueue runs one matching pass immediately
func (s *Service) ProcessQueue(ctx context.Context) matching.Pass {
	return s.coord.ProcessQueue(ctx)
}

// Wait blocks until pending record writes are done
func (s *Service) Wait() {
	s.pending.Wait()
	s.tracker.Wait()
}

// routingNotifier receives coordinator outcomes and forwards them to agents and events
type routingNotifier struct {
	s *Service
}

func (n routingNotifier) ChatAssigned(a types.Assignment, entry types.QueueEntry) {
	n.s.notifyAssigned(a, entry)
}

func (n routingNotifier) ChatEscalated(e types.Escalation) {
	n.s.notifyEscalated(e)
}

func (s *Service) notifyAssigned(a types.Assignment, entry types.QueueEntry) {
	s.send(a.AgentID, types.ChatAssign{
		Type:       "chat_assign",
		AgentID:    a.AgentID,
		SessionID:  a.SessionID,
		QueueID:    a.QueueID,
		CustomerID: a.CustomerID,
		Priority:   a.Priority,
		WaitTime:   a.WaitTime,
		Customer:   entry.CustomerData,
		Timestamp:  a.AssignedAt,
	})
	s.events.ChatAssigned(a, entry)
}

func (s *Service) notifyEscalated(e types.Escalation) {
	s.metrics.RecordEscalation(e.Reason, e.Outcome)
	s.events.ChatEscalated(e)
}

// send marshals msg and delivers it to a connected agent, if any
func (s *Service) send(agentID string, msg interface{}) {
	if s.sender == nil {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to marshal agent message")
		return
	}
	if !s.sender.SendToAgent(agentID, data) {
		s.logger.Warn().
			Str("agent_id", agentID).
			Str("message", fmt.Sprintf("%T", msg)).
			Msg("agent not connected, message not delivered")
	}
}

type nopEvents struct{}

func (nopEvents) ChatAssigned(types.Assignment, types.QueueEntry) {}
func (nopEvents) ChatEscalated(types.Escalation)                  {}
func (nopEvents) ChatReleased(string, types.ChatSummary)          {}
