package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/rs/zerolog"
)

// Handlers groups every REST handler of the service
type Handlers struct {
	Queue   *QueueHandler
	Agents  *AgentsHandler
	Actions *AgentActionsHandler
	History *AgentHistoryHandler
	Roster  *RosterHandler
	Admin   *AdminHandler
}

// NewHandlers builds all handlers around one service
func NewHandlers(svc *service.Service, consoles Disconnector, logger zerolog.Logger) *Handlers {
	return &Handlers{
		Queue:   NewQueueHandler(svc, logger),
		Agents:  NewAgentsHandler(svc, logger),
		Actions: NewAgentActionsHandler(svc, consoles, logger),
		History: NewAgentHistoryHandler(svc, logger),
		Roster:  NewRosterHandler(svc, logger),
		Admin:   NewAdminHandler(svc, logger),
	}
}

// Mount registers the /api and /internal routes on r
func (h *Handlers) Mount(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Route("/queue", func(r chi.Router) {
			r.Post("/", h.Queue.Enqueue)
			r.Get("/", h.Queue.List)
			r.Get("/status", h.Queue.Status)
			r.Get("/metrics", h.Queue.Metrics)
			r.Route("/{queueId}", func(r chi.Router) {
				r.Get("/", h.Queue.Get)
				r.Delete("/", h.Queue.Remove)
				r.Get("/position", h.Queue.Position)
				r.Post("/escalate", h.Queue.Escalate)
				r.Get("/escalations", h.Queue.EscalationRecords)
			})
		})
		r.Get("/escalations", h.Queue.Escalations)

		r.Route("/agents", func(r chi.Router) {
			r.Post("/", h.Agents.Register)
			r.Get("/", h.Agents.List)
			r.Route("/{agentId}", func(r chi.Router) {
				r.Get("/", h.Agents.Get)
				r.Delete("/", h.Agents.Deactivate)
				r.Put("/status", h.Agents.UpdateStatus)
				r.Post("/activity", h.Agents.Activity)
				r.Post("/logout", h.Actions.Logout)
				r.Get("/history", h.History.GetHistory)
				r.Post("/chats", h.Agents.Assign)
				r.Delete("/chats/{sessionId}", h.Agents.Release)
				r.Post("/chats/{sessionId}/transfer", h.Actions.Transfer)
			})
		})
	})

	r.Route("/internal", func(r chi.Router) {
		r.Post("/agents/roster", h.Roster.HandleRoster)
		r.Post("/chats/inject", h.Admin.InjectChats)
		r.Delete("/queue", h.Admin.WipeQueue)
		r.Delete("/storage", h.Admin.WipeStorage)
		r.Post("/match", h.Admin.TriggerMatch)
		r.Post("/sla/sweep", h.Admin.SweepSLA)
	})
}
