package matching

import "github.com/kishorekota-dev/chatrouter/internal/types"

// Notifier is told about assignments and escalations made by the coordinator.
// Calls happen outside every store lock.
type Notifier interface {
	ChatAssigned(assignment types.Assignment, entry types.QueueEntry)
	ChatEscalated(escalation types.Escalation)
}

// Notifiers fans out to several notifiers in order
type Notifiers []Notifier

func (n Notifiers) ChatAssigned(assignment types.Assignment, entry types.QueueEntry) {
	for _, notifier := range n {
		notifier.ChatAssigned(assignment, entry)
	}
}

func (n Notifiers) ChatEscalated(escalation types.Escalation) {
	for _, notifier := range n {
		notifier.ChatEscalated(escalation)
	}
}
