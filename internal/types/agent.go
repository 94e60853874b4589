package types

import "time"

// AgentStatus represents the current availability of an agent
type AgentStatus string

const (
	StatusAvailable AgentStatus = "available"
	StatusBusy      AgentStatus = "busy"
	StatusAway      AgentStatus = "away"
	StatusOffline   AgentStatus = "offline"
)

// Valid reports whether s is a known status
func (s AgentStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusBusy, StatusAway, StatusOffline:
		return true
	}
	return false
}

// ResolutionStatus describes how a chat ended for an agent
type ResolutionStatus string

const (
	ResolutionResolved    ResolutionStatus = "resolved"
	ResolutionUnresolved  ResolutionStatus = "unresolved"
	ResolutionTransferred ResolutionStatus = "transferred"
	ResolutionAbandoned   ResolutionStatus = "abandoned"
)

// Resolution is supplied when a chat is removed from an agent
type Resolution struct {
	Status         ResolutionStatus `json:"status"`
	CustomerRating float64          `json:"customerRating,omitempty"` // 1-5, 0 means not rated
	Notes          string           `json:"notes,omitempty"`
}

// AgentPreferences holds per-agent routing preferences
type AgentPreferences struct {
	MaxConcurrentChats int  `json:"maxConcurrentChats" validate:"gte=0,lte=50"`
	AutoAccept         bool `json:"autoAccept"`
}

// AgentPerformance is updated on every chat completion
type AgentPerformance struct {
	TotalChats     int     `json:"totalChats"`
	ResolvedChats  int     `json:"resolvedChats"`
	CustomerRating float64 `json:"customerRating"` // running mean of rated chats
	RatedChats     int     `json:"ratedChats"`
}

// ActiveChat is a session currently held by an agent
type ActiveChat struct {
	SessionID  string      `json:"sessionId"`
	QueueID    string      `json:"queueId,omitempty"`
	CustomerID string      `json:"customerId,omitempty"`
	AssignedAt time.Time   `json:"assignedAt"`
	Entry      *QueueEntry `json:"entry,omitempty"` // snapshot of the queue entry it came from
}

// ChatSummary is one line of an agent's bounded chat history
type ChatSummary struct {
	SessionID  string           `json:"sessionId"`
	QueueID    string           `json:"queueId,omitempty"`
	CustomerID string           `json:"customerId,omitempty"`
	AssignedAt time.Time        `json:"assignedAt"`
	ReleasedAt time.Time        `json:"releasedAt"`
	Duration   float64          `json:"duration"` // seconds
	Resolution ResolutionStatus `json:"resolution"`
	Rating     float64          `json:"rating,omitempty"`
}

// AgentRegistration is the input for registering an agent
type AgentRegistration struct {
	AgentID      string           `json:"agentId,omitempty"`
	Name         string           `json:"name" validate:"required"`
	Email        string           `json:"email" validate:"required,email"`
	Department   string           `json:"department" validate:"required"`
	Role         string           `json:"role,omitempty"`
	SkillLevel   int              `json:"skillLevel" validate:"gte=0,lte=10"`
	Capabilities []string         `json:"capabilities,omitempty"`
	Languages    []string         `json:"languages,omitempty"`
	Preferences  AgentPreferences `json:"preferences"`
}

// Agent is a human operator who takes chats
type Agent struct {
	AgentID      string                `json:"agentId"`
	Name         string                `json:"name"`
	Email        string                `json:"email"`
	Department   string                `json:"department"`
	Role         string                `json:"role,omitempty"`
	SkillLevel   int                   `json:"skillLevel"`
	Capabilities []string              `json:"capabilities"`
	Languages    []string              `json:"languages"`
	Status       AgentStatus           `json:"status"`
	IsOnline     bool                  `json:"isOnline"`
	Active       bool                  `json:"active"` // false once logically deactivated
	CurrentChats map[string]ActiveChat `json:"currentChats"`
	Preferences  AgentPreferences      `json:"preferences"`
	Performance  AgentPerformance      `json:"performance"`
	ChatHistory  []ChatSummary         `json:"chatHistory"`
	StatusReason string                `json:"statusReason,omitempty"`
	StatusSince  time.Time             `json:"statusSince"`
	LastActivity time.Time             `json:"lastActivity"`
	RegisteredAt time.Time             `json:"registeredAt"`
}

// Load returns the number of chats the agent currently holds
func (a *Agent) Load() int {
	return len(a.CurrentChats)
}

// HasCapacity reports whether the agent can take one more chat
func (a *Agent) HasCapacity() bool {
	return len(a.CurrentChats) < a.Preferences.MaxConcurrentChats
}

// Eligible reports whether the agent may receive a new assignment right now
func (a *Agent) Eligible() bool {
	return a.Active && a.Status == StatusAvailable && a.HasCapacity()
}

// Clone returns a deep copy safe to hand outside the registry lock
func (a *Agent) Clone() Agent {
	c := *a
	c.Capabilities = append([]string(nil), a.Capabilities...)
	c.Languages = append([]string(nil), a.Languages...)
	c.ChatHistory = append([]ChatSummary(nil), a.ChatHistory...)
	c.CurrentChats = make(map[string]ActiveChat, len(a.CurrentChats))
	for k, v := range a.CurrentChats {
		c.CurrentChats[k] = v
	}
	return c
}

// StatusChange is the result of an agent status update
type StatusChange struct {
	Agent          Agent       `json:"agent"`
	PreviousStatus AgentStatus `json:"previousStatus"`
	// Flagged is set when the agent went offline while still holding chats
	Flagged bool `json:"flagged"`
}

// Assignment pairs a chat session with the agent that took it
type Assignment struct {
	AgentID    string    `json:"agentId"`
	SessionID  string    `json:"sessionId"`
	QueueID    string    `json:"queueId,omitempty"`
	CustomerID string    `json:"customerId,omitempty"`
	Priority   Priority  `json:"priority,omitempty"`
	AssignedAt time.Time `json:"assignedAt"`
	WaitTime   float64   `json:"waitTime"` // seconds in queue
	Forced     bool      `json:"forced,omitempty"`
}
