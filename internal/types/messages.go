package types

import "time"

// AgentRegister is sent when an agent console first connects
type AgentRegister struct {
	Type    string      `json:"type"` // "register"
	AgentID string      `json:"agentId"`
	Status  AgentStatus `json:"status,omitempty"`
}

// AgentHeartbeat is sent from the agent console periodically
type AgentHeartbeat struct {
	Type      string    `json:"type"` // "heartbeat"
	AgentID   string    `json:"agentId"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentStatusChange is sent from the agent console on status transitions
type AgentStatusChange struct {
	Type      string      `json:"type"` // "status_change"
	AgentID   string      `json:"agentId"`
	Status    AgentStatus `json:"status"`
	Reason    string      `json:"reason,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChatComplete is sent from the agent console when a chat is finished
type ChatComplete struct {
	Type       string     `json:"type"` // "chat_complete"
	AgentID    string     `json:"agentId"`
	SessionID  string     `json:"sessionId"`
	Resolution Resolution `json:"resolution"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ServerAck is sent from backend to agent as acknowledgment
type ServerAck struct {
	Type    string `json:"type"` // "ack"
	AgentID string `json:"agentId"`
	Error   string `json:"error,omitempty"`
}

// ChatAssign is sent from backend to agent when a chat is routed
type ChatAssign struct {
	Type       string                 `json:"type"` // "chat_assign"
	AgentID    string                 `json:"agentId"`
	SessionID  string                 `json:"sessionId"`
	QueueID    string                 `json:"queueId"`
	CustomerID string                 `json:"customerId"`
	Priority   Priority               `json:"priority"`
	WaitTime   float64                `json:"waitTime"`
	Customer   map[string]interface{} `json:"customer,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// ChatRevoke is sent from backend to agent when a held chat is taken away
type ChatRevoke struct {
	Type      string `json:"type"` // "chat_revoke"
	AgentID   string `json:"agentId"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

// ForceDisconnect tells an agent console its connection is being closed by a supervisor
type ForceDisconnect struct {
	Type    string `json:"type"` // "force_disconnect"
	AgentID string `json:"agentId"`
}

// DashboardSnapshot is the single payload sent to dashboards every tick
type DashboardSnapshot struct {
	Type          string              `json:"type"` // always "queue_snapshot"
	Timestamp     time.Time           `json:"timestamp"`
	Status        QueueStatus         `json:"status"`
	Metrics       QueueMetrics        `json:"metrics"`
	Queue         []QueueEntry        `json:"queue"`
	AgentsByState map[AgentStatus]int `json:"agentsByState"`
	Agents        []AgentSummary      `json:"agents"`
}

// AgentSummary is the dashboard view of an agent
type AgentSummary struct {
	AgentID      string      `json:"agentId"`
	Name         string      `json:"name"`
	Department   string      `json:"department"`
	Status       AgentStatus `json:"status"`
	IsOnline     bool        `json:"isOnline"`
	Load         int         `json:"load"`
	MaxChats     int         `json:"maxChats"`
	LastActivity time.Time   `json:"lastActivity"`
}
