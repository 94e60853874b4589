package types

import "time"

// EntryState is the escalation lifecycle state of a queue entry
type EntryState string

const (
	EntryStateQueued     EntryState = "queued"     // Waiting for a first match
	EntryStateEscalating EntryState = "escalating" // Escalation in progress
	EntryStateRequeued   EntryState = "requeued"   // Back in the queue with elevated priority
	EntryStateAbandoned  EntryState = "abandoned"  // Terminal, escalation could not place it
)

// Requirements narrows which agents may take a chat. Zero values mean "no constraint".
type Requirements struct {
	Department    string   `json:"department,omitempty"`
	Capabilities  []string `json:"capabilities,omitempty"`
	MinSkillLevel int      `json:"minSkillLevel,omitempty" validate:"gte=0,lte=10"`
	Language      string   `json:"language,omitempty"`
}

// ChatSession is what the chat layer hands in when a customer asks for a human
type ChatSession struct {
	SessionID     string                 `json:"sessionId" validate:"required"`
	CustomerID    string                 `json:"customerId" validate:"required"`
	CustomerName  string                 `json:"customerName,omitempty"`
	CustomerData  map[string]interface{} `json:"customerData,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	PreviousAgent string                 `json:"previousAgent,omitempty"`
}

// QueueEntry is a chat session waiting for an agent
type QueueEntry struct {
	QueueID           string                 `json:"queueId"`
	SessionID         string                 `json:"sessionId"`
	CustomerID        string                 `json:"customerId"`
	CustomerName      string                 `json:"customerName,omitempty"`
	Priority          Priority               `json:"priority"`
	Requirements      Requirements           `json:"requirements"`
	QueuedAt          time.Time              `json:"queuedAt"`
	EstimatedWaitTime float64                `json:"estimatedWaitTime"` // seconds
	Attempts          int                    `json:"attempts"`
	MaxAttempts       int                    `json:"maxAttempts"`
	State             EntryState             `json:"state"`
	EscalationReason  EscalationReason       `json:"escalationReason,omitempty"`
	EscalationCount   int                    `json:"escalationCount"`
	LastEscalatedAt   *time.Time             `json:"lastEscalatedAt,omitempty"`
	ForceAssign       bool                   `json:"forceAssign,omitempty"`
	PreviousAgent     string                 `json:"previousAgent,omitempty"`
	CustomerData      map[string]interface{} `json:"customerData,omitempty"`
	Metadata          map[string]interface{} `json:"metadata,omitempty"`
}

// WaitTime returns how long the customer has been waiting at now
func (e QueueEntry) WaitTime(now time.Time) time.Duration {
	return now.Sub(e.QueuedAt)
}

// SLAReference is the instant the current SLA band started counting from
func (e QueueEntry) SLAReference() time.Time {
	if e.LastEscalatedAt != nil && e.LastEscalatedAt.After(e.QueuedAt) {
		return *e.LastEscalatedAt
	}
	return e.QueuedAt
}

// PriorityBreakdown summarises one priority band of the queue
type PriorityBreakdown struct {
	Count           int     `json:"count"`
	AverageWaitTime float64 `json:"averageWaitTime"` // seconds
	LongestWaitTime float64 `json:"longestWaitTime"` // seconds
}

// AlertSeverity is the severity of a queue alert
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// QueueAlert flags an entry approaching or past its SLA threshold
type QueueAlert struct {
	Rule      string        `json:"rule"`
	Severity  AlertSeverity `json:"severity"`
	QueueID   string        `json:"queueId"`
	SessionID string        `json:"sessionId"`
	Priority  Priority      `json:"priority"`
	Message   string        `json:"message"`
}

// QueueStatus is the dashboard read model of the queue
type QueueStatus struct {
	TotalInQueue     int                            `json:"totalInQueue"`
	AverageWaitTime  float64                        `json:"averageWaitTime"` // seconds
	LongestWaitTime  float64                        `json:"longestWaitTime"` // seconds
	EscalationCount  int                            `json:"escalationCount"` // escalated entries still queued
	StatusByPriority map[Priority]PriorityBreakdown `json:"statusByPriority"`
	Alerts           []QueueAlert                   `json:"alerts,omitempty"`
	Timestamp        time.Time                      `json:"timestamp"`
}

// QueueMetrics are the cumulative counters of the queue
type QueueMetrics struct {
	TotalQueued     int64   `json:"totalQueued"`
	TotalProcessed  int64   `json:"totalProcessed"`
	TotalEscalated  int64   `json:"totalEscalated"`
	TotalRemoved    int64   `json:"totalRemoved"`
	TotalAbandoned  int64   `json:"totalAbandoned"`
	AverageWaitTime float64 `json:"averageWaitTime"` // seconds, over processed entries
}
