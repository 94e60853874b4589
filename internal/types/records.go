package types

// ChatRecord represents a finished agent chat for persistence
type ChatRecord struct {
	DateKey      string  `json:"dateKey" dynamodbav:"DateKey" bson:"date_key"`          // YYYY-MM-DD (partition key)
	SessionID    string  `json:"sessionId" dynamodbav:"SessionID" bson:"session_id"`    // sort key
	QueueID      string  `json:"queueId" dynamodbav:"QueueID" bson:"queue_id"`
	AgentID      string  `json:"agentId" dynamodbav:"AgentID" bson:"agent_id"`
	CustomerID   string  `json:"customerId" dynamodbav:"CustomerID" bson:"customer_id"`
	Department   string  `json:"department" dynamodbav:"Department" bson:"department"`
	Priority     string  `json:"priority" dynamodbav:"Priority" bson:"priority"`
	QueuedAt     string  `json:"queuedAt" dynamodbav:"QueuedAt" bson:"queued_at"`       // RFC3339
	AssignedAt   string  `json:"assignedAt" dynamodbav:"AssignedAt" bson:"assigned_at"` // RFC3339
	ReleasedAt   string  `json:"releasedAt" dynamodbav:"ReleasedAt" bson:"released_at"` // RFC3339
	WaitTime     float64 `json:"waitTime" dynamodbav:"WaitTime" bson:"wait_time"`       // seconds
	HandleTime   float64 `json:"handleTime" dynamodbav:"HandleTime" bson:"handle_time"` // seconds
	Resolution   string  `json:"resolution" dynamodbav:"Resolution" bson:"resolution"`
	Rating       float64 `json:"rating" dynamodbav:"Rating" bson:"rating"`
	Escalations  int     `json:"escalations" dynamodbav:"Escalations" bson:"escalations"`
	AnsweredInSL bool    `json:"answeredInSL" dynamodbav:"AnsweredInSL" bson:"answered_in_sl"`
}

// EscalationRecord represents an escalation audit entry for persistence
type EscalationRecord struct {
	QueueID           string  `json:"queueId" dynamodbav:"QueueID" bson:"queue_id"`                // partition key
	EscalationID      string  `json:"escalationId" dynamodbav:"EscalationID" bson:"escalation_id"` // sort key
	SessionID         string  `json:"sessionId" dynamodbav:"SessionID" bson:"session_id"`
	CustomerID        string  `json:"customerId" dynamodbav:"CustomerID" bson:"customer_id"`
	OriginalPriority  string  `json:"originalPriority" dynamodbav:"OriginalPriority" bson:"original_priority"`
	EscalatedPriority string  `json:"escalatedPriority" dynamodbav:"EscalatedPriority" bson:"escalated_priority"`
	Reason            string  `json:"reason" dynamodbav:"Reason" bson:"reason"`
	Outcome           string  `json:"outcome" dynamodbav:"Outcome" bson:"outcome"`
	EscalatedAt       string  `json:"escalatedAt" dynamodbav:"EscalatedAt" bson:"escalated_at"` // RFC3339
	TotalWaitTime     float64 `json:"totalWaitTime" dynamodbav:"TotalWaitTime" bson:"total_wait_time"`
	Attempts          int     `json:"attempts" dynamodbav:"Attempts" bson:"attempts"`
	Sequence          int     `json:"sequence" dynamodbav:"Sequence" bson:"sequence"`
}
