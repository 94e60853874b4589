package types

import "time"

// EscalationReason is why an entry was escalated
type EscalationReason string

const (
	ReasonWaitTimeExceeded    EscalationReason = "wait_time_exceeded"
	ReasonMaxAttemptsExceeded EscalationReason = "max_attempts_exceeded"
	ReasonManual              EscalationReason = "manual"
	ReasonCustomerRequest     EscalationReason = "customer_request"
	ReasonAgentRequest        EscalationReason = "agent_request"
)

// Valid reports whether r is a known reason
func (r EscalationReason) Valid() bool {
	switch r {
	case ReasonWaitTimeExceeded, ReasonMaxAttemptsExceeded, ReasonManual, ReasonCustomerRequest, ReasonAgentRequest:
		return true
	}
	return false
}

// Manual reports whether r may be supplied by an external caller
func (r EscalationReason) Manual() bool {
	return r == ReasonManual || r == ReasonCustomerRequest || r == ReasonAgentRequest
}

// EscalationOutcome is where the state machine left the entry
type EscalationOutcome string

const (
	OutcomeRequeued    EscalationOutcome = "requeued"
	OutcomeAbandoned   EscalationOutcome = "abandoned"
	OutcomeForceAssign EscalationOutcome = "force_assign"
)

// ExhaustedPolicy decides what happens to an entry that has used up its escalations
type ExhaustedPolicy string

const (
	ExhaustedAbandon     ExhaustedPolicy = "abandon"
	ExhaustedForceAssign ExhaustedPolicy = "force_assign"
)

// Escalation is an immutable audit record of one escalation
type Escalation struct {
	EscalationID      string            `json:"escalationId"`
	QueueID           string            `json:"queueId"`
	SessionID         string            `json:"sessionId"`
	CustomerID        string            `json:"customerId"`
	OriginalPriority  Priority          `json:"originalPriority"`
	EscalatedPriority Priority          `json:"escalatedPriority"`
	Reason            EscalationReason  `json:"escalationReason"`
	Outcome           EscalationOutcome `json:"outcome"`
	EscalatedAt       time.Time         `json:"escalatedAt"`
	TotalWaitTime     float64           `json:"totalWaitTime"` // seconds since queuedAt
	Attempts          int               `json:"attempts"`      // snapshot before reset
	Sequence          int               `json:"sequence"`      // 1 for the first escalation of this entry
}
