package types

import (
	"fmt"
	"strings"
)

// Priority is the urgency band of a queued chat
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// AllPriorities lists the bands from highest to lowest
var AllPriorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

var priorityRank = map[Priority]int{
	PriorityLow:    1,
	PriorityMedium: 2,
	PriorityHigh:   3,
	PriorityUrgent: 4,
}

var priorityAliases = map[string]Priority{
	"low":       PriorityLow,
	"medium":    PriorityMedium,
	"normal":    PriorityMedium,
	"high":      PriorityHigh,
	"urgent":    PriorityUrgent,
	"critical":  PriorityUrgent,
	"emergency": PriorityUrgent,
}

// Rank returns the numeric weight of the band (higher is more urgent, 0 if unknown)
func (p Priority) Rank() int {
	return priorityRank[p]
}

// Valid reports whether p is one of the four bands
func (p Priority) Valid() bool {
	return p.Rank() > 0
}

// Next returns the band one above p, capped at urgent
func (p Priority) Next() Priority {
	switch p {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityUrgent
	}
}

// PriorityPolicy decides what NormalizePriority does with input it does not recognise
type PriorityPolicy string

const (
	PriorityPolicyDefault PriorityPolicy = "default" // fall back to medium
	PriorityPolicyReject  PriorityPolicy = "reject"  // fail with ErrInvalidPriority
)

// NormalizePriority maps free-form input onto the four bands.
// Empty input is always medium; unknown input follows policy.
func NormalizePriority(raw string, policy PriorityPolicy) (Priority, error) {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return PriorityMedium, nil
	}
	if p, ok := priorityAliases[key]; ok {
		return p, nil
	}
	if policy == PriorityPolicyReject {
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, raw)
	}
	return PriorityMedium, nil
}
