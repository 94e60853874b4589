package matching

import (
	"fmt"

	"github.com/kishorekota-dev/chatrouter/internal/types"
)

// RoutingStrategy selects the agent that should take a queue entry
type RoutingStrategy interface {
	SelectAgent(entry types.QueueEntry, candidates []types.Agent) *types.Agent
}

// StrategyByName returns the strategy configured by ROUTING_STRATEGY
func StrategyByName(name string) (RoutingStrategy, error) {
	switch name {
	case "", "least_loaded":
		return LeastLoaded{}, nil
	case "longest_idle":
		return LongestIdleFirst{}, nil
	default:
		return nil, fmt.Errorf("unknown routing strategy %q", name)
	}
}

// LeastLoaded selects the agent with the fewest current chats. Ties go to the
// agent idle the longest, then the lowest agent ID.
type LeastLoaded struct{}

// SelectAgent picks the least loaded candidate, avoiding the entry's previous agent
func (LeastLoaded) SelectAgent(entry types.QueueEntry, candidates []types.Agent) *types.Agent {
	return pick(entry, candidates, func(a, b *types.Agent) bool {
		if a.Load() != b.Load() {
			return a.Load() < b.Load()
		}
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.Before(b.LastActivity)
		}
		return a.AgentID < b.AgentID
	})
}

// LongestIdleFirst selects the agent whose last activity is oldest
type LongestIdleFirst struct{}

// SelectAgent picks the candidate with the oldest LastActivity
func (LongestIdleFirst) SelectAgent(entry types.QueueEntry, candidates []types.Agent) *types.Agent {
	return pick(entry, candidates, func(a, b *types.Agent) bool {
		if !a.LastActivity.Equal(b.LastActivity) {
			return a.LastActivity.Before(b.LastActivity)
		}
		return a.AgentID < b.AgentID
	})
}

// pick returns the best candidate under better. The previous agent of a
// transferred chat is only chosen when nobody else can take it.
func pick(entry types.QueueEntry, candidates []types.Agent, better func(a, b *types.Agent) bool) *types.Agent {
	var best, fallback *types.Agent
	for i := range candidates {
		c := &candidates[i]
		if entry.PreviousAgent != "" && c.AgentID == entry.PreviousAgent {
			fallback = c
			continue
		}
		if best == nil || better(c, best) {
			best = c
		}
	}
	if best == nil {
		return fallback
	}
	return best
}

// without returns candidates minus the agent with the given ID
func without(candidates []types.Agent, agentID string) []types.Agent {
	result := make([]types.Agent, 0, len(candidates))
	for _, a := range candidates {
		if a.AgentID != agentID {
			result = append(result, a)
		}
	}
	return result
}
