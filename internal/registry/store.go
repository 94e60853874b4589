package registry

import "github.com/kishorekota-dev/chatrouter/internal/types"

// Store holds registered agents. Registry serializes every call and only
// hands out clones, so implementations need no locking of their own.
// Get and All may return detached copies: Registry calls Put after every
// change it makes to an agent.
type Store interface {
	Put(agent *types.Agent)
	Get(agentID string) (*types.Agent, bool)
	All() []*types.Agent
	Len() int
}

// MemoryStore keeps agents in a map keyed by agent ID
type MemoryStore struct {
	agents map[string]*types.Agent
}

// NewMemoryStore creates an empty in-memory agent store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{agents: make(map[string]*types.Agent)}
}

func (s *MemoryStore) Put(agent *types.Agent) {
	s.agents[agent.AgentID] = agent
}

func (s *MemoryStore) Get(agentID string) (*types.Agent, bool) {
	a, ok := s.agents[agentID]
	return a, ok
}

func (s *MemoryStore) All() []*types.Agent {
	result := make([]*types.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		result = append(result, a)
	}
	return result
}

func (s *MemoryStore) Len() int {
	return len(s.agents)
}
