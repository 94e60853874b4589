package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

// IdleReason is the status reason set by SweepIdle
const IdleReason = "idle timeout"

// Options tune registry behaviour. Zero values fall back to defaults.
type Options struct {
	DefaultMaxChats int
	HistoryLimit    int
	Now             func() time.Time
}

// Registry maintains every known agent with its live status and load
type Registry struct {
	store    Store
	opts     Options
	validate *validator.Validate
	now      func() time.Time
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// New creates a registry on top of store
func New(store Store, opts Options, logger zerolog.Logger) *Registry {
	if opts.DefaultMaxChats <= 0 {
		opts.DefaultMaxChats = 3
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Registry{
		store:    store,
		opts:     opts,
		validate: validator.New(),
		now:      now,
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// Register adds an agent, or re-activates and updates a known one without dropping its chats
func (r *Registry) Register(reg types.AgentRegistration) (types.Agent, error) {
	if err := r.validate.Struct(reg); err != nil {
		return types.Agent{}, fmt.Errorf("%w: %v", types.ErrValidation, err)
	}
	if reg.AgentID == "" {
		reg.AgentID = uuid.New().String()
	}
	maxChats := reg.Preferences.MaxConcurrentChats
	if maxChats == 0 {
		maxChats = r.opts.DefaultMaxChats
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	agent, exists := r.store.Get(reg.AgentID)
	if !exists {
		agent = &types.Agent{
			AgentID:      reg.AgentID,
			CurrentChats: make(map[string]types.ActiveChat),
			RegisteredAt: now,
		}
	} else if maxChats < agent.Load() {
		// Shrinking below the current load would break the capacity invariant
		maxChats = agent.Load()
	}

	agent.Name = reg.Name
	agent.Email = reg.Email
	agent.Department = reg.Department
	agent.Role = reg.Role
	agent.SkillLevel = reg.SkillLevel
	agent.Capabilities = append([]string(nil), reg.Capabilities...)
	agent.Languages = append([]string(nil), reg.Languages...)
	agent.Preferences = reg.Preferences
	agent.Preferences.MaxConcurrentChats = maxChats
	agent.Active = true
	agent.IsOnline = true
	if agent.Status != types.StatusAvailable {
		agent.StatusSince = now
	}
	agent.Status = types.StatusAvailable
	agent.StatusReason = ""
	agent.LastActivity = now

	r.store.Put(agent)

	r.logger.Info().
		Str("agent_id", agent.AgentID).
		Str("department", agent.Department).
		Int("max_chats", maxChats).
		Bool("reregistered", exists).
		Msg("agent registered")

	return agent.Clone(), nil
}

// UpdateStatus changes an agent's status. Going offline while holding chats
// is allowed and flagged; the chats stay assigned.
func (r *Registry) UpdateStatus(agentID string, status types.AgentStatus, reason string) (types.StatusChange, error) {
	if !status.Valid() {
		return types.StatusChange{}, fmt.Errorf("%w: unknown agent status %q", types.ErrValidation, status)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.store.Get(agentID)
	if !ok {
		return types.StatusChange{}, fmt.Errorf("agent %s: %w", agentID, types.ErrNotFound)
	}

	now := r.now()
	prev := agent.Status
	if prev != status {
		agent.StatusSince = now
	}
	agent.Status = status
	agent.StatusReason = reason
	agent.IsOnline = status != types.StatusOffline
	agent.LastActivity = now
	r.store.Put(agent)

	change := types.StatusChange{
		PreviousStatus: prev,
		Flagged:        status == types.StatusOffline && agent.Load() > 0,
	}
	change.Agent = agent.Clone()

	if change.Flagged {
		r.logger.Warn().
			Str("agent_id", agentID).
			Int("active_chats", agent.Load()).
			Msg("agent went offline while holding chats")
	} else {
		r.logger.Debug().
			Str("agent_id", agentID).
			Str("from", string(prev)).
			Str("to", string(status)).
			Msg("agent status changed")
	}

	return change, nil
}

// FindEligible returns agents that can take a chat with the given requirements,
// least loaded first, then longest idle
func (r *Registry) FindEligible(req types.Requirements) []types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]types.Agent, 0)
	for _, a := range r.store.All() {
		if a.Eligible() && matches(a, req) {
			result = append(result, a.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Load() != result[j].Load() {
			return result[i].Load() < result[j].Load()
		}
		if !result[i].LastActivity.Equal(result[j].LastActivity) {
			return result[i].LastActivity.Before(result[j].LastActivity)
		}
		return result[i].AgentID < result[j].AgentID
	})
	return result
}

// Assign gives a bare chat session to an agent
func (r *Registry) Assign(agentID, sessionID string) (types.Assignment, error) {
	return r.assign(agentID, types.ActiveChat{SessionID: sessionID}, types.Assignment{SessionID: sessionID})
}

// AssignEntry gives a queued chat to an agent, keeping a snapshot of the entry
func (r *Registry) AssignEntry(agentID string, entry types.QueueEntry) (types.Assignment, error) {
	snapshot := entry
	chat := types.ActiveChat{
		SessionID:  entry.SessionID,
		QueueID:    entry.QueueID,
		CustomerID: entry.CustomerID,
		Entry:      &snapshot,
	}
	a := types.Assignment{
		SessionID:  entry.SessionID,
		QueueID:    entry.QueueID,
		CustomerID: entry.CustomerID,
		Priority:   entry.Priority,
		Forced:     entry.ForceAssign,
	}
	return r.assign(agentID, chat, a)
}

func (r *Registry) assign(agentID string, chat types.ActiveChat, a types.Assignment) (types.Assignment, error) {
	if chat.SessionID == "" {
		return types.Assignment{}, fmt.Errorf("%w: session id is required", types.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.store.Get(agentID)
	if !ok {
		return types.Assignment{}, fmt.Errorf("agent %s: %w", agentID, types.ErrNotFound)
	}
	if !agent.Active || agent.Status != types.StatusAvailable {
		return types.Assignment{}, fmt.Errorf("agent %s is %s: %w", agentID, agent.Status, types.ErrAgentUnavailable)
	}
	if holder, held := r.holderLocked(chat.SessionID); held {
		return types.Assignment{}, fmt.Errorf("%w: agent %s already holds session %s", types.ErrDuplicateSession, holder, chat.SessionID)
	}
	if !agent.HasCapacity() {
		return types.Assignment{}, fmt.Errorf("agent %s at %d/%d chats: %w",
			agentID, agent.Load(), agent.Preferences.MaxConcurrentChats, types.ErrCapacityExceeded)
	}

	now := r.now()
	chat.AssignedAt = now
	agent.CurrentChats[chat.SessionID] = chat
	if agent.Load() > agent.Preferences.MaxConcurrentChats {
		panic(fmt.Sprintf("registry: agent %s holds %d chats with capacity %d",
			agentID, agent.Load(), agent.Preferences.MaxConcurrentChats))
	}
	r.store.Put(agent)

	a.AgentID = agentID
	a.AssignedAt = now
	if chat.Entry != nil {
		a.WaitTime = now.Sub(chat.Entry.QueuedAt).Seconds()
	}

	r.logger.Debug().
		Str("agent_id", agentID).
		Str("session_id", chat.SessionID).
		Int("load", agent.Load()).
		Msg("chat assigned to agent")

	return a, nil
}

// Release removes a chat from an agent and folds its outcome into the agent's performance
func (r *Registry) Release(agentID, sessionID string, res types.Resolution) (types.Agent, error) {
	if res.CustomerRating < 0 || res.CustomerRating > 5 {
		return types.Agent{}, fmt.Errorf("%w: customer rating %v outside 1-5", types.ErrValidation, res.CustomerRating)
	}
	if res.Status == "" {
		res.Status = types.ResolutionResolved
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.store.Get(agentID)
	if !ok {
		return types.Agent{}, fmt.Errorf("agent %s: %w", agentID, types.ErrNotFound)
	}
	chat, held := agent.CurrentChats[sessionID]
	if !held {
		return types.Agent{}, fmt.Errorf("agent %s does not hold session %s: %w", agentID, sessionID, types.ErrNotFound)
	}

	now := r.now()
	delete(agent.CurrentChats, sessionID)

	agent.ChatHistory = append(agent.ChatHistory, types.ChatSummary{
		SessionID:  sessionID,
		QueueID:    chat.QueueID,
		CustomerID: chat.CustomerID,
		AssignedAt: chat.AssignedAt,
		ReleasedAt: now,
		Duration:   now.Sub(chat.AssignedAt).Seconds(),
		Resolution: res.Status,
		Rating:     res.CustomerRating,
	})
	if over := len(agent.ChatHistory) - r.opts.HistoryLimit; over > 0 {
		agent.ChatHistory = append([]types.ChatSummary(nil), agent.ChatHistory[over:]...)
	}

	perf := &agent.Performance
	perf.TotalChats++
	if res.Status == types.ResolutionResolved {
		perf.ResolvedChats++
	}
	if res.CustomerRating > 0 {
		perf.CustomerRating = (perf.CustomerRating*float64(perf.RatedChats) + res.CustomerRating) / float64(perf.RatedChats+1)
		perf.RatedChats++
	}
	agent.LastActivity = now
	r.store.Put(agent)

	r.logger.Debug().
		Str("agent_id", agentID).
		Str("session_id", sessionID).
		Str("resolution", string(res.Status)).
		Int("load", agent.Load()).
		Msg("chat released")

	return agent.Clone(), nil
}

// Chat returns the active chat an agent holds for a session
func (r *Registry) Chat(agentID, sessionID string) (types.ActiveChat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.store.Get(agentID)
	if !ok {
		return types.ActiveChat{}, fmt.Errorf("agent %s: %w", agentID, types.ErrNotFound)
	}
	chat, held := agent.CurrentChats[sessionID]
	if !held {
		return types.ActiveChat{}, fmt.Errorf("agent %s does not hold session %s: %w", agentID, sessionID, types.ErrNotFound)
	}
	return chat, nil
}

// Holder returns the agent currently holding a session
func (r *Registry) Holder(sessionID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holderLocked(sessionID)
}

func (r *Registry) holderLocked(sessionID string) (string, bool) {
	for _, a := range r.store.All() {
		if _, held := a.CurrentChats[sessionID]; held {
			return a.AgentID, true
		}
	}
	return "", false
}

// UpdateActivity records a heartbeat. An agent parked by SweepIdle becomes available again.
func (r *Registry) UpdateActivity(agentID string) (types.Agent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.store.Get(agentID)
	if !ok {
		return types.Agent{}, false, fmt.Errorf("agent %s: %w", agentID, types.ErrNotFound)
	}

	now := r.now()
	agent.LastActivity = now
	resumed := false
	if agent.Status == types.StatusAway && agent.StatusReason == IdleReason {
		agent.Status = types.StatusAvailable
		agent.StatusReason = ""
		agent.StatusSince = now
		resumed = true
	}
	if agent.Status != types.StatusOffline {
		agent.IsOnline = true
	}
	r.store.Put(agent)

	return agent.Clone(), resumed, nil
}

// Deactivate logically removes an agent. Agents are never deleted, and held chats stay assigned.
func (r *Registry) Deactivate(agentID string) (types.Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	agent, ok := r.store.Get(agentID)
	if !ok {
		return types.Agent{}, fmt.Errorf("agent %s: %w", agentID, types.ErrNotFound)
	}
	agent.Active = false
	agent.IsOnline = false
	if agent.Status != types.StatusOffline {
		agent.StatusSince = r.now()
	}
	agent.Status = types.StatusOffline
	agent.StatusReason = "deactivated"
	r.store.Put(agent)

	r.logger.Info().Str("agent_id", agentID).Int("active_chats", agent.Load()).Msg("agent deactivated")
	return agent.Clone(), nil
}

// SweepIdle parks available agents whose last activity is older than timeout.
// Returns the IDs of the agents it moved to away.
func (r *Registry) SweepIdle(timeout time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	threshold := now.Add(-timeout)
	var swept []string
	for _, agent := range r.store.All() {
		if agent.Status == types.StatusAvailable && agent.LastActivity.Before(threshold) {
			agent.Status = types.StatusAway
			agent.StatusReason = IdleReason
			agent.StatusSince = now
			agent.IsOnline = false
			r.store.Put(agent)
			swept = append(swept, agent.AgentID)
		}
	}
	sort.Strings(swept)

	if len(swept) > 0 {
		r.logger.Info().Strs("agent_ids", swept).Dur("timeout", timeout).Msg("idle agents marked away")
	}
	return swept
}

// Get returns a single agent
func (r *Registry) Get(agentID string) (types.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	agent, ok := r.store.Get(agentID)
	if !ok {
		return types.Agent{}, fmt.Errorf("agent %s: %w", agentID, types.ErrNotFound)
	}
	return agent.Clone(), nil
}

// List returns all agents ordered by ID
func (r *Registry) List() []types.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]types.Agent, 0, r.store.Len())
	for _, a := range r.store.All() {
		result = append(result, a.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AgentID < result[j].AgentID })
	return result
}

// Count returns the total number of registered agents
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.store.Len()
}

// CountByStatus returns how many active agents are in each status
func (r *Registry) CountByStatus() map[types.AgentStatus]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := map[types.AgentStatus]int{
		types.StatusAvailable: 0,
		types.StatusBusy:      0,
		types.StatusAway:      0,
		types.StatusOffline:   0,
	}
	for _, a := range r.store.All() {
		if a.Active {
			counts[a.Status]++
		}
	}
	return counts
}

// matches reports whether an agent satisfies every requirement that is set
func matches(a *types.Agent, req types.Requirements) bool {
	if req.Department != "" && a.Department != req.Department {
		return false
	}
	if a.SkillLevel < req.MinSkillLevel {
		return false
	}
	if req.Language != "" && !contains(a.Languages, req.Language) {
		return false
	}
	for _, c := range req.Capabilities {
		if !contains(a.Capabilities, c) {
			return false
		}
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
