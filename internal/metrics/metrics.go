package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/types"
)

// Metrics holds all application metrics
type Metrics struct {
	mu sync.RWMutex

	// Routing metrics
	ChatsEnqueuedTotal  int64
	ChatsAssignedTotal  int64
	ChatsForcedTotal    int64
	ChatsReleasedTotal  int64
	ChatsAbandonedTotal int64
	MatchAttemptsFailed int64
	MatchConflictsTotal int64
	MatchPassesTotal    int64
	lastPassDuration    time.Duration
	escalationsByReason map[types.EscalationReason]int64

	// WebSocket metrics
	WebSocketConnectionsTotal    int64
	WebSocketDisconnectionsTotal int64
	WebSocketMessagesTotal       int64
	WebSocketErrorsTotal         int64
	activeConnections            int64

	// Aggregation metrics
	AggregationCyclesTotal  int64
	SnapshotsBroadcastTotal int64
	lastAggregationDuration time.Duration

	// Gauges refreshed by the scheduler
	queueDepth    map[types.Priority]int
	agentsByState map[types.AgentStatus]int
	totalAgents   int

	// HTTP metrics
	httpRequestsTotal map[string]map[int]int64 // endpoint -> status -> count

	startTime time.Time
}

// New creates an empty metrics registry
func New() *Metrics {
	return &Metrics{
		escalationsByReason: make(map[types.EscalationReason]int64),
		queueDepth:          make(map[types.Priority]int),
		agentsByState:       make(map[types.AgentStatus]int),
		httpRequestsTotal:   make(map[string]map[int]int64),
		startTime:           time.Now(),
	}
}

// RecordEnqueued increments the enqueued chats counter
func (m *Metrics) RecordEnqueued() {
	m.mu.Lock()
	m.ChatsEnqueuedTotal++
	m.mu.Unlock()
}

// RecordAssigned counts a committed assignment
func (m *Metrics) RecordAssigned(forced bool) {
	m.mu.Lock()
	m.ChatsAssignedTotal++
	if forced {
		m.ChatsForcedTotal++
	}
	m.mu.Unlock()
}

// RecordReleased counts a chat removed from an agent
func (m *Metrics) RecordReleased() {
	m.mu.Lock()
	m.ChatsReleasedTotal++
	m.mu.Unlock()
}

// RecordEscalation counts an escalation by reason
func (m *Metrics) RecordEscalation(reason types.EscalationReason, outcome types.EscalationOutcome) {
	m.mu.Lock()
	m.escalationsByReason[reason]++
	if outcome == types.OutcomeAbandoned {
		m.ChatsAbandonedTotal++
	}
	m.mu.Unlock()
}

// RecordMatchPass records one matching pass and its outcome counts
func (m *Metrics) RecordMatchPass(duration time.Duration, failedAttempts, conflicts int) {
	m.mu.Lock()
	m.MatchPassesTotal++
	m.MatchAttemptsFailed += int64(failedAttempts)
	m.MatchConflictsTotal += int64(conflicts)
	m.lastPassDuration = duration
	m.mu.Unlock()
}

// RecordWebSocketConnect increments connection counters
func (m *Metrics) RecordWebSocketConnect() {
	m.mu.Lock()
	m.WebSocketConnectionsTotal++
	m.activeConnections++
	m.mu.Unlock()
}

// RecordWebSocketDisconnect increments disconnection counter
func (m *Metrics) RecordWebSocketDisconnect() {
	m.mu.Lock()
	m.WebSocketDisconnectionsTotal++
	m.activeConnections--
	m.mu.Unlock()
}

// RecordWebSocketMessage increments message counter
func (m *Metrics) RecordWebSocketMessage() {
	m.mu.Lock()
	m.WebSocketMessagesTotal++
	m.mu.Unlock()
}

// RecordWebSocketError increments WebSocket error counter
func (m *Metrics) RecordWebSocketError() {
	m.mu.Lock()
	m.WebSocketErrorsTotal++
	m.mu.Unlock()
}

// RecordAggregationCycle records a dashboard snapshot broadcast
func (m *Metrics) RecordAggregationCycle(duration time.Duration) {
	m.mu.Lock()
	m.AggregationCyclesTotal++
	m.SnapshotsBroadcastTotal++
	m.lastAggregationDuration = duration
	m.mu.Unlock()
}

// UpdateQueueDepth replaces the queue depth gauges
func (m *Metrics) UpdateQueueDepth(status types.QueueStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.queueDepth = make(map[types.Priority]int, len(status.StatusByPriority))
	for p, band := range status.StatusByPriority {
		m.queueDepth[p] = band.Count
	}
}

// UpdateAgentStats replaces the agent distribution gauges
func (m *Metrics) UpdateAgentStats(byStatus map[types.AgentStatus]int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.agentsByState = make(map[types.AgentStatus]int, len(byStatus))
	m.totalAgents = 0
	for status, n := range byStatus {
		m.agentsByState[status] = n
		m.totalAgents += n
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(endpoint string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.httpRequestsTotal[endpoint] == nil {
		m.httpRequestsTotal[endpoint] = make(map[int]int64)
	}
	m.httpRequestsTotal[endpoint][statusCode]++
}

// GetActiveConnections returns current WebSocket connections
func (m *Metrics) GetActiveConnections() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeConnections
}

// Handler returns an HTTP handler for the /metrics endpoint
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.RLock()
		defer m.mu.RUnlock()

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		var b strings.Builder
		write := func(name string, value interface{}, labels ...string) {
			b.WriteString(name)
			if len(labels) > 0 {
				b.WriteByte('{')
				for i := 0; i < len(labels); i += 2 {
					if i > 0 {
						b.WriteByte(',')
					}
					b.WriteString(labels[i] + "=\"" + labels[i+1] + "\"")
				}
				b.WriteByte('}')
			}
			b.WriteByte(' ')

			switch v := value.(type) {
			case int:
				b.WriteString(strconv.Itoa(v))
			case int64:
				b.WriteString(strconv.FormatInt(v, 10))
			case float64:
				b.WriteString(strconv.FormatFloat(v, 'f', 6, 64))
			}
			b.WriteByte('\n')
		}

		write("chatrouter_uptime_seconds", time.Since(m.startTime).Seconds())

		// Routing
		write("chatrouter_chats_enqueued_total", m.ChatsEnqueuedTotal)
		write("chatrouter_chats_assigned_total", m.ChatsAssignedTotal)
		write("chatrouter_chats_force_assigned_total", m.ChatsForcedTotal)
		write("chatrouter_chats_released_total", m.ChatsReleasedTotal)
		write("chatrouter_chats_abandoned_total", m.ChatsAbandonedTotal)
		write("chatrouter_match_attempts_failed_total", m.MatchAttemptsFailed)
		write("chatrouter_match_conflicts_total", m.MatchConflictsTotal)
		write("chatrouter_match_passes_total", m.MatchPassesTotal)
		write("chatrouter_match_pass_duration_seconds", m.lastPassDuration.Seconds())
		for _, reason := range sortedKeys(m.escalationsByReason) {
			write("chatrouter_escalations_total", m.escalationsByReason[reason], "reason", string(reason))
		}

		// Queue depth, highest priority first
		for _, p := range types.AllPriorities {
			write("chatrouter_queue_depth", m.queueDepth[p], "priority", string(p))
		}

		// Agents
		write("chatrouter_agents_total", m.totalAgents)
		for _, status := range sortedKeys(m.agentsByState) {
			write("chatrouter_agents_by_status", m.agentsByState[status], "status", string(status))
		}

		// WebSocket
		write("chatrouter_websocket_connections_total", m.WebSocketConnectionsTotal)
		write("chatrouter_websocket_disconnections_total", m.WebSocketDisconnectionsTotal)
		write("chatrouter_websocket_active_connections", m.activeConnections)
		write("chatrouter_websocket_messages_total", m.WebSocketMessagesTotal)
		write("chatrouter_websocket_errors_total", m.WebSocketErrorsTotal)

		// Aggregation
		write("chatrouter_aggregation_cycles_total", m.AggregationCyclesTotal)
		write("chatrouter_snapshots_broadcast_total", m.SnapshotsBroadcastTotal)
		write("chatrouter_aggregation_duration_seconds", m.lastAggregationDuration.Seconds())

		// HTTP
		for _, endpoint := range sortedKeys(m.httpRequestsTotal) {
			statusCodes := m.httpRequestsTotal[endpoint]
			codes := make([]int, 0, len(statusCodes))
			for code := range statusCodes {
				codes = append(codes, code)
			}
			sort.Ints(codes)
			for _, status := range codes {
				write("chatrouter_http_requests_total", statusCodes[status], "endpoint", endpoint, "status", strconv.Itoa(status))
			}
		}

		w.Write([]byte(b.String()))
	}
}

func sortedKeys[K ~string, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
