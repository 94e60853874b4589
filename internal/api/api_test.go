package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kishorekota-dev/chatrouter/internal/config"
	"github.com/kishorekota-dev/chatrouter/internal/escalation"
	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/queue"
	"github.com/kishorekota-dev/chatrouter/internal/registry"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

type fakeConsoles struct {
	connected map[string]bool
}

func (f *fakeConsoles) ForceDisconnect(agentID string) bool {
	ok := f.connected[agentID]
	delete(f.connected, agentID)
	return ok
}

type apiFixture struct {
	svc     *service.Service
	router  chi.Router
	stats   *metrics.Metrics
	console *fakeConsoles
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	policy := config.DefaultPolicy()
	q := queue.New(queue.NewMemoryStore(), queue.Options{MaxAttempts: policy.MaxAttempts}, zerolog.Nop())
	reg := registry.New(registry.NewMemoryStore(), registry.Options{}, zerolog.Nop())
	tr := escalation.New(q, nil, escalation.Options{
		MaxEscalations:  policy.MaxEscalations,
		ExhaustedPolicy: policy.ExhaustedPolicy,
		Thresholds:      policy.SLA,
	}, zerolog.Nop())

	stats := metrics.New()
	svc, err := service.New(service.Deps{
		Queue:    q,
		Registry: reg,
		Tracker:  tr,
		Metrics:  stats,
		Policy:   policy,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	consoles := &fakeConsoles{connected: map[string]bool{}}
	r := chi.NewRouter()
	r.Use(RecordRequests(stats))
	NewHandlers(svc, consoles, zerolog.Nop()).Mount(r)

	return &apiFixture{svc: svc, router: r, stats: stats, console: consoles}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func (f *apiFixture) registerAgent(t *testing.T, id string, maxChats int) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/agents", map[string]interface{}{
		"agentId":     id,
		"name":        "Agent " + id,
		"email":       id + "@example.com",
		"department":  "support",
		"preferences": map[string]interface{}{"maxConcurrentChats": maxChats},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", id, rec.Code, rec.Body.String())
	}
}

func (f *apiFixture) enqueue(t *testing.T, session, priority string) types.QueueEntry {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/queue", map[string]interface{}{
		"sessionId":  session,
		"customerId": "c-" + session,
		"priority":   priority,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("enqueue %s: %d %s", session, rec.Code, rec.Body.String())
	}
	var entry types.QueueEntry
	decodeBody(t, rec, &entry)
	return entry
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", types.ErrValidation, http.StatusBadRequest},
		{"invalid priority", types.ErrInvalidPriority, http.StatusBadRequest},
		{"duplicate session", fmt.Errorf("enqueue: %w", types.ErrDuplicateSession), http.StatusConflict},
		{"not found", types.ErrNotFound, http.StatusNotFound},
		{"agent unavailable", fmt.Errorf("assign: %w", types.ErrAgentUnavailable), http.StatusConflict},
		{"capacity", types.ErrCapacityExceeded, http.StatusConflict},
		{"concurrent", types.ErrConcurrentModification, http.StatusConflict},
		{"other", fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestEnqueueValidation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"ok", map[string]string{"sessionId": "s1", "customerId": "c1", "priority": "urgent"}, http.StatusCreated},
		{"duplicate session", map[string]string{"sessionId": "s1", "customerId": "c1"}, http.StatusConflict},
		{"missing customer", map[string]string{"sessionId": "s2"}, http.StatusBadRequest},
		{"malformed json", "{", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/queue", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestQueueOrderingAndPosition(t *testing.T) {
	f := newAPIFixture(t)
	low := f.enqueue(t, "s-low", "low")
	f.enqueue(t, "s-urgent", "URGENT")

	rec := f.do(t, http.MethodGet, "/api/queue", nil)
	var entries []types.QueueEntry
	decodeBody(t, rec, &entries)
	if len(entries) != 2 || entries[0].SessionID != "s-urgent" {
		t.Fatalf("expected urgent first, got %+v", entries)
	}

	rec = f.do(t, http.MethodGet, "/api/queue/"+low.QueueID+"/position", nil)
	var pos positionResponse
	decodeBody(t, rec, &pos)
	if pos.Position != 2 {
		t.Errorf("expected position 2, got %d", pos.Position)
	}

	rec = f.do(t, http.MethodGet, "/api/queue/missing/position", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown entry, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/queue/status", nil)
	var status types.QueueStatus
	decodeBody(t, rec, &status)
	if status.TotalInQueue != 2 {
		t.Errorf("expected 2 in queue, got %d", status.TotalInQueue)
	}

	rec = f.do(t, http.MethodDelete, "/api/queue/"+low.QueueID, nil)
	var removed map[string]interface{}
	decodeBody(t, rec, &removed)
	if removed["removed"] != true {
		t.Errorf("expected removal, got %v", removed)
	}
	rec = f.do(t, http.MethodDelete, "/api/queue/"+low.QueueID, nil)
	decodeBody(t, rec, &removed)
	if rec.Code != http.StatusOK || removed["removed"] != false {
		t.Errorf("second removal should be a no-op, got %d %v", rec.Code, removed)
	}
}

func TestEscalateEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	entry := f.enqueue(t, "s1", "low")

	rec := f.do(t, http.MethodPost, "/api/queue/"+entry.QueueID+"/escalate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("escalate: %d %s", rec.Code, rec.Body.String())
	}
	var esc types.Escalation
	decodeBody(t, rec, &esc)
	if esc.Reason != types.ReasonManual || esc.EscalatedPriority != types.PriorityMedium {
		t.Errorf("unexpected escalation %+v", esc)
	}

	rec = f.do(t, http.MethodPost, "/api/queue/"+entry.QueueID+"/escalate",
		map[string]string{"reason": string(types.ReasonWaitTimeExceeded)})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("system reason should be rejected, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/escalations?queueId="+entry.QueueID, nil)
	var history []types.Escalation
	decodeBody(t, rec, &history)
	if len(history) != 1 {
		t.Errorf("expected 1 escalation, got %d", len(history))
	}
}

func TestAgentLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAgent(t, "a1", 1)
	f.enqueue(t, "s1", "high")
	f.enqueue(t, "s2", "high")

	rec := f.do(t, http.MethodPost, "/api/agents/a1/chats", map[string]string{"sessionId": "s1"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/agents/a1/chats", map[string]string{"sessionId": "s2"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 at capacity, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodDelete, "/api/agents/a1/chats/s1", map[string]interface{}{"status": "resolved", "customerRating": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("release: %d %s", rec.Code, rec.Body.String())
	}
	var agent types.Agent
	decodeBody(t, rec, &agent)
	if agent.Load() != 0 {
		t.Errorf("expected no active chats, got %d", agent.Load())
	}

	rec = f.do(t, http.MethodDelete, "/api/agents/a1/chats/s1", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 releasing a released chat, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPut, "/api/agents/a1/status", map[string]string{"status": "sleeping"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPut, "/api/agents/a1/status", map[string]string{"status": "away", "reason": "break"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/agents/a1/chats", map[string]string{"sessionId": "s2"})
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for away agent, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/agents/a1/activity", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("activity: %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/agents/nobody", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown agent, got %d", rec.Code)
	}
}

func TestTransferEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAgent(t, "a1", 2)
	f.enqueue(t, "s1", "high")

	pass := f.svc.ProcessQueue(context.Background())
	if len(pass.Assignments) != 1 {
		t.Fatalf("expected an assignment, got %+v", pass)
	}

	rec := f.do(t, http.MethodPost, "/api/agents/a1/chats/s1/transfer", map[string]string{"note": "needs billing"})
	if rec.Code != http.StatusOK {
		t.Fatalf("transfer: %d %s", rec.Code, rec.Body.String())
	}
	var entry types.QueueEntry
	decodeBody(t, rec, &entry)
	if entry.PreviousAgent != "a1" || entry.Priority != types.PriorityHigh {
		t.Errorf("unexpected requeued entry %+v", entry)
	}
}

func TestLogout(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAgent(t, "a1", 2)

	rec := f.do(t, http.MethodPost, "/api/agents/a1/logout", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 when not connected, got %d", rec.Code)
	}

	f.console.connected["a1"] = true
	rec = f.do(t, http.MethodPost, "/api/agents/a1/logout", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHistoryValidatesDate(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAgent(t, "a1", 2)

	rec := f.do(t, http.MethodGet, "/api/agents/a1/history?date=01-03-2024", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/agents/a1/history?date="+time.Now().UTC().Format("2006-01-02"), nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "[]\n" {
		t.Errorf("expected empty list, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestRosterReportsFailures(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/internal/agents/roster", []map[string]interface{}{
		{"agentId": "a1", "name": "One", "email": "one@example.com", "department": "support"},
		{"agentId": "a2", "name": "Two", "email": "not-an-email", "department": "support"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("roster: %d %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Registered int            `json:"registered"`
		Failed     []rosterResult `json:"failed"`
	}
	decodeBody(t, rec, &resp)
	if resp.Registered != 1 || len(resp.Failed) != 1 || resp.Failed[0].Index != 1 {
		t.Errorf("unexpected roster result %+v", resp)
	}
}

func TestAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	f.registerAgent(t, "a1", 1)

	rec := f.do(t, http.MethodPost, "/internal/chats/inject", map[string]int{"count": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("inject: %d %s", rec.Code, rec.Body.String())
	}
	if len(f.svc.Queue()) != 3 {
		t.Fatalf("expected 3 queued chats, got %d", len(f.svc.Queue()))
	}

	rec = f.do(t, http.MethodPost, "/internal/match", nil)
	var pass passResponse
	decodeBody(t, rec, &pass)
	if len(pass.Assignments) != 1 || pass.Assignments[0].Priority != types.PriorityUrgent {
		t.Errorf("expected the urgent chat to be assigned, got %+v", pass.Assignments)
	}
	if pass.Unmatched != 2 {
		t.Errorf("expected 2 unmatched, got %d", pass.Unmatched)
	}

	rec = f.do(t, http.MethodDelete, "/internal/queue", nil)
	var wiped map[string]interface{}
	decodeBody(t, rec, &wiped)
	if wiped["cleared"] != float64(2) {
		t.Errorf("expected 2 cleared, got %v", wiped["cleared"])
	}

	rec = f.do(t, http.MethodDelete, "/internal/storage", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("wipe storage: %d", rec.Code)
	}
}

func TestRecordRequestsUsesRoutePattern(t *testing.T) {
	f := newAPIFixture(t)
	f.do(t, http.MethodGet, "/api/agents/x1", nil)
	f.do(t, http.MethodGet, "/api/agents/x2", nil)

	rec := httptest.NewRecorder()
	f.stats.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := regexp.MustCompile(`endpoint="/api/agents/\{agentId\}/?",status="404"\} 2`)
	if !want.Match(rec.Body.Bytes()) {
		t.Errorf("expected %s in metrics output:\n%s", want, rec.Body.String())
	}
}
