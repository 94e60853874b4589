package aggregator

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/types"
	"github.com/rs/zerolog"
)

type staticSource struct {
	calls int
}

func (s *staticSource) Snapshot() types.DashboardSnapshot {
	s.calls++
	return types.DashboardSnapshot{
		Type:   "queue_snapshot",
		Status: types.QueueStatus{TotalInQueue: 2},
		Agents: []types.AgentSummary{{AgentID: "a1"}},
	}
}

type fakeHub struct {
	mu       sync.Mutex
	clients  int
	messages [][]byte
}

func (h *fakeHub) Broadcast(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
}

func (h *fakeHub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.clients
}

func TestCycleSkipsWithoutClients(t *testing.T) {
	src := &staticSource{}
	hub := &fakeHub{}
	a := NewAggregator(src, hub, metrics.New(), zerolog.Nop())

	if a.cycle() {
		t.Error("expected no broadcast without clients")
	}
	if src.calls != 0 {
		t.Errorf("snapshot built %d times without clients", src.calls)
	}
}

func TestCycleBroadcastsSnapshot(t *testing.T) {
	src := &staticSource{}
	hub := &fakeHub{clients: 2}
	m := metrics.New()
	a := NewAggregator(src, hub, m, zerolog.Nop())

	if !a.cycle() {
		t.Fatal("expected a broadcast")
	}
	if len(hub.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(hub.messages))
	}

	var snap types.DashboardSnapshot
	if err := json.Unmarshal(hub.messages[0], &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Type != "queue_snapshot" || snap.Status.TotalInQueue != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if m.AggregationCyclesTotal != 1 {
		t.Errorf("expected 1 aggregation cycle recorded, got %d", m.AggregationCyclesTotal)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	hub := &fakeHub{clients: 1}
	a := NewAggregator(&staticSource{}, hub, nil, zerolog.Nop())
	a.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.messages)
		hub.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("no snapshot broadcast")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("aggregator did not stop")
	}
}
