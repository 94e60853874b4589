package websocket

import (
	"context"
	"testing"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/rs/zerolog"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(metrics.New(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func TestNewHub(t *testing.T) {
	hub := NewHub(nil, zerolog.Nop())

	if hub == nil {
		t.Fatal("expected hub to be created")
	}
	if hub.clients == nil {
		t.Error("expected clients map to be initialized")
	}
	if hub.broadcast == nil {
		t.Error("expected broadcast channel to be initialized")
	}
	if hub.metrics == nil {
		t.Error("expected default metrics")
	}
}

func TestHubClientCount(t *testing.T) {
	hub := NewHub(metrics.New(), zerolog.Nop())

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}

	hub.mu.Lock()
	hub.clients[&Client{id: "test1"}] = true
	hub.clients[&Client{id: "test2"}] = true
	hub.mu.Unlock()

	if hub.ClientCount() != 2 {
		t.Errorf("expected 2 clients, got %d", hub.ClientCount())
	}
}

func TestHubBroadcastDoesNotBlock(t *testing.T) {
	hub := NewHub(metrics.New(), zerolog.Nop())

	// Nothing drains the queue; Broadcast must still return
	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(hub.broadcast)+10; i++ {
			hub.Broadcast([]byte("snapshot"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked unexpectedly")
	}
}

func TestHubRegisterUnregister(t *testing.T) {
	m := metrics.New()
	hub := NewHub(m, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	client := &Client{
		id:   "test-client",
		hub:  hub,
		send: make(chan []byte, 1),
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 1 {
		t.Errorf("expected 1 client after register, got %d", hub.ClientCount())
	}
	if m.GetActiveConnections() != 1 {
		t.Errorf("expected 1 active connection, got %d", m.GetActiveConnections())
	}

	hub.leave(client)
	time.Sleep(10 * time.Millisecond)

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients after unregister, got %d", hub.ClientCount())
	}
	if _, ok := <-client.send; ok {
		t.Error("expected send channel to be closed")
	}
}

func TestHubBroadcastToMultipleClients(t *testing.T) {
	hub, _ := startHub(t)

	client1 := &Client{id: "client1", hub: hub, send: make(chan []byte, 10)}
	client2 := &Client{id: "client2", hub: hub, send: make(chan []byte, 10)}

	hub.register <- client1
	hub.register <- client2

	message := []byte("test broadcast")
	hub.Broadcast(message)

	for _, c := range []*Client{client1, client2} {
		select {
		case msg := <-c.send:
			if string(msg) != string(message) {
				t.Errorf("%s expected %s, got %s", c.id, message, msg)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("%s did not receive message", c.id)
		}
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)

	slow := &Client{id: "slow", hub: hub, send: make(chan []byte)}
	hub.register <- slow

	hub.Broadcast([]byte("snapshot"))

	deadline := time.Now().Add(time.Second)
	for hub.ClientCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not removed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubRunClosesClientsOnCancel(t *testing.T) {
	hub, cancel := startHub(t)

	client := &Client{id: "c", hub: hub, send: make(chan []byte, 1)}
	hub.register <- client
	cancel()

	select {
	case <-hub.done:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}
	if _, ok := <-client.send; ok {
		t.Error("expected send channel to be closed")
	}

	// Late leavers must not block once the hub is gone
	hub.leave(client)
}

func TestUpgraderCheckOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"http://a"}, "", true},
		{"listed origin", []string{"http://a", "http://b"}, "http://b", true},
		{"unlisted origin", []string{"http://a"}, "http://evil", false},
		{"wildcard", []string{"*"}, "http://anything", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := newUpgrader(tt.allowed)
			r := httptestRequest(tt.origin)
			if got := u.CheckOrigin(r); got != tt.want {
				t.Errorf("CheckOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
