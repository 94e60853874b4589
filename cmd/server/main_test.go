package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kishorekota-dev/chatrouter/internal/config"
	"github.com/kishorekota-dev/chatrouter/internal/escalation"
	"github.com/kishorekota-dev/chatrouter/internal/event"
	"github.com/kishorekota-dev/chatrouter/internal/ingestion"
	"github.com/kishorekota-dev/chatrouter/internal/metrics"
	"github.com/kishorekota-dev/chatrouter/internal/queue"
	"github.com/kishorekota-dev/chatrouter/internal/registry"
	"github.com/kishorekota-dev/chatrouter/internal/service"
	"github.com/kishorekota-dev/chatrouter/internal/websocket"
	"github.com/rs/zerolog"
)

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	// Check status code
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Check content type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	// Parse response body
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	// Check response fields
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %s", response["status"])
	}
	if response["service"] != "chat-router" {
		t.Errorf("expected service chat-router, got %s", response["service"])
	}
}

func TestHealthHandlerMethods(t *testing.T) {
	tests := []struct {
		method         string
		expectedStatus int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusOK},    // Handler doesn't check method
		{http.MethodPut, http.StatusOK},     // Handler doesn't check method
		{http.MethodDelete, http.StatusOK},  // Handler doesn't check method
		{http.MethodOptions, http.StatusOK}, // Handler doesn't check method
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			rec := httptest.NewRecorder()

			healthHandler(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		wantJSON bool
	}{
		{"production writes json", "production", true},
		{"development writes console", "development", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newLogger(&config.Config{Env: tt.env, LogLevel: "info"}, &buf)
			logger.Info().Msg("hello")

			isJSON := json.Valid(bytes.TrimSpace(buf.Bytes()))
			if isJSON != tt.wantJSON {
				t.Errorf("json output = %v, want %v: %q", isJSON, tt.wantJSON, buf.String())
			}
			if !strings.Contains(buf.String(), "hello") {
				t.Errorf("expected message in output, got %q", buf.String())
			}
		})
	}
}

func TestNewLoggerWritesLogFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "router.log")
	logger := newLogger(&config.Config{Env: "production", LogLevel: "debug", LogFile: path, LogMaxSizeMB: 1}, &buf)
	logger.Info().Msg("to file")

	if buf.Len() == 0 {
		t.Error("expected output on stderr as well")
	}
}

func TestRouter(t *testing.T) {
	policy := config.DefaultPolicy()
	q := queue.New(queue.NewMemoryStore(), queue.Options{MaxAttempts: policy.MaxAttempts}, zerolog.Nop())
	reg := registry.New(registry.NewMemoryStore(), registry.Options{}, zerolog.Nop())
	tr := escalation.New(q, nil, escalation.Options{Thresholds: policy.SLA}, zerolog.Nop())
	stats := metrics.New()
	svc, err := service.New(service.Deps{Queue: q, Registry: reg, Tracker: tr, Metrics: stats, Policy: policy}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	processor := ingestion.NewDefaultProcessor(svc, stats, zerolog.Nop())
	agentHub := websocket.NewAgentHub(processor, stats, zerolog.Nop())
	go agentHub.Run(ctx)
	hub := websocket.NewHub(stats, zerolog.Nop())
	go hub.Run(ctx)

	cfg := &config.Config{AllowedOrigins: []string{"http://localhost:5173"}}
	receiver := event.NewReceiver(processor, stats, zerolog.Nop())
	r := newRouter(cfg, svc, hub, agentHub, receiver, stats, zerolog.Nop())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/queue/status", http.StatusOK},
		{http.MethodGet, "/api/agents", http.StatusOK},
		{http.MethodPost, "/internal/match", http.StatusOK},
		{http.MethodGet, "/internal/agents/events/stats", http.StatusOK},
		{http.MethodGet, "/ws/dashboard", http.StatusBadRequest}, // not an upgrade request
		{http.MethodGet, "/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}
