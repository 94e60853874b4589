package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kishorekota-dev/chatrouter/internal/types"
)

func TestLoadPolicyDefaults(t *testing.T) {
	os.Clearenv()

	p, err := LoadPolicy("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := DefaultPolicy()
	if *p != want {
		t.Errorf("env defaults differ from DefaultPolicy:\n got  %+v\n want %+v", *p, want)
	}
}

func TestLoadPolicyFile(t *testing.T) {
	os.Clearenv()

	path := filepath.Join(t.TempDir(), "policy.yaml")
	content := `
match_interval: 2s
max_attempts: 4
max_escalations: 1
exhausted_policy: abandon
invalid_priority_policy: reject
sla:
  urgent: 10s
  high: 1m
  medium: 3m
  low: 6m
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write policy file: %v", err)
	}

	p, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.MatchInterval != 2*time.Second {
		t.Errorf("expected MatchInterval 2s, got %v", p.MatchInterval)
	}
	if p.MaxAttempts != 4 {
		t.Errorf("expected MaxAttempts 4, got %d", p.MaxAttempts)
	}
	if p.MaxEscalations != 1 {
		t.Errorf("expected MaxEscalations 1, got %d", p.MaxEscalations)
	}
	if p.ExhaustedPolicy != types.ExhaustedAbandon {
		t.Errorf("expected abandon, got %s", p.ExhaustedPolicy)
	}
	if p.InvalidPriorityPolicy != types.PriorityPolicyReject {
		t.Errorf("expected reject, got %s", p.InvalidPriorityPolicy)
	}
	if p.SLA.For(types.PriorityHigh) != time.Minute {
		t.Errorf("expected high SLA 1m, got %v", p.SLA.For(types.PriorityHigh))
	}
	// Fields missing from the file fall back to defaults
	if p.ChatHistoryLimit != 50 {
		t.Errorf("expected default ChatHistoryLimit 50, got %d", p.ChatHistoryLimit)
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	os.Clearenv()

	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing policy file")
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Policy)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Policy) {}},
		{name: "zero max escalations is allowed", mutate: func(p *Policy) { p.MaxEscalations = 0 }},
		{name: "zero attempts", mutate: func(p *Policy) { p.MaxAttempts = 0 }, wantErr: true},
		{name: "negative escalations", mutate: func(p *Policy) { p.MaxEscalations = -1 }, wantErr: true},
		{name: "zero match interval", mutate: func(p *Policy) { p.MatchInterval = 0 }, wantErr: true},
		{name: "zero chat capacity", mutate: func(p *Policy) { p.DefaultMaxChats = 0 }, wantErr: true},
		{name: "unknown exhausted policy", mutate: func(p *Policy) { p.ExhaustedPolicy = "retry" }, wantErr: true},
		{name: "unknown priority policy", mutate: func(p *Policy) { p.InvalidPriorityPolicy = "guess" }, wantErr: true},
		{name: "longest idle routing", mutate: func(p *Policy) { p.RoutingStrategy = "longest_idle" }},
		{name: "unknown routing strategy", mutate: func(p *Policy) { p.RoutingStrategy = "random" }, wantErr: true},
		{name: "urgent slower than low", mutate: func(p *Policy) { p.SLA.Urgent = time.Hour }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestSLAThresholdsFor(t *testing.T) {
	sla := DefaultPolicy().SLA
	tests := []struct {
		priority types.Priority
		want     time.Duration
	}{
		{types.PriorityUrgent, 30 * time.Second},
		{types.PriorityHigh, 2 * time.Minute},
		{types.PriorityMedium, 5 * time.Minute},
		{types.PriorityLow, 10 * time.Minute},
		{types.Priority("bogus"), 10 * time.Minute},
	}
	for _, tt := range tests {
		if got := sla.For(tt.priority); got != tt.want {
			t.Errorf("For(%s) = %v, want %v", tt.priority, got, tt.want)
		}
	}
}
